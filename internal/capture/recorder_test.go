package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/voxrecap/pkg/audio"
	audiomock "github.com/MrWong99/voxrecap/pkg/audio/mock"
	"github.com/MrWong99/voxrecap/pkg/audio/opus"
)

// pcmFrame returns 20 ms of 48 kHz stereo PCM filled with v.
func pcmFrame(v byte) audio.AudioFrame {
	data := make([]byte, opus.FrameSize*opus.Channels*2)
	for i := range data {
		data[i] = v
	}
	return audio.AudioFrame{Data: data, Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2}
}

func newTestRecorder(t *testing.T, silence time.Duration) (*Recorder, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "rec")
	r, err := NewRecorder(Config{TempDir: dir, RoomID: "room1", SilenceTimeout: silence})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return r, dir
}

func byParticipant(refs []FileRef) map[string]FileRef {
	out := make(map[string]FileRef, len(refs))
	for _, r := range refs {
		out[r.ParticipantID] = r
	}
	return out
}

func TestNewRecorder_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewRecorder(Config{TempDir: t.TempDir()}); err == nil {
		t.Error("expected error for empty room")
	}
	if _, err := NewRecorder(Config{RoomID: "r"}); err == nil {
		t.Error("expected error for empty temp dir")
	}
}

func TestRecorder_OneFilePerParticipant(t *testing.T) {
	t.Parallel()
	r, dir := newTestRecorder(t, time.Second)
	conn := audiomock.NewConnection()

	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatalf("Run: %v", err)
	}

	alice := conn.AddStream("u1", "Alice", audio.CodecPCM)
	bob := conn.AddStream("u2", "", audio.CodecPCM)
	for range 3 {
		alice <- pcmFrame(1)
	}
	bob <- pcmFrame(2)

	refs := r.Stop()
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2", len(refs))
	}
	got := byParticipant(refs)
	frameBytes := int64(len(pcmFrame(0).Data))

	a := got["u1"]
	if a.Err != nil || a.Size != 3*frameBytes || a.Label != "Alice" || a.Format != FormatRawPCM {
		t.Errorf("alice = %+v", a)
	}
	if filepath.Dir(a.Path) != dir {
		t.Errorf("path %q not in %q", a.Path, dir)
	}
	room, part, _, err := ParseFileName(a.Path)
	if err != nil || room != "room1" || part != "u1" {
		t.Errorf("ParseFileName(%q) = %q, %q, %v", a.Path, room, part, err)
	}
	info, err := os.Stat(a.Path)
	if err != nil || info.Size() != a.Size {
		t.Errorf("file size = %v (%v), want %d", info, err, a.Size)
	}

	if b := got["u2"]; b.Err != nil || b.Size != frameBytes {
		t.Errorf("bob = %+v", b)
	}
}

func TestRecorder_SilenceReopensSameFile(t *testing.T) {
	t.Parallel()
	r, _ := newTestRecorder(t, 10*time.Millisecond)
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}

	frames := conn.AddStream("u1", "Alice", audio.CodecPCM)
	frames <- pcmFrame(1)
	time.Sleep(200 * time.Millisecond)
	frames <- pcmFrame(2)

	refs := r.Stop()
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs))
	}
	ref := refs[0]
	if ref.Utterances != 2 {
		t.Errorf("utterances = %d, want 2", ref.Utterances)
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		t.Fatal(err)
	}
	half := len(pcmFrame(0).Data)
	if len(data) != 2*half || data[0] != 1 || data[half] != 2 {
		t.Errorf("file content: len=%d first=%d second=%d", len(data), data[0], data[half])
	}
}

func TestRecorder_ConvertsPCMFormat(t *testing.T) {
	t.Parallel()
	r, _ := newTestRecorder(t, time.Second)
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}

	frames := conn.AddStream("local", "Microfone local", audio.CodecPCM)
	// 20 ms of 16 kHz mono.
	frames <- audio.AudioFrame{Data: make([]byte, 320*2), Codec: audio.CodecPCM, SampleRate: 16000, Channels: 1}

	refs := r.Stop()
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs))
	}
	if want := int64(opus.FrameSize * opus.Channels * 2); refs[0].Size != want {
		t.Errorf("size = %d, want %d", refs[0].Size, want)
	}
}

func TestRecorder_DecodesOpus(t *testing.T) {
	t.Parallel()
	enc, err := opus.NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	pkt, err := enc.Encode(pcmFrame(0).Data)
	if err != nil {
		t.Fatal(err)
	}

	r, _ := newTestRecorder(t, time.Second)
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}
	frames := conn.AddStream("u1", "", audio.CodecOpus)
	frames <- audio.AudioFrame{Data: pkt, Codec: audio.CodecOpus, SampleRate: 48000, Channels: 2}
	frames <- audio.AudioFrame{Data: pkt, Codec: audio.CodecOpus, SampleRate: 48000, Channels: 2}

	refs := r.Stop()
	if len(refs) != 1 || refs[0].Err != nil {
		t.Fatalf("refs = %+v", refs)
	}
	if want := int64(2 * opus.FrameSize * opus.Channels * 2); refs[0].Size != want {
		t.Errorf("size = %d, want %d", refs[0].Size, want)
	}
}

func TestRecorder_FailureIsIsolated(t *testing.T) {
	t.Parallel()
	r, _ := newTestRecorder(t, time.Second)
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}

	conn.AddStream("bad", "", audio.Codec(42))
	good := conn.AddStream("good", "", audio.CodecPCM)
	good <- pcmFrame(3)

	got := byParticipant(r.Stop())
	if len(got) != 2 {
		t.Fatalf("refs = %d, want 2", len(got))
	}

	var ce *CaptureError
	if !errors.As(got["bad"].Err, &ce) || ce.Op != "decode" || ce.ParticipantID != "bad" {
		t.Errorf("bad.Err = %v, want decode CaptureError", got["bad"].Err)
	}
	if g := got["good"]; g.Err != nil || g.Size == 0 {
		t.Errorf("good = %+v", g)
	}
}

func TestRecorder_CreateError(t *testing.T) {
	t.Parallel()
	r, dir := newTestRecorder(t, time.Second)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}
	frames := conn.AddStream("u1", "", audio.CodecPCM)
	frames <- pcmFrame(1)

	refs := r.Stop()
	var ce *CaptureError
	if len(refs) != 1 || !errors.As(refs[0].Err, &ce) || ce.Op != "create" {
		t.Fatalf("refs = %+v, want create CaptureError", refs)
	}
}

func TestRecorder_ConnectionEnd(t *testing.T) {
	t.Parallel()
	r, _ := newTestRecorder(t, time.Second)
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}
	frames := conn.AddStream("u1", "", audio.CodecPCM)
	frames <- pcmFrame(1)
	conn.End()

	refs := r.Stop()
	if len(refs) != 1 || refs[0].Size == 0 {
		t.Fatalf("refs = %+v", refs)
	}
}

func TestRecorder_DuplicateStreamIgnored(t *testing.T) {
	t.Parallel()
	r, _ := newTestRecorder(t, time.Second)
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}
	conn.AddStream("u1", "", audio.CodecPCM) <- pcmFrame(1)
	conn.AddStream("u1", "", audio.CodecPCM) <- pcmFrame(1)

	if refs := r.Stop(); len(refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs))
	}
}

func TestRecorder_RunTwiceAndStopTwice(t *testing.T) {
	t.Parallel()
	r, _ := newTestRecorder(t, time.Second)
	conn := audiomock.NewConnection()
	if err := r.Run(context.Background(), conn); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), conn); err == nil {
		t.Error("second Run should fail")
	}
	conn.AddStream("u1", "", audio.CodecPCM) <- pcmFrame(1)

	first := r.Stop()
	second := r.Stop()
	if len(first) != 1 || len(second) != 1 || first[0].Path != second[0].Path {
		t.Errorf("Stop results differ: %v vs %v", first, second)
	}
}

func TestRecorder_StopWithoutRun(t *testing.T) {
	t.Parallel()
	r, _ := newTestRecorder(t, time.Second)
	if refs := r.Stop(); len(refs) != 0 {
		t.Errorf("refs = %v, want none", refs)
	}
}

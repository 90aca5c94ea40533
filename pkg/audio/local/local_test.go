package local

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voxrecap/pkg/audio"
)

type fakeDevice struct {
	startErr error
	started  bool
	stopped  bool
	closed   bool
}

func (d *fakeDevice) Start() error { d.started = true; return d.startErr }
func (d *fakeDevice) Stop() error  { d.stopped = true; return nil }
func (d *fakeDevice) Close()       { d.closed = true }

func newFakePlatform(dev *fakeDevice, feed *func([]byte)) *Platform {
	p := New(WithDisplayName("Mic"), WithFormat(audio.Format{SampleRate: 16000, Channels: 1}))
	p.open = func(_ audio.Format, onData func([]byte)) (device, error) {
		*feed = onData
		return dev, nil
	}
	return p
}

func TestConnect_SingleStream(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	var feed func([]byte)
	conn, err := newFakePlatform(dev, &feed).Connect(context.Background(), "mic")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !dev.started {
		t.Fatal("device not started")
	}

	s := <-conn.Streams()
	if s.ParticipantID != ParticipantID || s.DisplayName != "Mic" || s.Codec != audio.CodecPCM {
		t.Fatalf("stream = %+v", s)
	}

	buf := []byte{1, 2, 3, 4}
	feed(buf)
	buf[0] = 9 // device reuses its buffer
	f := <-s.Frames
	if f.Data[0] != 1 || f.SampleRate != 16000 || f.Channels != 1 {
		t.Errorf("frame = %+v", f)
	}

	if err := conn.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !dev.stopped || !dev.closed {
		t.Error("device not stopped and closed")
	}
	<-conn.Done()
	if _, ok := <-s.Frames; ok {
		t.Error("frames still open")
	}

	feed([]byte{1, 2}) // late callbacks are ignored
	if err := conn.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
}

func TestConnect_StartFailure(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{startErr: errors.New("busy")}
	var feed func([]byte)
	if _, err := newFakePlatform(dev, &feed).Connect(context.Background(), "mic"); err == nil {
		t.Fatal("expected error")
	}
	if !dev.closed {
		t.Error("device not closed after failed start")
	}
}

func TestConnect_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var feed func([]byte)
	if _, err := newFakePlatform(&fakeDevice{}, &feed).Connect(ctx, "mic"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// Package capture writes the audio of every participant in a session to its
// own raw PCM file.
//
// A [Recorder] consumes the streams of an [audio.Connection] and runs one
// task per participant. Each task decodes frames to s16le 48 kHz stereo and
// appends them to {room}_{participant}_{startMillis}.pcm. A participant
// that stays silent for the silence timeout has its file closed; the next
// frame reopens it in append mode, so every participant ends up with exactly
// one file per session. Failures are confined to the task that hit them.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxrecap/internal/observe"
	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/MrWong99/voxrecap/pkg/audio/opus"
)

// DefaultSilenceTimeout ends an utterance after this long without frames.
const DefaultSilenceTimeout = time.Second

// Config configures a [Recorder].
type Config struct {
	// TempDir receives the raw files. Created if missing.
	TempDir string

	// RoomID prefixes every file name. Required.
	RoomID string

	// SilenceTimeout closes a participant's file after this long without
	// frames. Defaults to [DefaultSilenceTimeout].
	SilenceTimeout time.Duration

	// Metrics is optional.
	Metrics *observe.Metrics

	// Now overrides the clock used for file names. Defaults to time.Now.
	Now func() time.Time
}

// Recorder captures every participant of one connection.
//
// Run and Stop are safe for concurrent use. A Recorder is single-use.
type Recorder struct {
	cfg Config

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	started  bool
	stopped  bool
	seen     map[string]struct{}
	finished []FileRef
}

// NewRecorder validates cfg and creates the temp directory.
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.RoomID == "" {
		return nil, errors.New("capture: room ID must not be empty")
	}
	if cfg.TempDir == "" {
		return nil, errors.New("capture: temp dir must not be empty")
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: create temp dir: %w", err)
	}
	return &Recorder{cfg: cfg, seen: make(map[string]struct{})}, nil
}

// Run starts consuming conn. It returns immediately; capture continues until
// [Recorder.Stop] is called, ctx is cancelled, or the connection ends.
func (r *Recorder) Run(ctx context.Context, conn audio.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return errors.New("capture: recorder already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.group = &errgroup.Group{}
	r.started = true

	streams := conn.Streams()
	r.group.Go(func() error {
		r.dispatch(ctx, streams)
		return nil
	})
	return nil
}

// Stop cancels all tasks, waits for them to exit and returns one FileRef per
// participant in the order their capture finished. Frames and streams already
// buffered when Stop is called are still written. Later calls return the same
// result.
func (r *Recorder) Stop() []FileRef {
	r.mu.Lock()
	if r.stopped {
		out := append([]FileRef(nil), r.finished...)
		r.mu.Unlock()
		return out
	}
	r.stopped = true
	cancel, group := r.cancel, r.group
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		_ = group.Wait()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FileRef(nil), r.finished...)
}

// dispatch starts a task per announced stream. After cancellation it still
// picks up streams that were already queued.
func (r *Recorder) dispatch(ctx context.Context, streams <-chan audio.Stream) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case st, ok := <-streams:
					if !ok {
						return
					}
					r.start(ctx, st)
				default:
					return
				}
			}
		case st, ok := <-streams:
			if !ok {
				return
			}
			r.start(ctx, st)
		}
	}
}

func (r *Recorder) start(ctx context.Context, st audio.Stream) {
	r.mu.Lock()
	_, dup := r.seen[st.ParticipantID]
	r.seen[st.ParticipantID] = struct{}{}
	r.mu.Unlock()
	if dup {
		slog.Warn("capture: ignoring second stream for participant",
			"room_id", r.cfg.RoomID, "participant_id", st.ParticipantID)
		return
	}
	r.group.Go(func() error {
		ref := r.capture(ctx, st)
		r.mu.Lock()
		r.finished = append(r.finished, ref)
		r.mu.Unlock()
		return nil
	})
}

// capture runs one participant's task until its frames end or ctx is done.
func (r *Recorder) capture(ctx context.Context, st audio.Stream) (ref FileRef) {
	start := r.cfg.Now()
	ref = FileRef{
		Path:          filepath.Join(r.cfg.TempDir, FileName(r.cfg.RoomID, st.ParticipantID, start)),
		Format:        FormatRawPCM,
		ParticipantID: st.ParticipantID,
		Label:         st.DisplayName,
		StartedAt:     start,
	}
	log := slog.With("room_id", r.cfg.RoomID, "participant_id", st.ParticipantID)
	log.Info("capture: participant started", "codec", st.Codec.String(), "file", filepath.Base(ref.Path))

	if m := r.cfg.Metrics; m != nil {
		m.ActiveSpeakers.Add(ctx, 1)
		defer m.ActiveSpeakers.Add(context.WithoutCancel(ctx), -1)
	}

	fail := func(op string, err error) {
		ref.Err = &CaptureError{ParticipantID: st.ParticipantID, Path: ref.Path, Op: op, Err: err}
		log.Error("capture: participant failed", "op", op, "err", err)
		if m := r.cfg.Metrics; m != nil {
			m.RecordCaptureError(context.WithoutCancel(ctx), op)
		}
	}

	w := &utteranceWriter{path: ref.Path}
	defer func() {
		if err := w.close(); err != nil && ref.Err == nil {
			fail("write", err)
		}
		ref.Size = w.written
		ref.Utterances = w.utterances
		log.Info("capture: participant finished",
			"bytes", ref.Size, "utterances", ref.Utterances, "err", ref.Err)
	}()

	decode, err := newFrameDecoder(st.Codec)
	if err != nil {
		fail("decode", err)
		return ref
	}

	silence := time.NewTimer(r.cfg.SilenceTimeout)
	silence.Stop()
	defer silence.Stop()

	handle := func(f audio.AudioFrame) bool {
		pcm, err := decode(f)
		if err != nil {
			fail("decode", err)
			return false
		}
		if len(pcm) == 0 {
			return true
		}
		if op, err := w.write(pcm); err != nil {
			fail(op, err)
			return false
		}
		if m := r.cfg.Metrics; m != nil {
			m.CaptureBytes.Add(context.WithoutCancel(ctx), int64(len(pcm)),
				metric.WithAttributes(observe.Attr("codec", st.Codec.String())))
		}
		silence.Reset(r.cfg.SilenceTimeout)
		return true
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case f, ok := <-st.Frames:
					if !ok || !handle(f) {
						return ref
					}
				default:
					return ref
				}
			}
		case f, ok := <-st.Frames:
			if !ok || !handle(f) {
				return ref
			}
		case <-silence.C:
			if !w.open() {
				continue
			}
			if err := w.close(); err != nil {
				fail("write", err)
				return ref
			}
			log.Debug("capture: utterance finished", "bytes", w.written)
		}
	}
}

// newFrameDecoder returns a function turning a frame of the given codec into
// s16le 48 kHz stereo PCM.
func newFrameDecoder(codec audio.Codec) (func(audio.AudioFrame) ([]byte, error), error) {
	switch codec {
	case audio.CodecOpus:
		dec, err := opus.NewDecoder()
		if err != nil {
			return nil, err
		}
		return func(f audio.AudioFrame) ([]byte, error) {
			return dec.Decode(f.Data)
		}, nil
	case audio.CodecPCM:
		conv := &audio.FormatConverter{Target: audio.CaptureFormat}
		return func(f audio.AudioFrame) ([]byte, error) {
			return conv.Convert(f).Data, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}
}

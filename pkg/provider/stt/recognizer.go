package stt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxrecap/pkg/audio/wavio"
	"golang.org/x/sync/singleflight"
)

// DefaultChunkSize is the number of samples fed to a decoder per call.
const DefaultChunkSize = 4096

var _ Recognizer = (*WaveformRecognizer)(nil)

// WaveformRecognizer implements [Recognizer] on top of a lazily loaded
// [Model]. The model is loaded at most once; concurrent first callers share
// one load, and a failed load is retried on the next call.
type WaveformRecognizer struct {
	load      ModelLoader
	chunkSize int

	group singleflight.Group
	mu    sync.Mutex
	model Model
}

// Option configures a [WaveformRecognizer].
type Option func(*WaveformRecognizer)

// WithChunkSize overrides [DefaultChunkSize].
func WithChunkSize(n int) Option {
	return func(r *WaveformRecognizer) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// NewWaveformRecognizer returns a recognizer that loads its model with load
// on first use.
func NewWaveformRecognizer(load ModelLoader, opts ...Option) *WaveformRecognizer {
	r := &WaveformRecognizer{load: load, chunkSize: DefaultChunkSize}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Model returns the loaded model, loading it if needed.
func (r *WaveformRecognizer) Model(ctx context.Context) (Model, error) {
	r.mu.Lock()
	m := r.model
	r.mu.Unlock()
	if m != nil {
		return m, nil
	}

	v, err, _ := r.group.Do("model", func() (any, error) {
		r.mu.Lock()
		if r.model != nil {
			m := r.model
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()

		start := time.Now()
		m, err := r.load(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("stt: model loaded", "sample_rate", m.SampleRate(), "took", time.Since(start))

		r.mu.Lock()
		r.model = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return v.(Model), nil
}

// Recognize implements [Recognizer].
func (r *WaveformRecognizer) Recognize(ctx context.Context, path string) (*Result, error) {
	model, err := r.Model(ctx)
	if err != nil {
		return nil, &RecognitionError{Path: path, Err: err}
	}

	clip, err := wavio.Read(path)
	if err != nil {
		return nil, &RecognitionError{Path: path, Err: err}
	}
	if clip.SampleRate != model.SampleRate() {
		return nil, &RecognitionError{
			Path: path,
			Err:  fmt.Errorf("%w: file %d Hz, model %d Hz", ErrSampleRateMismatch, clip.SampleRate, model.SampleRate()),
		}
	}

	dec, err := model.NewDecoder()
	if err != nil {
		return nil, &RecognitionError{Path: path, Err: err}
	}
	defer dec.Close()

	if err := r.feed(ctx, dec, clip.Samples); err != nil {
		return nil, &RecognitionError{Path: path, Err: err}
	}

	res, err := dec.Result()
	if err != nil {
		return nil, &RecognitionError{Path: path, Err: err}
	}
	if res == nil {
		res = &Result{}
	}
	slog.Debug("stt: recognized file",
		"path", path,
		"duration", clip.Duration(),
		"chars", len(res.Text),
		"words", len(res.Words),
	)
	return res, nil
}

// feed delivers samples in chunkSize pieces, flagging the last one. A clip
// with no samples still gets one empty final chunk.
func (r *WaveformRecognizer) feed(ctx context.Context, dec Decoder, samples []float32) error {
	for off := 0; ; off += r.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+r.chunkSize, len(samples))
		final := end == len(samples)
		if err := dec.AcceptChunk(samples[off:end], final); err != nil {
			return err
		}
		if final {
			return nil
		}
	}
}

// Close releases the model if it was loaded.
func (r *WaveformRecognizer) Close() error {
	r.mu.Lock()
	m := r.model
	r.model = nil
	r.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Close()
}

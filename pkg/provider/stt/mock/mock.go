// Package mock provides test doubles for the stt package interfaces.
//
// Use Recognizer when the code under test only needs file-level results.
// Use Model and Decoder to exercise [stt.NewWaveformRecognizer] and verify
// how samples are chunked.
//
// Example:
//
//	rec := &mock.Recognizer{Results: map[string]*stt.Result{
//	    "/tmp/a.wav": {Text: "olá"},
//	}}
//	res, _ := rec.Recognize(ctx, "/tmp/a.wav")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxrecap/pkg/provider/stt"
)

// ─── Recognizer ───────────────────────────────────────────────────────────────

// Recognizer is a mock implementation of [stt.Recognizer].
type Recognizer struct {
	mu sync.Mutex

	// Results maps a path to its result. Paths not present yield
	// DefaultResult.
	Results map[string]*stt.Result

	// Errors maps a path to the error returned for it.
	Errors map[string]error

	// DefaultResult is returned for unknown paths. Nil means an empty result.
	DefaultResult *stt.Result

	// RecognizeCalls records every path passed to Recognize, in order.
	RecognizeCalls []string
}

// Recognize implements [stt.Recognizer].
func (r *Recognizer) Recognize(_ context.Context, path string) (*stt.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RecognizeCalls = append(r.RecognizeCalls, path)
	if err, ok := r.Errors[path]; ok {
		return nil, err
	}
	if res, ok := r.Results[path]; ok {
		return res, nil
	}
	if r.DefaultResult != nil {
		return r.DefaultResult, nil
	}
	return &stt.Result{}, nil
}

// Calls returns a copy of RecognizeCalls.
func (r *Recognizer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.RecognizeCalls...)
}

// ─── Model / Decoder ─────────────────────────────────────────────────────────

// Model is a mock implementation of [stt.Model]. Every decoder it creates
// returns Result and records the chunks it was fed.
type Model struct {
	mu sync.Mutex

	// Rate is returned by SampleRate. Zero means 16000.
	Rate int

	// Result is returned by every decoder's Result method.
	Result *stt.Result

	// NewDecoderErr is returned by NewDecoder when set.
	NewDecoderErr error

	// AcceptErr is returned by every AcceptChunk call when set.
	AcceptErr error

	// Decoders holds every decoder created, in order.
	Decoders []*Decoder

	// Closed records whether Close was called.
	Closed bool
}

// NewDecoder implements [stt.Model].
func (m *Model) NewDecoder() (stt.Decoder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NewDecoderErr != nil {
		return nil, m.NewDecoderErr
	}
	d := &Decoder{result: m.Result, acceptErr: m.AcceptErr}
	m.Decoders = append(m.Decoders, d)
	return d, nil
}

// SampleRate implements [stt.Model].
func (m *Model) SampleRate() int {
	if m.Rate == 0 {
		return 16000
	}
	return m.Rate
}

// Close implements [stt.Model].
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Decoder is the [stt.Decoder] produced by [Model].
type Decoder struct {
	mu        sync.Mutex
	result    *stt.Result
	acceptErr error

	// ChunkSizes records the length of each accepted chunk.
	ChunkSizes []int
	// Finals records the final flag of each accepted chunk.
	Finals []bool
	// Closed records whether Close was called.
	Closed bool
}

// AcceptChunk implements [stt.Decoder].
func (d *Decoder) AcceptChunk(samples []float32, final bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acceptErr != nil {
		return d.acceptErr
	}
	d.ChunkSizes = append(d.ChunkSizes, len(samples))
	d.Finals = append(d.Finals, final)
	return nil
}

// Result implements [stt.Decoder].
func (d *Decoder) Result() (*stt.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.result == nil {
		return &stt.Result{}, nil
	}
	return d.result, nil
}

// Close implements [stt.Decoder].
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

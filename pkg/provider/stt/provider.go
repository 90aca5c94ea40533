// Package stt defines the speech recognition contract used after a session
// has been captured and transcoded.
//
// Recognition is file based: a [Recognizer] reads one 16 kHz mono waveform
// and returns its text. Backends plug in below that as a [Model] producing
// per-file [Decoder] values; [NewWaveformRecognizer] owns the shared model,
// the WAV decoding and the chunked feed loop, so a backend only has to turn
// sample chunks into a [Result].
//
// Implementations must be safe for concurrent use. Decoders are not shared.
package stt

import (
	"context"
	"errors"
	"fmt"
)

// ErrSampleRateMismatch is returned when a waveform's sample rate differs
// from the model's.
var ErrSampleRateMismatch = errors.New("stt: sample rate does not match model")

// ErrModelUnavailable is returned when the model cannot be loaded.
var ErrModelUnavailable = errors.New("stt: model unavailable")

// Recognizer turns a waveform file into text.
type Recognizer interface {
	// Recognize decodes the 16-bit PCM WAV at path. An empty Result.Text
	// means no speech was detected and is not an error.
	Recognize(ctx context.Context, path string) (*Result, error)
}

// Model is a loaded recognition model shared by all decoders.
type Model interface {
	// NewDecoder starts decoding a new utterance.
	NewDecoder() (Decoder, error)

	// SampleRate is the rate the model expects, in Hz.
	SampleRate() int

	// Close releases the model.
	Close() error
}

// Decoder consumes the samples of one file in order.
type Decoder interface {
	// AcceptChunk feeds normalised mono samples. final is true for the last
	// chunk of the file, which may be empty.
	AcceptChunk(samples []float32, final bool) error

	// Result returns the hypothesis once the final chunk has been accepted.
	Result() (*Result, error)

	// Close releases decoder resources. It is safe to call more than once.
	Close() error
}

// ModelLoader opens a [Model]. It is invoked lazily by the recognizer.
type ModelLoader func(ctx context.Context) (Model, error)

// RecognitionError reports a failure on a specific file.
type RecognitionError struct {
	Path string
	Err  error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("stt: recognize %q: %v", e.Path, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

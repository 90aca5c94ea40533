// Package whisper provides an [stt.Model] backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// Whisper is not a streaming recognizer: a decoder buffers every chunk and
// runs inference once the final chunk arrives.
package whisper

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MrWong99/voxrecap/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	defaultLanguage  = "pt"
	defaultBeamSize  = 5
	modelSampleRate  = 16000
	specialTokenMark = "[_"
)

var _ stt.Model = (*Model)(nil)

// Model is a loaded whisper.cpp model. The model is shared; each decoder
// creates its own inference context.
type Model struct {
	model    whisperlib.Model
	language string
	beamSize int
	threads  uint
}

// Option is a functional option for configuring a Model.
type Option func(*Model)

// WithLanguage sets the recognition language (e.g. "pt", "en").
// Defaults to "pt".
func WithLanguage(lang string) Option {
	return func(m *Model) { m.language = lang }
}

// WithBeamSize sets the beam search width. Defaults to 5.
func WithBeamSize(n int) Option {
	return func(m *Model) { m.beamSize = n }
}

// WithThreads sets the number of inference threads. Zero keeps the
// library default.
func WithThreads(n uint) Option {
	return func(m *Model) { m.threads = n }
}

// New loads the whisper.cpp model from modelPath. The caller must call
// Close when the model is no longer needed.
func New(modelPath string, opts ...Option) (*Model, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	m := &Model{
		model:    model,
		language: defaultLanguage,
		beamSize: defaultBeamSize,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// SampleRate implements [stt.Model].
func (m *Model) SampleRate() int { return modelSampleRate }

// Close releases the whisper model.
func (m *Model) Close() error {
	if m.model != nil {
		return m.model.Close()
	}
	return nil
}

// NewDecoder implements [stt.Model].
func (m *Model) NewDecoder() (stt.Decoder, error) {
	if m.model == nil {
		return nil, errors.New("whisper: model is closed")
	}
	return &decoder{m: m}, nil
}

// decoder buffers samples until the final chunk.
type decoder struct {
	m       *Model
	samples []float32
	result  *stt.Result
	done    bool
}

func (d *decoder) AcceptChunk(samples []float32, final bool) error {
	if d.done {
		return errors.New("whisper: chunk after final")
	}
	d.samples = append(d.samples, samples...)
	if !final {
		return nil
	}
	d.done = true
	res, err := d.infer()
	if err != nil {
		return err
	}
	d.result = res
	return nil
}

func (d *decoder) Result() (*stt.Result, error) {
	if !d.done {
		return nil, errors.New("whisper: result requested before final chunk")
	}
	return d.result, nil
}

func (d *decoder) Close() error {
	d.samples = nil
	return nil
}

// infer runs whisper.cpp over the buffered samples with a fresh context.
// Contexts are not thread-safe, but the model can be shared.
func (d *decoder) infer() (*stt.Result, error) {
	if len(d.samples) == 0 {
		return &stt.Result{}, nil
	}

	wctx, err := d.m.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(d.m.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", d.m.language, "error", err)
	}
	if d.m.threads > 0 {
		wctx.SetThreads(d.m.threads)
	}
	wctx.SetBeamSize(d.m.beamSize)
	wctx.SetTokenTimestamps(true)
	wctx.SetSplitOnWord(true)
	wctx.SetMaxSegmentLength(1)

	if err := wctx.Process(d.samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []whisperlib.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		segments = append(segments, segment)
	}
	return resultFromSegments(segments), nil
}

// resultFromSegments turns word-length segments into a Result. Segment
// confidence is the mean probability of its non-special tokens.
func resultFromSegments(segments []whisperlib.Segment) *stt.Result {
	res := &stt.Result{}
	var parts []string
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)

		var sum float64
		var n int
		for _, tok := range seg.Tokens {
			if strings.HasPrefix(tok.Text, specialTokenMark) {
				continue
			}
			sum += float64(tok.P)
			n++
		}
		conf := 0.0
		if n > 0 {
			conf = sum / float64(n)
		}

		for _, w := range strings.Fields(text) {
			res.Words = append(res.Words, stt.WordDetail{
				Word:       w,
				Start:      seg.Start,
				End:        seg.End,
				Confidence: conf,
			})
		}
	}
	res.Text = strings.Join(parts, " ")
	return res
}

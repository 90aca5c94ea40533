// Package sherpa provides an [stt.Model] backed by a sherpa-onnx streaming
// transducer (github.com/k2-fsa/sherpa-onnx-go). Unlike whisper it decodes
// incrementally: every chunk is fed to the stream and decoded while the
// recognizer has frames ready.
package sherpa

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voxrecap/pkg/provider/stt"
	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

const (
	sampleRate = 16000
	featureDim = 80

	// tailPadding flushes the last frames out of the encoder.
	tailPadding = sampleRate * 3 / 10

	wordBoundary = "▁"
)

var _ stt.Model = (*Model)(nil)

// Config names the transducer model files.
type Config struct {
	Encoder string
	Decoder string
	Joiner  string
	Tokens  string

	// NumThreads defaults to 2.
	NumThreads int

	// Provider is the onnxruntime execution provider. Defaults to "cpu".
	Provider string
}

func (c Config) validate() error {
	var errs []error
	for name, v := range map[string]string{
		"encoder": c.Encoder,
		"decoder": c.Decoder,
		"joiner":  c.Joiner,
		"tokens":  c.Tokens,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("sherpa: %s path must not be empty", name))
		}
	}
	return errors.Join(errs...)
}

// Model wraps a sherpa-onnx online recognizer. Decoding on the shared
// recognizer is serialised.
type Model struct {
	mu         sync.Mutex
	recognizer *sherpa.OnlineRecognizer
}

// New loads the transducer described by cfg.
func New(cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}
	if cfg.Provider == "" {
		cfg.Provider = "cpu"
	}

	rc := &sherpa.OnlineRecognizerConfig{}
	rc.FeatConfig = sherpa.FeatureConfig{SampleRate: sampleRate, FeatureDim: featureDim}
	rc.ModelConfig.Transducer.Encoder = cfg.Encoder
	rc.ModelConfig.Transducer.Decoder = cfg.Decoder
	rc.ModelConfig.Transducer.Joiner = cfg.Joiner
	rc.ModelConfig.Tokens = cfg.Tokens
	rc.ModelConfig.NumThreads = cfg.NumThreads
	rc.ModelConfig.Provider = cfg.Provider
	rc.DecodingMethod = "modified_beam_search"
	rc.MaxActivePaths = 4

	r := sherpa.NewOnlineRecognizer(rc)
	if r == nil {
		return nil, fmt.Errorf("sherpa: failed to create recognizer from %q", cfg.Encoder)
	}
	return &Model{recognizer: r}, nil
}

// SampleRate implements [stt.Model].
func (m *Model) SampleRate() int { return sampleRate }

// Close implements [stt.Model].
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recognizer != nil {
		sherpa.DeleteOnlineRecognizer(m.recognizer)
		m.recognizer = nil
	}
	return nil
}

// NewDecoder implements [stt.Model].
func (m *Model) NewDecoder() (stt.Decoder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recognizer == nil {
		return nil, errors.New("sherpa: model is closed")
	}
	return &decoder{m: m, stream: sherpa.NewOnlineStream(m.recognizer)}, nil
}

type decoder struct {
	m      *Model
	stream *sherpa.OnlineStream
	result *stt.Result
	done   bool
}

func (d *decoder) AcceptChunk(samples []float32, final bool) error {
	if d.stream == nil {
		return errors.New("sherpa: decoder is closed")
	}
	if d.done {
		return errors.New("sherpa: chunk after final")
	}

	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if d.m.recognizer == nil {
		return errors.New("sherpa: model is closed")
	}

	if len(samples) > 0 {
		d.stream.AcceptWaveform(sampleRate, samples)
	}
	if final {
		d.stream.AcceptWaveform(sampleRate, make([]float32, tailPadding))
		d.stream.InputFinished()
	}
	for d.m.recognizer.IsReady(d.stream) {
		d.m.recognizer.Decode(d.stream)
	}
	if final {
		d.done = true
		r := d.m.recognizer.GetResult(d.stream)
		d.result = toResult(r.Text, r.Tokens, r.Timestamps)
	}
	return nil
}

func (d *decoder) Result() (*stt.Result, error) {
	if !d.done {
		return nil, errors.New("sherpa: result requested before final chunk")
	}
	return d.result, nil
}

func (d *decoder) Close() error {
	if d.stream != nil {
		sherpa.DeleteOnlineStream(d.stream)
		d.stream = nil
	}
	return nil
}

// toResult groups BPE tokens into words. A token starting with the word
// boundary marker (or a space) opens a new word. A word ends where the next
// word starts; the last word ends at its last token.
func toResult(text string, tokens []string, timestamps []float32) *stt.Result {
	res := &stt.Result{Text: strings.TrimSpace(strings.ToLower(text))}
	if len(tokens) == 0 || len(tokens) != len(timestamps) {
		return res
	}

	at := func(i int) time.Duration {
		return time.Duration(float64(timestamps[i]) * float64(time.Second))
	}

	var cur *stt.WordDetail
	var last int
	flush := func(end time.Duration) {
		if cur != nil && cur.Word != "" {
			cur.End = end
			res.Words = append(res.Words, *cur)
		}
		cur = nil
	}
	for i, tok := range tokens {
		boundary := strings.HasPrefix(tok, wordBoundary) || strings.HasPrefix(tok, " ")
		piece := strings.ToLower(strings.TrimLeft(strings.TrimPrefix(tok, wordBoundary), " "))
		if cur == nil || boundary {
			flush(at(i))
			cur = &stt.WordDetail{Start: at(i), Confidence: 1}
		}
		cur.Word += piece
		last = i
	}
	flush(at(last))
	return res
}

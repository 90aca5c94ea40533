// Package transcode converts raw capture files into the waveform format the
// speech recognizer expects, by running ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voxrecap/internal/capture"
	"github.com/MrWong99/voxrecap/internal/observe"
)

// Output layout of every transcoded file.
const (
	OutputSampleRate = 16000
	OutputChannels   = 1
	WaveformExt      = ".wav"
)

// Filters applied before downsampling: gain, then a 200-3000 Hz band for
// speech.
const filterChain = "volume=2.0,highpass=f=200,lowpass=f=3000"

const (
	defaultFFmpeg  = "ffmpeg"
	defaultTimeout = 2 * time.Minute
	maxStderr      = 2048
)

// ErrTranscode is matched by every *TranscodeError.
var ErrTranscode = errors.New("transcode: conversion failed")

// TranscodeError reports a failed ffmpeg run.
type TranscodeError struct {
	Input string
	// ExitCode is the process exit status, or -1 if it could not run.
	ExitCode int
	// Stderr is the tail of ffmpeg's diagnostic output.
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("transcode: %s: %v", filepath.Base(e.Input), e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("transcode: %s: ffmpeg exited %d: %s", filepath.Base(e.Input), e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("transcode: %s: ffmpeg exited %d", filepath.Base(e.Input), e.ExitCode)
	}
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTranscode) true for any TranscodeError.
func (e *TranscodeError) Is(target error) bool { return target == ErrTranscode }

// Transcoder runs ffmpeg through a [Runner].
type Transcoder struct {
	ffmpeg  string
	runner  Runner
	timeout time.Duration
	metrics *observe.Metrics
}

// Option configures a [Transcoder].
type Option func(*Transcoder)

// WithFFmpegPath sets the ffmpeg binary. Defaults to "ffmpeg" on PATH.
func WithFFmpegPath(path string) Option {
	return func(t *Transcoder) {
		if path != "" {
			t.ffmpeg = path
		}
	}
}

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(t *Transcoder) { t.runner = r }
}

// WithTimeout bounds a single conversion. Defaults to two minutes.
func WithTimeout(d time.Duration) Option {
	return func(t *Transcoder) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithMetrics records conversion latency.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Transcoder) { t.metrics = m }
}

// New returns a Transcoder.
func New(opts ...Option) *Transcoder {
	t := &Transcoder{
		ffmpeg:  defaultFFmpeg,
		runner:  ExecRunner{},
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// OutputPath returns the waveform path for rawPath: same directory and stem,
// .wav extension.
func OutputPath(rawPath string) string {
	return strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + WaveformExt
}

// Args returns the ffmpeg arguments converting a raw capture at in to a
// 16 kHz mono waveform at out.
func Args(in, out string) []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(48000),
		"-ac", strconv.Itoa(2),
		"-i", in,
		"-af", filterChain,
		"-ac", strconv.Itoa(OutputChannels),
		"-ar", strconv.Itoa(OutputSampleRate),
		"-acodec", "pcm_s16le",
		"-y", out,
	}
}

// Transcode converts rawPath and returns the path of the waveform file.
func (t *Transcoder) Transcode(ctx context.Context, rawPath string) (wavPath string, err error) {
	ctx, span := observe.StartSpan(ctx, "transcode.Transcode",
		trace.WithAttributes(attribute.String("input", filepath.Base(rawPath))))
	defer func() { observe.EndSpan(span, err) }()

	info, err := os.Stat(rawPath)
	if err != nil {
		return "", &TranscodeError{Input: rawPath, ExitCode: -1, Err: err}
	}
	if info.Size() < capture.MinSignalBytes {
		observe.Logger(ctx).Warn("transcode: input is nearly empty, microphone may be muted",
			"file", filepath.Base(rawPath), "bytes", info.Size())
	}

	out := OutputPath(rawPath)
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.runner.Run(runCtx, t.ffmpeg, Args(rawPath, out)...)
	if t.metrics != nil {
		t.metrics.TranscodeDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		_ = os.Remove(out)
		return "", &TranscodeError{Input: rawPath, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		_ = os.Remove(out)
		return "", &TranscodeError{Input: rawPath, ExitCode: res.ExitCode, Stderr: tail(res.Stderr, maxStderr)}
	}

	slog.Debug("transcode: converted", "input", filepath.Base(rawPath), "output", filepath.Base(out),
		"elapsed", time.Since(start))
	return out, nil
}

// Version runs "ffmpeg -version" and returns the first line of its output.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	res, err := t.runner.Run(ctx, t.ffmpeg, "-version")
	if err != nil {
		return "", fmt.Errorf("transcode: run %s: %w", t.ffmpeg, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("transcode: %s -version exited %d", t.ffmpeg, res.ExitCode)
	}
	line, _, _ := bytes.Cut(res.Stdout, []byte("\n"))
	return string(bytes.TrimSpace(line)), nil
}

// Check reports whether ffmpeg can be run. Used as a readiness check.
func (t *Transcoder) Check(ctx context.Context) error {
	_, err := t.Version(ctx)
	return err
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxrecap/internal/config"
	"github.com/MrWong99/voxrecap/internal/observe"
	"github.com/MrWong99/voxrecap/internal/resilience"
	"github.com/MrWong99/voxrecap/internal/summary"
	"github.com/MrWong99/voxrecap/internal/transcode"
	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/MrWong99/voxrecap/pkg/audio/local"
	"github.com/MrWong99/voxrecap/pkg/provider/llm"
	"github.com/MrWong99/voxrecap/pkg/provider/llm/anyllm"
	"github.com/MrWong99/voxrecap/pkg/provider/llm/openai"
	"github.com/MrWong99/voxrecap/pkg/provider/stt"
	"github.com/MrWong99/voxrecap/pkg/provider/stt/sherpa"
	"github.com/MrWong99/voxrecap/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires the built-in factories into reg. The
// Discord audio platform is registered by serve once the bot is connected.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range anyllm.Backends {
		if name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ── Recognizers ───────────────────────────────────────────────────────────

	reg.RegisterRecognizer("whisper", func(rc config.RecognizerConfig) (stt.Model, error) {
		opts := []whisper.Option{whisper.WithLanguage(rc.Language)}
		if rc.Threads > 0 {
			opts = append(opts, whisper.WithThreads(uint(rc.Threads)))
		}
		return whisper.New(rc.ModelPath, opts...)
	})

	reg.RegisterRecognizer("sherpa", func(rc config.RecognizerConfig) (stt.Model, error) {
		return sherpa.New(sherpa.Config{
			Encoder:    rc.Sherpa.Encoder,
			Decoder:    rc.Sherpa.Decoder,
			Joiner:     rc.Sherpa.Joiner,
			Tokens:     rc.Sherpa.Tokens,
			NumThreads: rc.Threads,
		})
	})

	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio(config.PlatformLocal, func(config.AudioConfig) (config.PlatformFunc, error) {
		p := local.New()
		return func(string) (audio.Platform, error) { return p, nil }, nil
	})
}

// newRecognizer returns a recognizer that loads the configured model on
// first use, so startup does not wait for the model.
func newRecognizer(reg *config.Registry, rc config.RecognizerConfig) *stt.WaveformRecognizer {
	return stt.NewWaveformRecognizer(func(context.Context) (stt.Model, error) {
		m, err := reg.CreateRecognizer(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", stt.ErrModelUnavailable, err)
		}
		slog.Info("recognizer model loaded", "name", rc.Name)
		return m, nil
	})
}

// newTranscoder builds the ffmpeg transcoder from cfg.
func newTranscoder(cfg config.TranscodeConfig, m *observe.Metrics) *transcode.Transcoder {
	return transcode.New(
		transcode.WithFFmpegPath(cfg.FFmpegPath),
		transcode.WithTimeout(cfg.Timeout),
		transcode.WithMetrics(m),
	)
}

// buildSummarizer creates the summary generator. The configured providers
// are tried in order, each behind its own circuit breaker. Providers that
// fail to construct are skipped; with none left the remote tier is off.
func buildSummarizer(reg *config.Registry, cfg config.SummaryConfig, m *observe.Metrics) (*summary.Generator, error) {
	var (
		providers []llm.Provider
		errs      []error
	)
	for _, entry := range cfg.Providers {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("create llm provider %q: %w", entry.Name, err))
			continue
		}
		slog.Info("provider created", "kind", "llm", "name", p.Name())
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		slog.Warn("no summary providers configured; using local summaries only")
		return summary.New(summary.WithMetrics(m)), nil
	}
	for _, err := range errs {
		slog.Warn("summary provider skipped", "err", err)
	}

	fb := resilience.NewLLMFallback(providers[0], resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	})
	for _, p := range providers[1:] {
		fb.AddFallback(p)
	}

	remote := summary.NewRemote(fb,
		summary.WithTimeout(cfg.RemoteTimeout),
		summary.WithRemoteMetrics(m),
	)
	return summary.New(summary.WithRemote(remote), summary.WithMetrics(m)), nil
}

// Package summary turns a transcript into a Markdown summary through an
// ordered chain of strategies. The first strategy that succeeds wins; a
// strategy declines by returning an error, usually [ErrFallthrough].
//
// The default chain is: a guard for recordings without speech, a verbatim
// echo for very short texts, an optional remote language model, and a local
// extractive algorithm that always succeeds. [Generator.Generate] never
// fails; if every strategy declines it returns a fixed apology.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/voxrecap/internal/observe"
)

// ErrFallthrough is returned by a strategy that does not apply to the input.
var ErrFallthrough = errors.New("summary: fall through to next tier")

// Tier names the strategy that produced a summary.
type Tier string

const (
	TierRemote          Tier = "remote"
	TierLocalExtractive Tier = "local-extractive"
	TierVerbatimEcho    Tier = "verbatim-echo"
	TierUnavailable     Tier = "unavailable"
)

// Summary is the generated text and the tier that produced it.
type Summary struct {
	Body string
	Tier Tier
}

// FailedBody is returned when no strategy could produce a summary.
const FailedBody = "# Resumo\n\nNão foi possível gerar um resumo para esta conversa."

// Strategy is one tier of the chain.
type Strategy interface {
	// Tier identifies the strategy in logs and metrics.
	Tier() Tier

	// Summarize returns a summary of text, or an error to pass the input on
	// to the next strategy.
	Summarize(ctx context.Context, text string, style Style) (Summary, error)
}

// Generator runs the strategy chain.
//
// A Generator is safe for concurrent use.
type Generator struct {
	strategies []Strategy
	metrics    *observe.Metrics
}

// Option configures a [Generator].
type Option func(*generatorOptions)

type generatorOptions struct {
	remote     Strategy
	metrics    *observe.Metrics
	strategies []Strategy
}

// WithRemote inserts a remote strategy between the verbatim echo and the
// local extractive tier.
func WithRemote(s Strategy) Option {
	return func(o *generatorOptions) { o.remote = s }
}

// WithMetrics records latency and produced tiers.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *generatorOptions) { o.metrics = m }
}

// WithStrategies replaces the whole chain.
func WithStrategies(s ...Strategy) Option {
	return func(o *generatorOptions) { o.strategies = s }
}

// New returns a Generator with the default chain.
func New(opts ...Option) *Generator {
	var o generatorOptions
	for _, opt := range opts {
		opt(&o)
	}
	chain := o.strategies
	if chain == nil {
		chain = []Strategy{NoSpeechGuard{}, VerbatimEcho{}}
		if o.remote != nil {
			chain = append(chain, o.remote)
		}
		chain = append(chain, LocalExtractive{})
	}
	return &Generator{strategies: chain, metrics: o.metrics}
}

// Tiers lists the chain in order.
func (g *Generator) Tiers() []Tier {
	out := make([]Tier, len(g.strategies))
	for i, s := range g.strategies {
		out[i] = s.Tier()
	}
	return out
}

// Generate summarises text. It never fails.
func (g *Generator) Generate(ctx context.Context, text string, style Style) Summary {
	ctx, span := observe.StartSpan(ctx, "summary.Generate")
	start := time.Now()
	sum := g.generate(ctx, text, style)
	span.End()

	if g.metrics != nil {
		g.metrics.SummaryDuration.Record(ctx, time.Since(start).Seconds())
		g.metrics.RecordSummaryTier(ctx, string(sum.Tier))
	}
	observe.Logger(ctx).Info("summary: generated", "tier", sum.Tier, "style", style, "chars", len(sum.Body))
	return sum
}

func (g *Generator) generate(ctx context.Context, text string, style Style) Summary {
	for _, s := range g.strategies {
		sum, err := run(ctx, s, text, style)
		if err == nil {
			return sum
		}
		if !errors.Is(err, ErrFallthrough) {
			slog.Warn("summary: tier failed, trying next", "tier", s.Tier(), "err", err)
		}
	}
	return Summary{Body: FailedBody, Tier: TierUnavailable}
}

// run calls s and turns a panic into an error.
func run(ctx context.Context, s Strategy, text string, style Style) (sum Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summary: %s panicked: %v", s.Tier(), r)
		}
	}()
	return s.Summarize(ctx, text, style)
}

package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/voxrecap/internal/observe"
	"github.com/MrWong99/voxrecap/pkg/provider/llm"
)

// SystemPrompt frames every remote request.
const SystemPrompt = "Você é um assistente especializado em resumir conversas. Crie resumos concisos, bem estruturados e em formato Markdown."

// Remote request defaults.
const (
	DefaultRemoteTimeout = 30 * time.Second
	RemoteTemperature    = 0.7
	RemoteMaxTokens      = 500
)

// Remote asks a language model for the summary. Any provider error, an
// empty answer, or the timeout passes the input on to the next tier.
type Remote struct {
	provider llm.Provider
	timeout  time.Duration
	metrics  *observe.Metrics
}

// RemoteOption configures a [Remote].
type RemoteOption func(*Remote)

// WithTimeout bounds each request. Defaults to [DefaultRemoteTimeout].
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRemoteMetrics records request outcomes per provider.
func WithRemoteMetrics(m *observe.Metrics) RemoteOption {
	return func(r *Remote) { r.metrics = m }
}

// NewRemote returns a remote tier backed by p.
func NewRemote(p llm.Provider, opts ...RemoteOption) *Remote {
	r := &Remote{provider: p, timeout: DefaultRemoteTimeout}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Remote) Tier() Tier { return TierRemote }

func (r *Remote) Summarize(ctx context.Context, text string, style Style) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: SystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: style.instruction(text)}},
		Temperature:  RemoteTemperature,
		MaxTokens:    RemoteMaxTokens,
	})
	status := "ok"
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordProviderRequest(ctx, r.provider.Name(), status)
		}
	}()
	if err != nil {
		status = "error"
		return Summary{}, fmt.Errorf("summary: remote %s: %w", r.provider.Name(), err)
	}
	body := ""
	if resp != nil {
		body = strings.TrimSpace(resp.Content)
	}
	if body == "" {
		status = "empty"
		return Summary{}, fmt.Errorf("%w: remote %s returned no content", ErrFallthrough, r.provider.Name())
	}
	return Summary{Body: body, Tier: TierRemote}, nil
}

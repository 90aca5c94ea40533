package resilience

import (
	"context"
	"strings"

	"github.com/MrWong99/voxrecap/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with failover across several remote
// summary backends. Each backend has its own circuit breaker.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend. The entry name is taken from primary.Name().
func NewLLMFallback(primary llm.Provider, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional provider, tried after those already
// registered.
func (f *LLMFallback) AddFallback(provider llm.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Complete sends the request to the first healthy provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Name lists the member providers, e.g. "fallback(openai/gpt-4o-mini,gemini/gemini-2.0-flash)".
func (f *LLMFallback) Name() string {
	names := make([]string, 0, f.group.Len())
	for _, s := range f.group.Status() {
		names = append(names, s.Name)
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// Status reports the breaker state of every backend.
func (f *LLMFallback) Status() []EntryStatus { return f.group.Status() }

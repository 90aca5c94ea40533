package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/voxrecap/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxrecap/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{
		ProviderName:     "openai/gpt-4o-mini",
		CompleteResponse: &llm.CompletionResponse{Content: "# Resumo\n\nprimário"},
	}
	secondary := &llmmock.Provider{
		ProviderName:     "gemini/gemini-2.0-flash",
		CompleteResponse: &llm.CompletionResponse{Content: "secundário"},
	}

	fb := NewLLMFallback(primary, FallbackConfig{})
	fb.AddFallback(secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "olá"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "# Resumo\n\nprimário" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(secondary.Calls()) != 0 {
		t.Errorf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{ProviderName: "a", CompleteErr: errTest}
	secondary := &llmmock.Provider{
		ProviderName:     "b",
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}

	fb := NewLLMFallback(primary, FallbackConfig{})
	fb.AddFallback(secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if len(primary.Calls()) != 1 {
		t.Errorf("primary calls = %d, want 1", len(primary.Calls()))
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{ProviderName: "a", CompleteErr: errTest}
	secondary := &llmmock.Provider{ProviderName: "b", CompleteErr: errors.New("quota")}

	fb := NewLLMFallback(primary, FallbackConfig{})
	fb.AddFallback(secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{ProviderName: "a", CompleteErr: errTest}
	secondary := &llmmock.Provider{
		ProviderName:     "b",
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}

	fb := NewLLMFallback(primary, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fb.AddFallback(secondary)

	for range 3 {
		if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary calls = %d, want 1 (breaker should be open)", got)
	}
	status := fb.Status()
	if len(status) != 2 || status[0].State != StateOpen || status[1].State != StateClosed {
		t.Errorf("Status() = %+v", status)
	}
}

func TestLLMFallback_Name(t *testing.T) {
	t.Parallel()
	fb := NewLLMFallback(&llmmock.Provider{ProviderName: "openai/gpt-4o-mini"}, FallbackConfig{})
	fb.AddFallback(&llmmock.Provider{ProviderName: "gemini/gemini-2.0-flash"})

	want := "fallback(openai/gpt-4o-mini,gemini/gemini-2.0-flash)"
	if got := fb.Name(); got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}

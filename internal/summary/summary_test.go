package summary

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxrecap/internal/transcript"
	"github.com/MrWong99/voxrecap/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxrecap/pkg/provider/llm/mock"
)

const meeting = "Oi. Tudo bem? Vamos começar a reunião agora. Precisamos revisar o orçamento. O prazo é semana que vem."

func TestGenerate_NoSpeech(t *testing.T) {
	t.Parallel()
	remote := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "nunca"}}
	g := New(WithRemote(NewRemote(remote)))

	inputs := []string{
		"",
		"   \n",
		transcript.NoSpeechMarker,
		transcript.NoSpeechInRecording,
		"[Usuário 1] (sem fala detectada)\n\n[Usuário 2] (sem fala detectada)",
		transcript.UnrecognizableMessage,
	}
	for _, in := range inputs {
		sum := g.Generate(context.Background(), in, StyleSimple)
		if sum.Tier != TierUnavailable || sum.Body != NoSpeechBody {
			t.Errorf("Generate(%q) = %+v", in, sum)
		}
	}
	if len(remote.Calls()) != 0 {
		t.Errorf("remote called %d times for no-speech input", len(remote.Calls()))
	}
}

func TestGenerate_VerbatimEcho(t *testing.T) {
	t.Parallel()
	g := New()
	text := "Ana: bom dia a todos"
	sum := g.Generate(context.Background(), text, StyleSimple)
	if sum.Tier != TierVerbatimEcho {
		t.Fatalf("tier = %s, want verbatim-echo", sum.Tier)
	}
	if sum.Body != "# Transcrição Completa\n\n"+text {
		t.Errorf("body = %q", sum.Body)
	}
}

func TestGenerate_VerbatimCountsCharacters(t *testing.T) {
	t.Parallel()
	// 29 characters, more than 30 bytes.
	text := strings.Repeat("é", 29)
	if got := New().Generate(context.Background(), text, StyleSimple).Tier; got != TierVerbatimEcho {
		t.Errorf("tier = %s, want verbatim-echo", got)
	}
}

func TestGenerate_NoRemoteUsesExtractive(t *testing.T) {
	t.Parallel()
	sum := New().Generate(context.Background(), meeting, StyleSimple)
	if sum.Tier != TierLocalExtractive {
		t.Fatalf("tier = %s, want local-extractive", sum.Tier)
	}
	want := "# Resumo da Conversa\n\nVamos começar a reunião agora. Precisamos revisar o orçamento.\n\n" + extractiveFootnote
	if sum.Body != want {
		t.Errorf("body =\n%s\nwant\n%s", sum.Body, want)
	}
}

func TestGenerate_RemoteSuccess(t *testing.T) {
	t.Parallel()
	remote := &llmmock.Provider{
		ProviderName:     "openai/gpt-4o-mini",
		CompleteResponse: &llm.CompletionResponse{Content: "  # Resumo\n\n- orçamento  "},
	}
	g := New(WithRemote(NewRemote(remote)))

	sum := g.Generate(context.Background(), meeting, StyleTopics)
	if sum.Tier != TierRemote || sum.Body != "# Resumo\n\n- orçamento" {
		t.Fatalf("summary = %+v", sum)
	}

	calls := remote.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	req := calls[0].Req
	if req.SystemPrompt != SystemPrompt || req.Temperature != RemoteTemperature || req.MaxTokens != RemoteMaxTokens {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser {
		t.Fatalf("messages = %+v", req.Messages)
	}
	if msg := req.Messages[0].Content; !strings.Contains(msg, meeting) || !strings.Contains(msg, "tópicos") {
		t.Errorf("instruction = %q", msg)
	}
	if _, ok := calls[0].Ctx.Deadline(); !ok {
		t.Error("remote call has no deadline")
	}
}

func TestGenerate_RemoteFailureFallsThrough(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		remote *llmmock.Provider
	}{
		{"error", &llmmock.Provider{CompleteErr: errors.New("401 unauthorized")}},
		{"empty", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  "}}},
		{"nil response", &llmmock.Provider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sum := New(WithRemote(NewRemote(tt.remote))).Generate(context.Background(), meeting, StyleSimple)
			if sum.Tier != TierLocalExtractive {
				t.Errorf("tier = %s, want local-extractive", sum.Tier)
			}
		})
	}
}

func TestGenerate_RemoteTimeout(t *testing.T) {
	t.Parallel()
	remote := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	g := New(WithRemote(NewRemote(remote, WithTimeout(20*time.Millisecond))))

	start := time.Now()
	sum := g.Generate(context.Background(), meeting, StyleSimple)
	if sum.Tier != TierLocalExtractive {
		t.Errorf("tier = %s, want local-extractive", sum.Tier)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("took %v", elapsed)
	}
}

type panicStrategy struct{}

func (panicStrategy) Tier() Tier { return TierRemote }
func (panicStrategy) Summarize(context.Context, string, Style) (Summary, error) {
	panic("boom")
}

type declineStrategy struct{ err error }

func (declineStrategy) Tier() Tier { return TierRemote }
func (d declineStrategy) Summarize(context.Context, string, Style) (Summary, error) {
	return Summary{}, d.err
}

func TestGenerate_CatchAll(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		chain []Strategy
	}{
		{"panic", []Strategy{panicStrategy{}}},
		{"last fails", []Strategy{declineStrategy{ErrFallthrough}, declineStrategy{errors.New("x")}}},
		{"empty chain", []Strategy{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sum := New(WithStrategies(tt.chain...)).Generate(context.Background(), meeting, StyleSimple)
			if sum.Body != FailedBody || sum.Tier != TierUnavailable {
				t.Errorf("summary = %+v", sum)
			}
		})
	}
}

func TestGenerate_PanicFallsThroughToNextTier(t *testing.T) {
	t.Parallel()
	g := New(WithStrategies(panicStrategy{}, LocalExtractive{}))
	if got := g.Generate(context.Background(), meeting, StyleSimple).Tier; got != TierLocalExtractive {
		t.Errorf("tier = %s", got)
	}
}

func TestTiers(t *testing.T) {
	t.Parallel()
	want := []Tier{TierUnavailable, TierVerbatimEcho, TierLocalExtractive}
	if got := New().Tiers(); !slices.Equal(got, want) {
		t.Errorf("Tiers() = %v, want %v", got, want)
	}
	want = []Tier{TierUnavailable, TierVerbatimEcho, TierRemote, TierLocalExtractive}
	if got := New(WithRemote(NewRemote(&llmmock.Provider{}))).Tiers(); !slices.Equal(got, want) {
		t.Errorf("Tiers() = %v, want %v", got, want)
	}
}

func TestHasContent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"[Ana] (sem fala detectada)\n\n[Bia] olá", true},
		{"Ana: olá", true},
		{"texto com " + transcript.UnrecognizableMessage, false},
	}
	for _, tt := range tests {
		if got := HasContent(tt.in); got != tt.want {
			t.Errorf("HasContent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package summary

import (
	"slices"
	"strings"
	"testing"
)

func TestExtract_FewSentencesVerbatim(t *testing.T) {
	t.Parallel()
	text := "Hoje discutimos o cronograma do projeto. Ficou decidido adiar a entrega. Ninguém se opôs a isso."
	if got := Extract(text); got != "# Resumo\n\n"+text {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_ShortFragmentsIgnored(t *testing.T) {
	t.Parallel()
	// "Oi", "Sim" and "Ok" are too short to count as sentences.
	text := "Oi. Sim. Ok! Vamos falar do orçamento. Precisamos cortar custos. O prazo acabou."
	if got := Extract(text); !strings.HasPrefix(got, "# Resumo\n\n") {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_SourceOrderPreserved(t *testing.T) {
	t.Parallel()
	text := strings.Join([]string{
		"O cliente ligou ontem à tarde",
		"Precisamos entregar o relatório financeiro amanhã",
		"A reunião foi curta",
		"Ninguém trouxe café hoje",
		"O relatório financeiro precisa de revisão do relatório anterior",
		"Depois do almoço voltamos",
		"Enviaremos o relatório financeiro revisado ao cliente",
	}, ". ") + "."

	got := Extract(text)
	body := strings.TrimPrefix(got, "# Resumo da Conversa\n\n")
	body = strings.TrimSuffix(body, ".\n\n"+extractiveFootnote)
	picked := strings.Split(body, ". ")

	// ceil(7*0.3) = 3 sentences.
	if len(picked) != 3 {
		t.Fatalf("picked %d sentences: %q", len(picked), picked)
	}
	want := []string{
		"O cliente ligou ontem à tarde",
		"Precisamos entregar o relatório financeiro amanhã",
		"Enviaremos o relatório financeiro revisado ao cliente",
	}
	if !slices.Equal(picked, want) {
		t.Errorf("picked %q, want %q", picked, want)
	}
}

func TestExtract_CapAtFive(t *testing.T) {
	t.Parallel()
	var parts []string
	for range 30 {
		parts = append(parts, "Falamos sobre orçamento anual")
	}
	got := Extract(strings.Join(parts, ". "))
	body := strings.TrimSuffix(strings.TrimPrefix(got, "# Resumo da Conversa\n\n"), ".\n\n"+extractiveFootnote)
	if n := len(strings.Split(body, ". ")); n != 5 {
		t.Errorf("picked %d sentences, want 5", n)
	}
}

func TestTopKeywords(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want []string
	}{
		{"Orçamento orçamento O prazo do orçamento e o prazo final você também", []string{"orçamento", "prazo"}},
		// Words split on whitespace only, so punctuation keeps tokens apart.
		{"Prazo. prazo prazo, orçamento orçamento", []string{"orçamento", "prazo."}},
	}
	for _, tt := range tests {
		if got := topKeywords(tt.text, 2); !slices.Equal(got, tt.want) {
			t.Errorf("topKeywords(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()
	got := splitSentences("Primeira frase!!! Segunda frase?.. oi. Terceira frase")
	want := []string{"Primeira frase", "Segunda frase", "Terceira frase"}
	if !slices.Equal(got, want) {
		t.Errorf("splitSentences = %q, want %q", got, want)
	}
}

func TestParseStyle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Style
		wantErr bool
	}{
		{"", StyleSimple, false},
		{"Detalhado", StyleDetailed, false},
		{" topicos ", StyleTopics, false},
		{"resumido", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStyle(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStyle(%q) = %q, %v", tt.in, got, err)
		}
	}
	if StyleTopics.Label() != "Tópicos" || Style("").Label() != "Simples" {
		t.Error("unexpected labels")
	}
}

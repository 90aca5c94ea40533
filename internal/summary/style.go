package summary

import (
	"fmt"
	"strings"
)

// Style selects the kind of summary the remote tier is asked for.
type Style string

const (
	StyleSimple   Style = "simples"
	StyleDetailed Style = "detalhado"
	StyleTopics   Style = "topicos"
)

// Styles lists the accepted styles in display order.
var Styles = []Style{StyleSimple, StyleDetailed, StyleTopics}

// ParseStyle accepts a style name, case-insensitively. The empty string
// yields [StyleSimple].
func ParseStyle(s string) (Style, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StyleSimple, nil
	}
	for _, st := range Styles {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("summary: unknown style %q (want simples, detalhado or topicos)", s)
}

// Label is the human-readable name of the style.
func (s Style) Label() string {
	switch s {
	case StyleDetailed:
		return "Detalhado"
	case StyleTopics:
		return "Tópicos"
	default:
		return "Simples"
	}
}

// instruction returns the user prompt for the remote tier.
func (s Style) instruction(text string) string {
	var b strings.Builder
	switch s {
	case StyleDetailed:
		b.WriteString("Por favor, gere um resumo detalhado da seguinte transcrição de uma conversa:\n\n")
		b.WriteString(text)
		b.WriteString("\n\nO resumo deve:\n" +
			"1. Descrever cada assunto discutido com os detalhes relevantes\n" +
			"2. Indicar quem disse o quê quando isso for importante\n" +
			"3. Listar decisões, pendências e próximos passos\n" +
			"4. Ser formatado em Markdown\n" +
			"5. Estar em português")
	case StyleTopics:
		b.WriteString("Por favor, resuma em tópicos a seguinte transcrição de uma conversa:\n\n")
		b.WriteString(text)
		b.WriteString("\n\nO resumo deve:\n" +
			"1. Ser uma lista de tópicos curtos\n" +
			"2. Agrupar os pontos por assunto\n" +
			"3. Ser formatado em Markdown\n" +
			"4. Estar em português")
	default:
		b.WriteString("Por favor, gere um resumo conciso e bem estruturado da seguinte transcrição de uma conversa:\n\n")
		b.WriteString(text)
		b.WriteString("\n\nO resumo deve:\n" +
			"1. Destacar os principais pontos discutidos\n" +
			"2. Identificar as decisões ou conclusões importantes\n" +
			"3. Ser formatado em Markdown\n" +
			"4. Estar em português")
	}
	return b.String()
}

package summary

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voxrecap/internal/transcript"
)

// NoSpeechBody explains a recording without detectable speech.
const NoSpeechBody = `# Gravação Processada

Não foi possível detectar fala clara nesta gravação. Isso pode ocorrer por vários motivos:

1. O microfone estava muito baixo ou mudo
2. Houve muito ruído de fundo
3. A fala foi muito curta ou rápida

**Sugestões:**
- Verifique se o microfone está funcionando corretamente
- Tente falar mais próximo ao microfone
- Fale pausadamente e com volume adequado

*Tente gravar novamente com essas sugestões em mente.*`

// NoSpeechGuard answers for texts that carry no speech: empty input, the
// transcript markers for silence, or the unrecognizable message.
type NoSpeechGuard struct{}

func (NoSpeechGuard) Tier() Tier { return TierUnavailable }

func (NoSpeechGuard) Summarize(_ context.Context, text string, _ Style) (Summary, error) {
	if !HasContent(text) {
		return Summary{Body: NoSpeechBody, Tier: TierUnavailable}, nil
	}
	return Summary{}, ErrFallthrough
}

// HasContent reports whether text holds anything besides whitespace and
// transcript silence markers.
func HasContent(text string) bool {
	if strings.Contains(text, transcript.UnrecognizableMessage) {
		return false
	}
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		switch {
		case line == "", line == transcript.NoSpeechInRecording:
		case strings.HasSuffix(line, transcript.NoSpeechMarker) && strings.HasPrefix(line, "["):
			// "[Speaker] (sem fala detectada)"
		case line == transcript.NoSpeechMarker:
		default:
			return true
		}
	}
	return false
}

// VerbatimEchoLimit is the length, in characters, below which the text is
// returned as is.
const VerbatimEchoLimit = 30

// VerbatimEcho returns very short texts unchanged under a heading.
type VerbatimEcho struct{}

func (VerbatimEcho) Tier() Tier { return TierVerbatimEcho }

func (VerbatimEcho) Summarize(_ context.Context, text string, _ Style) (Summary, error) {
	if utf8.RuneCountInString(text) < VerbatimEchoLimit {
		return Summary{Body: "# Transcrição Completa\n\n" + text, Tier: TierVerbatimEcho}, nil
	}
	return Summary{}, ErrFallthrough
}

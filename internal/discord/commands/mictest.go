package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MrWong99/voxrecap/internal/app"
)

const (
	msgMicNotInVoice = "Você precisa estar em um canal de voz para testar o microfone!"
	msgMicBusy       = "Já existe uma gravação em andamento neste servidor. Pare a gravação atual antes de testar o microfone."
	msgMicStarting   = "🎙️ Iniciando teste de microfone. Fale algo nos próximos %d segundos..."
	msgMicNoAudio    = "❌ Nenhum áudio foi capturado durante o teste. Verifique se seu microfone está funcionando e não está mudo."
	msgMicTooSmall   = "❌ Áudio muito pequeno detectado (%.2f KB). Seu microfone parece estar mudo ou com volume muito baixo."
	msgMicFailed     = "❌ Ocorreu um erro ao testar o microfone. Por favor, tente novamente."
)

// MicTestMessage renders the user-facing verdict of a microphone test.
func MicTestMessage(r *app.MicReport) string {
	if len(r.Files) == 0 {
		return msgMicNoAudio
	}
	if r.Silent {
		return fmt.Sprintf(msgMicTooSmall, kb(r.TotalBytes))
	}

	details := micDetails(r)
	switch {
	case r.Err != nil:
		return "⚠️ Seu microfone está funcionando, mas houve um erro ao processar o áudio.\n\n" +
			details +
			"\n\nTente novamente ou use o comando `/resumir iniciar` para iniciar uma gravação normal."
	case !r.HasWords:
		return "⚠️ Seu microfone parece estar funcionando, mas não conseguimos reconhecer palavras claras.\n\n" +
			details +
			"\n\n**Sugestões:**\n" +
			"- Fale mais alto e claramente\n" +
			"- Verifique se há muito ruído de fundo\n" +
			"- Tente se aproximar mais do microfone"
	default:
		return "✅ Teste de microfone concluído com sucesso!\n\n" +
			"**Texto detectado:**\n" + r.Text + "\n\n" +
			details +
			"\n\nSeu microfone está funcionando corretamente! Você pode usar o comando `/resumir iniciar` para começar a gravar."
	}
}

func micDetails(r *app.MicReport) string {
	var b strings.Builder
	b.WriteString("**Detalhes técnicos:**\n")
	fmt.Fprintf(&b, "- Tamanho total do áudio: %.2f KB\n", kb(r.TotalBytes))
	fmt.Fprintf(&b, "- Arquivos capturados: %d", len(r.Files))
	for _, f := range r.Files {
		fmt.Fprintf(&b, "\n- Arquivo: %s, Tamanho: %.2f KB", filepath.Base(f.Path), kb(f.Size))
	}
	return b.String()
}

func kb(n int64) float64 { return float64(n) / 1024 }

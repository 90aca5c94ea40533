package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxrecap/internal/app"
	"github.com/MrWong99/voxrecap/internal/config"
	"github.com/MrWong99/voxrecap/internal/observe"
	"github.com/MrWong99/voxrecap/internal/recording"
	"github.com/MrWong99/voxrecap/internal/summary"
	"github.com/MrWong99/voxrecap/pkg/provider/stt"
)

// localRoom is the room ID of recordings made from the host microphone.
const localRoom = "local"

func newRecordCmd(g *globals) *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the local microphone until Ctrl+C, then transcribe and summarize",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := summary.ParseStyle(style)
			if err != nil {
				return err
			}
			cfg, err := g.load()
			if err != nil {
				return err
			}
			sessions, recognizer, err := newLocalSessions(cfg)
			if err != nil {
				return err
			}
			defer recognizer.Close()
			return record(cmd.Context(), cmd.OutOrStdout(), sessions, st)
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", string(summary.StyleSimple), "summary style (simples, detalhado, topicos)")
	return cmd
}

func newMicTestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mic-test",
		Short: "Record a few seconds from the local microphone and report what was heard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			sessions, recognizer, err := newLocalSessions(cfg)
			if err != nil {
				return err
			}
			defer recognizer.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fale algo nos próximos %d segundos...\n", int(cfg.Audio.MicTestWindow.Seconds()))
			report, err := sessions.MicTest(cmd.Context(), app.StartRequest{RoomID: localRoom})
			if err != nil {
				return err
			}
			printMicReport(out, report)
			return nil
		},
	}
}

// newLocalSessions builds a session manager that records the host
// microphone regardless of the configured platform.
func newLocalSessions(cfg *config.Config) (*app.SessionManager, *stt.WaveformRecognizer, error) {
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	audioCfg := cfg.Audio
	audioCfg.Platform = config.PlatformLocal
	platforms, err := reg.CreateAudio(audioCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create local audio: %w", err)
	}
	summarizer, err := buildSummarizer(reg, cfg.Summary, metrics)
	if err != nil {
		return nil, nil, err
	}
	recognizer := newRecognizer(reg, cfg.Recognizer)

	sessions, err := app.NewSessionManager(app.SessionManagerConfig{
		Platforms:             platforms,
		Transcoder:            newTranscoder(cfg.Transcode, metrics),
		Recognizer:            recognizer,
		Summarizer:            summarizer,
		TempDir:               cfg.Audio.TempDir,
		SilenceTimeout:        cfg.Audio.SilenceTimeout,
		MicTestWindow:         cfg.Audio.MicTestWindow,
		DeleteAfterProcessing: cfg.Audio.DeleteAfterProcessing,
		Metrics:               metrics,
	})
	if err != nil {
		recognizer.Close()
		return nil, nil, err
	}
	return sessions, recognizer, nil
}

// record runs one local session until ctx is cancelled and prints the
// transcript and summary to out.
func record(ctx context.Context, out io.Writer, sessions *app.SessionManager, style summary.Style) error {
	s, err := sessions.Start(ctx, app.StartRequest{RoomID: localRoom})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "🎙️ Gravando. Pressione Ctrl+C para parar.")
	slog.Info("recording started", "session_id", s.ID)

	<-ctx.Done()
	fmt.Fprintln(out, "\nTranscrevendo o áudio...")

	// The signal context is done; processing gets its own lifetime.
	outcome, err := sessions.Stop(context.WithoutCancel(ctx), localRoom, style)
	if err != nil {
		if errors.Is(err, recording.ErrNoActiveSession) {
			return errors.New("the recording ended before it was stopped")
		}
		return err
	}
	printOutcome(out, outcome)
	return nil
}

func printOutcome(out io.Writer, o *app.Outcome) {
	fmt.Fprintf(out, "\nDuração: %s, arquivos: %d\n", o.Duration.Round(time.Second), len(o.Files))
	if o.Status == app.StatusOK {
		fmt.Fprintln(out, "\n── Transcrição ──")
		fmt.Fprintln(out, strings.TrimSpace(o.Transcript.String()))
	}
	fmt.Fprintln(out, "\n── Resumo ──")
	fmt.Fprintln(out, o.Summary.Body)
}

func printMicReport(out io.Writer, r *app.MicReport) {
	switch {
	case len(r.Files) == 0:
		fmt.Fprintln(out, "❌ Nenhum áudio foi capturado. Verifique se o microfone está conectado e não está mudo.")
		return
	case r.Silent:
		fmt.Fprintf(out, "❌ Áudio muito pequeno (%.2f KB). O microfone parece estar mudo ou com volume muito baixo.\n", float64(r.TotalBytes)/1024)
		return
	case r.Err != nil:
		fmt.Fprintf(out, "⚠️ O microfone funciona, mas o áudio não pôde ser processado: %v\n", r.Err)
	case !r.HasWords:
		fmt.Fprintln(out, "⚠️ O microfone funciona, mas nenhuma palavra clara foi reconhecida.")
	default:
		fmt.Fprintln(out, "✅ Microfone funcionando. Texto detectado:")
		fmt.Fprintln(out, r.Text)
	}
	fmt.Fprintf(out, "Tamanho total: %.2f KB em %d arquivo(s)\n", float64(r.TotalBytes)/1024, len(r.Files))
}

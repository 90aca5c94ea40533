package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxrecap/internal/app"
	"github.com/MrWong99/voxrecap/internal/config"
	discordbot "github.com/MrWong99/voxrecap/internal/discord"
	"github.com/MrWong99/voxrecap/internal/discord/commands"
	"github.com/MrWong99/voxrecap/internal/health"
	"github.com/MrWong99/voxrecap/internal/observe"
	"github.com/MrWong99/voxrecap/internal/summary"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot and the health/metrics server",
		Long:  "Connect to Discord, register the /resumir commands and serve /healthz, /readyz and /metrics until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), g, cfg)
		},
	}
}

func serve(ctx context.Context, g *globals, cfg *config.Config) error {
	slog.Info("voxrecap starting",
		"version", version,
		"config", g.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxrecap",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	metrics := observe.DefaultMetrics()

	// ── Discord bot ───────────────────────────────────────────────────────────
	if cfg.Discord.Token == "" {
		return errors.New("discord token is not configured; set discord.token or DISCORD_TOKEN")
	}
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:          cfg.Discord.Token,
		GuildID:        cfg.Discord.GuildID,
		RecorderRoleID: cfg.Discord.RecorderRoleID,
	})
	if err != nil {
		return fmt.Errorf("create discord bot: %w", err)
	}
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	reg.RegisterAudio(config.PlatformDiscord, func(config.AudioConfig) (config.PlatformFunc, error) {
		return bot.PlatformFor, nil
	})

	platforms, err := reg.CreateAudio(cfg.Audio)
	if err != nil {
		return fmt.Errorf("create audio platform %q: %w", cfg.Audio.Platform, err)
	}
	summarizer, err := buildSummarizer(reg, cfg.Summary, metrics)
	if err != nil {
		return err
	}
	transcoder := newTranscoder(cfg.Transcode, metrics)
	recognizer := newRecognizer(reg, cfg.Recognizer)

	sessions, err := app.NewSessionManager(app.SessionManagerConfig{
		Platforms:             platforms,
		Transcoder:            transcoder,
		Recognizer:            recognizer,
		Summarizer:            summarizer,
		TempDir:               cfg.Audio.TempDir,
		SilenceTimeout:        cfg.Audio.SilenceTimeout,
		MicTestWindow:         cfg.Audio.MicTestWindow,
		DeleteAfterProcessing: cfg.Audio.DeleteAfterProcessing,
		Metrics:               metrics,
	})
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}

	// ── Commands ──────────────────────────────────────────────────────────────
	resumir := commands.NewResumirCommands(commands.ResumirConfig{
		Recorder:      sessions,
		Voice:         bot,
		Perms:         bot.Permissions(),
		DefaultStyle:  summary.Style(cfg.Summary.Style),
		MicTestWindow: cfg.Audio.MicTestWindow,
	})
	resumir.Register(bot.Router())

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(g.configPath, func(old, new *config.Config) {
		applyConfigChange(g, sessions, resumir, config.Diff(old, new))
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	}

	application := app.New(sessions,
		app.WithListenAddr(cfg.Server.ListenAddr),
		app.WithMetrics(metrics),
		app.WithCheckers(
			health.Checker{Name: "ffmpeg", Check: transcoder.Check},
			health.FilesExist("model", cfg.Recognizer.Paths()...),
			health.Flag("discord", "gateway not connected", bot.Ready),
		),
		app.WithCloser(bot.Close),
		app.WithCloser(recognizer.Close),
		app.WithCloser(func() error {
			if watcher != nil {
				watcher.Stop()
			}
			return nil
		}),
		app.WithCloser(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}),
	)

	printStartupSummary(cfg)

	go func() {
		if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("discord bot error", "err", err)
		}
	}()

	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")
	return runErr
}

// applyConfigChange applies the hot-reloadable part of a config change.
func applyConfigChange(g *globals, sessions *app.SessionManager, resumir *commands.ResumirCommands, d config.ConfigDiff) {
	if d.LogLevelChanged {
		g.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.RetentionChanged {
		sessions.SetDeleteAfterProcessing(d.DeleteAfterProcessing)
		slog.Info("audio retention changed", "delete_after_processing", d.DeleteAfterProcessing)
	}
	if d.StyleChanged {
		resumir.SetDefaultStyle(summary.Style(d.NewStyle))
		slog.Info("default summary style changed", "style", d.NewStyle)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voxrecap startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Platform", string(cfg.Audio.Platform))
	printRow("Recognizer", cfg.Recognizer.Name+" / "+cfg.Recognizer.Language)
	if len(cfg.Summary.Providers) == 0 {
		printRow("Summary LLM", "(local only)")
	}
	for i, p := range cfg.Summary.Providers {
		label := "Summary LLM"
		if i > 0 {
			label = "  fallback"
		}
		printRow(label, p.Name+" / "+p.Model)
	}
	printRow("Style", cfg.Summary.Style)
	printRow("Temp dir", cfg.Audio.TempDir)
	if cfg.Audio.DeleteAfterProcessing {
		printRow("Retention", "delete")
	} else {
		printRow("Retention", "keep")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// Command voxrecap records voice conversations, transcribes them locally and
// writes a summary. It runs as a Discord bot (serve) or against the host
// microphone (record, mic-test).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxrecap/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "voxrecap: %v\n", err)
		return 1
	}
	return 0
}

// globals holds state shared by every subcommand.
type globals struct {
	configPath string
	logLevel   slog.LevelVar
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "voxrecap",
		Short:         "Record voice conversations, transcribe and summarize them",
		Long:          "voxrecap records every speaker of a voice channel, transcribes the audio locally and writes a Markdown summary.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "config.yaml", "path to the YAML or TOML configuration file")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newRecordCmd(g))
	root.AddCommand(newMicTestCmd(g))
	root.AddCommand(newSummarizeCmd(g))
	return root
}

// load reads the configuration file. A missing file falls back to the
// environment so the bot can run from variables alone.
func (g *globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("config file not found, using environment", "config", g.configPath)
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	g.logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &g.logLevel})))
	return cfg, nil
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

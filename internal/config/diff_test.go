package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/voxrecap/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Summary.Providers = []config.ProviderEntry{{Name: "openai", Model: "gpt-4o-mini"}}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level must not require a restart: %v", d.RestartRequired)
	}
}

func TestDiff_RetentionIsHotReloadable(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Audio.DeleteAfterProcessing = true

	d := config.Diff(old, new)
	if !d.RetentionChanged || !d.DeleteAfterProcessing {
		t.Errorf("diff = %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("retention must not require a restart: %v", d.RestartRequired)
	}
}

func TestDiff_StyleChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Summary.Style = "topicos"

	d := config.Diff(old, new)
	if !d.StyleChanged || d.NewStyle != "topicos" {
		t.Errorf("diff = %+v", d)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.ListenAddr = ":9090"
	new.Discord.Token = "changed"
	new.Audio.SilenceTimeout = 2 * time.Second
	new.Transcode.FFmpegPath = "/usr/local/bin/ffmpeg"
	new.Recognizer.Name = "sherpa"
	new.Summary.Providers = append(new.Summary.Providers, config.ProviderEntry{Name: "gemini"})

	d := config.Diff(old, new)
	want := []string{"server.listen_addr", "discord", "audio", "transcode", "recognizer", "summary.providers"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
}

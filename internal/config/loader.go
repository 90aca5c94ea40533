package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the format from the file extension. Anything other than
// ".toml" is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"recognizer": {"whisper", "sherpa"},
}

// Styles lists the accepted summary styles.
var Styles = []string{"simples", "detalhado", "topicos"}

// Environment variables read by [ApplyEnv].
const (
	EnvTempDirectory  = "TEMP_DIRECTORY"
	EnvDeleteAudio    = "DELETE_AUDIO_AFTER_PROCESSING"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvGoogleKey      = "GOOGLE_API_KEY"
	EnvDiscordToken   = "DISCORD_TOKEN"
	EnvDiscordClient  = "DISCORD_CLIENT_ID"
	EnvDiscordGuild   = "DISCORD_GUILD_ID"
	EnvModelPath      = "MODEL_PATH"
	placeholderPrefix = "sua_"
)

// Load reads the configuration file at path, applies environment overrides
// and defaults, and returns a validated [Config]. The format follows the
// file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	return parse(path, data)
}

// parse runs the full load sequence over the contents of the file at path.
func parse(path string, data []byte) (*Config, error) {
	cfg, err := decode(bytes.NewReader(data), FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from defaults and environment variables
// only. It is used when no configuration file is given.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a config in the given format from r, applies
// defaults and validates the result. Environment variables are not read.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg, err := decode(r, format)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, format Format) (*Config, error) {
	cfg := &Config{}
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: decode toml: unknown keys %s", strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the environment variables the bot has always
// honoured. lookup is usually [os.LookupEnv]. API keys fill the matching
// provider entry, or append one when none is configured. Placeholder values
// starting with "sua_" are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		if !ok || v == "" || strings.HasPrefix(v, placeholderPrefix) {
			return "", false
		}
		return v, true
	}

	if v, ok := get(EnvTempDirectory); ok {
		cfg.Audio.TempDir = v
	}
	if v, ok := get(EnvDeleteAudio); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvDeleteAudio, v, err)
		}
		cfg.Audio.DeleteAfterProcessing = b
	}
	if v, ok := get(EnvDiscordToken); ok {
		cfg.Discord.Token = v
	}
	if v, ok := get(EnvDiscordClient); ok {
		cfg.Discord.ClientID = v
	}
	if v, ok := get(EnvDiscordGuild); ok {
		cfg.Discord.GuildID = v
	}
	if v, ok := get(EnvModelPath); ok {
		cfg.Recognizer.ModelPath = v
	}
	if v, ok := get(EnvOpenAIKey); ok {
		setProviderKey(cfg, "openai", DefaultOpenAIModel, v)
	}
	if v, ok := get(EnvGoogleKey); ok {
		setProviderKey(cfg, "gemini", DefaultGeminiModel, v)
	}
	return nil
}

func setProviderKey(cfg *Config, name, model, key string) {
	found := false
	for i := range cfg.Summary.Providers {
		p := &cfg.Summary.Providers[i]
		if p.Name != name {
			continue
		}
		found = true
		if p.APIKey == "" {
			p.APIKey = key
		}
	}
	if !found {
		cfg.Summary.Providers = append(cfg.Summary.Providers, ProviderEntry{Name: name, Model: model, APIKey: key})
	}
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.Platform == "" {
		cfg.Audio.Platform = PlatformDiscord
	}
	if cfg.Audio.TempDir == "" {
		cfg.Audio.TempDir = DefaultTempDir
	}
	if cfg.Audio.SilenceTimeout == 0 {
		cfg.Audio.SilenceTimeout = DefaultSilenceTimeout
	}
	if cfg.Audio.MicTestWindow == 0 {
		cfg.Audio.MicTestWindow = DefaultMicTestWindow
	}
	if cfg.Transcode.FFmpegPath == "" {
		cfg.Transcode.FFmpegPath = DefaultFFmpegPath
	}
	if cfg.Transcode.Timeout == 0 {
		cfg.Transcode.Timeout = DefaultTranscodeLimit
	}
	if cfg.Recognizer.Name == "" {
		cfg.Recognizer.Name = DefaultRecognizer
	}
	if cfg.Recognizer.Language == "" {
		cfg.Recognizer.Language = DefaultLanguage
	}
	if cfg.Summary.Style == "" {
		cfg.Summary.Style = Styles[0]
	}
	if cfg.Summary.RemoteTimeout == 0 {
		cfg.Summary.RemoteTimeout = DefaultRemoteTimeout
	}
	if cfg.Summary.Breaker.MaxFailures == 0 {
		cfg.Summary.Breaker.MaxFailures = DefaultBreakerFailures
	}
	if cfg.Summary.Breaker.ResetTimeout == 0 {
		cfg.Summary.Breaker.ResetTimeout = DefaultBreakerReset
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.Platform != "" && !cfg.Audio.Platform.IsValid() {
		errs = append(errs, fmt.Errorf("audio.platform %q is invalid; valid values: discord, local", cfg.Audio.Platform))
	}
	if cfg.Audio.SilenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_timeout %s must not be negative", cfg.Audio.SilenceTimeout))
	}
	if cfg.Audio.MicTestWindow < 0 {
		errs = append(errs, fmt.Errorf("audio.mic_test_window %s must not be negative", cfg.Audio.MicTestWindow))
	}
	if cfg.Audio.Platform == PlatformDiscord && cfg.Discord.Token == "" {
		slog.Warn("audio.platform is discord but no bot token is configured; set discord.token or DISCORD_TOKEN")
	}

	// Transcode
	if cfg.Transcode.Timeout < 0 {
		errs = append(errs, fmt.Errorf("transcode.timeout %s must not be negative", cfg.Transcode.Timeout))
	}

	// Recognizer
	validateProviderName("recognizer", cfg.Recognizer.Name)
	if cfg.Recognizer.Threads < 0 {
		errs = append(errs, fmt.Errorf("recognizer.threads %d must not be negative", cfg.Recognizer.Threads))
	}
	switch cfg.Recognizer.Name {
	case "sherpa":
		s := cfg.Recognizer.Sherpa
		for _, f := range []struct{ key, val string }{
			{"encoder", s.Encoder}, {"decoder", s.Decoder}, {"joiner", s.Joiner}, {"tokens", s.Tokens},
		} {
			if f.val == "" {
				errs = append(errs, fmt.Errorf("recognizer.sherpa.%s is required when recognizer.name is sherpa", f.key))
			}
		}
	case "whisper":
		if cfg.Recognizer.ModelPath == "" {
			slog.Warn("recognizer.model_path is empty; recognition will fail until MODEL_PATH is set")
		}
	}

	// Summary
	if cfg.Summary.Style != "" && !slices.Contains(Styles, cfg.Summary.Style) {
		errs = append(errs, fmt.Errorf("summary.style %q is invalid; valid values: %s", cfg.Summary.Style, strings.Join(Styles, ", ")))
	}
	if cfg.Summary.RemoteTimeout < 0 {
		errs = append(errs, fmt.Errorf("summary.remote_timeout %s must not be negative", cfg.Summary.RemoteTimeout))
	}
	if cfg.Summary.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("summary.breaker.max_failures %d must not be negative", cfg.Summary.Breaker.MaxFailures))
	}
	if cfg.Summary.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("summary.breaker.reset_timeout %s must not be negative", cfg.Summary.Breaker.ResetTimeout))
	}
	seen := make(map[string]int, len(cfg.Summary.Providers))
	for i, p := range cfg.Summary.Providers {
		prefix := fmt.Sprintf("summary.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("llm", p.Name)
		key := p.Name + "/" + p.Model
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of summary.providers[%d]", prefix, key, prev))
		}
		seen[key] = i
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	sorted := slices.Clone(known)
	slices.Sort(sorted)
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", sorted,
	)
}

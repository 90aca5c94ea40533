// Package config provides the configuration schema, loader, watcher and
// provider registry for the voxrecap service.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Platform selects where audio is captured from.
type Platform string

const (
	// PlatformDiscord records Discord voice channels.
	PlatformDiscord Platform = "discord"

	// PlatformLocal records the default input device of the host.
	PlatformLocal Platform = "local"
)

// IsValid reports whether p is a recognised platform.
func (p Platform) IsValid() bool {
	return p == PlatformDiscord || p == PlatformLocal
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultTempDir         = "./temp"
	DefaultSilenceTimeout  = time.Second
	DefaultMicTestWindow   = 5 * time.Second
	DefaultFFmpegPath      = "ffmpeg"
	DefaultTranscodeLimit  = 2 * time.Minute
	DefaultRecognizer      = "whisper"
	DefaultLanguage        = "pt"
	DefaultRemoteTimeout   = 30 * time.Second
	DefaultBreakerFailures = 3
	DefaultBreakerReset    = 30 * time.Second
	DefaultOpenAIModel     = "gpt-3.5-turbo"
	DefaultGeminiModel     = "gemini-1.5-flash"
)

// Config is the root configuration structure. It is loaded from a YAML or
// TOML file with [Load], or from a reader with [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Discord    DiscordConfig    `yaml:"discord" toml:"discord"`
	Audio      AudioConfig      `yaml:"audio" toml:"audio"`
	Transcode  TranscodeConfig  `yaml:"transcode" toml:"transcode"`
	Recognizer RecognizerConfig `yaml:"recognizer" toml:"recognizer"`
	Summary    SummaryConfig    `yaml:"summary" toml:"summary"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health and metrics server
	// (e.g., ":8080"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`

	// LogLevel controls verbosity. It can be changed without a restart.
	LogLevel LogLevel `yaml:"log_level" toml:"log_level"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	Token    string `yaml:"token" toml:"token"`
	ClientID string `yaml:"client_id" toml:"client_id"`

	// GuildID scopes slash command registration to one guild. Empty
	// registers the commands globally.
	GuildID string `yaml:"guild_id" toml:"guild_id"`

	// RecorderRoleID, when set, restricts /resumir to members holding the
	// role. Administrators are always allowed.
	RecorderRoleID string `yaml:"recorder_role_id" toml:"recorder_role_id"`
}

// AudioConfig controls capture and retention of intermediate files.
type AudioConfig struct {
	Platform Platform `yaml:"platform" toml:"platform"`

	// TempDir receives the raw and waveform files of each session.
	TempDir string `yaml:"temp_dir" toml:"temp_dir"`

	// DeleteAfterProcessing removes the raw and waveform files of a
	// participant once recognition succeeded.
	DeleteAfterProcessing bool `yaml:"delete_after_processing" toml:"delete_after_processing"`

	// SilenceTimeout closes a participant's utterance after this much
	// silence. The next utterance appends to the same file.
	SilenceTimeout time.Duration `yaml:"silence_timeout" toml:"silence_timeout"`

	// MicTestWindow is the length of a microphone test.
	MicTestWindow time.Duration `yaml:"mic_test_window" toml:"mic_test_window"`
}

// TranscodeConfig configures the ffmpeg conversion.
type TranscodeConfig struct {
	FFmpegPath string        `yaml:"ffmpeg_path" toml:"ffmpeg_path"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
}

// RecognizerConfig selects and configures the speech recognition backend.
type RecognizerConfig struct {
	// Name selects the registered backend ("whisper" or "sherpa").
	Name string `yaml:"name" toml:"name"`

	// ModelPath is the whisper.cpp model file.
	ModelPath string `yaml:"model_path" toml:"model_path"`

	Language string `yaml:"language" toml:"language"`
	Threads  int    `yaml:"threads" toml:"threads"`

	// Sherpa holds the transducer files used by the sherpa backend.
	Sherpa SherpaConfig `yaml:"sherpa" toml:"sherpa"`
}

// SherpaConfig names the files of a sherpa-onnx transducer model.
type SherpaConfig struct {
	Encoder string `yaml:"encoder" toml:"encoder"`
	Decoder string `yaml:"decoder" toml:"decoder"`
	Joiner  string `yaml:"joiner" toml:"joiner"`
	Tokens  string `yaml:"tokens" toml:"tokens"`
}

// Paths lists the model files the backend needs on disk.
func (r RecognizerConfig) Paths() []string {
	if r.Name == "sherpa" {
		return []string{r.Sherpa.Encoder, r.Sherpa.Decoder, r.Sherpa.Joiner, r.Sherpa.Tokens}
	}
	return []string{r.ModelPath}
}

// SummaryConfig configures the remote summary tier.
type SummaryConfig struct {
	// Style is the default summary style ("simples", "detalhado", "topicos").
	Style string `yaml:"style" toml:"style"`

	// RemoteTimeout bounds one remote request.
	RemoteTimeout time.Duration `yaml:"remote_timeout" toml:"remote_timeout"`

	// Breaker configures the circuit breaker of each provider.
	Breaker BreakerConfig `yaml:"breaker" toml:"breaker"`

	// Providers are tried in order. An empty list disables the remote tier.
	Providers []ProviderEntry `yaml:"providers" toml:"providers"`
}

// BreakerConfig mirrors the circuit breaker tunables.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" toml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" toml:"reset_timeout"`
}

// ProviderEntry is the configuration block of one LLM provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "gemini").
	Name string `yaml:"name" toml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key" toml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model" toml:"model"`
}

package config

import "slices"

// ConfigDiff describes what changed between two configs. Hot-reloadable
// fields are reported individually; everything else only lands in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	RetentionChanged      bool
	DeleteAfterProcessing bool

	StyleChanged bool
	NewStyle     string

	// RestartRequired names the sections whose changes take effect only
	// after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.RetentionChanged && !d.StyleChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Audio.DeleteAfterProcessing != new.Audio.DeleteAfterProcessing {
		d.RetentionChanged = true
		d.DeleteAfterProcessing = new.Audio.DeleteAfterProcessing
	}
	if old.Summary.Style != new.Summary.Style {
		d.StyleChanged = true
		d.NewStyle = new.Summary.Style
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	oldAudio, newAudio := old.Audio, new.Audio
	oldAudio.DeleteAfterProcessing, newAudio.DeleteAfterProcessing = false, false
	if oldAudio != newAudio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Transcode != new.Transcode {
		d.RestartRequired = append(d.RestartRequired, "transcode")
	}
	if old.Recognizer != new.Recognizer {
		d.RestartRequired = append(d.RestartRequired, "recognizer")
	}
	if old.Summary.RemoteTimeout != new.Summary.RemoteTimeout ||
		old.Summary.Breaker != new.Summary.Breaker ||
		!slices.Equal(old.Summary.Providers, new.Summary.Providers) {
		d.RestartRequired = append(d.RestartRequired, "summary.providers")
	}
	return d
}

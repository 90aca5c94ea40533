package capture

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Format identifies the layout of an audio file on disk.
type Format int

const (
	// FormatRawPCM is headerless s16le, 48 kHz, stereo.
	FormatRawPCM Format = iota

	// FormatWaveform is a RIFF/WAVE file, 16 kHz, mono, 16-bit.
	FormatWaveform
)

// String returns a short description of the format.
func (f Format) String() string {
	switch f {
	case FormatRawPCM:
		return "pcm_s16le_48k_stereo"
	case FormatWaveform:
		return "wav_16k_mono"
	default:
		return "unknown"
	}
}

const (
	// RawExt is the extension of raw capture files.
	RawExt = ".pcm"

	// MinSignalBytes is the size below which a capture is treated as
	// silence: about 5 ms of 48 kHz stereo audio.
	MinSignalBytes = 1000
)

// FileRef describes the file captured for one participant.
type FileRef struct {
	Path          string
	Format        Format
	Size          int64
	ParticipantID string
	// Label is the participant's display name, empty if the platform did not
	// supply one.
	Label     string
	StartedAt time.Time
	// Utterances counts how often the file was opened, once per stretch of
	// speech separated by silence.
	Utterances int
	// Err is a *CaptureError when capture for this participant failed. The
	// file may still hold the audio written before the failure.
	Err error
}

// CaptureError reports a failure in one participant's capture task.
type CaptureError struct {
	ParticipantID string
	Path          string
	// Op is one of "create", "write", "decode".
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: %s %s (participant %s): %v", e.Op, filepath.Base(e.Path), e.ParticipantID, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// ErrBadFileName is returned by [ParseFileName] for names not produced by
// [FileName].
var ErrBadFileName = errors.New("capture: not a capture file name")

// FileName returns the raw capture file name for a participant:
// {roomID}_{participantID}_{startEpochMillis}.pcm.
func FileName(roomID, participantID string, start time.Time) string {
	return roomID + "_" + participantID + "_" + strconv.FormatInt(start.UnixMilli(), 10) + RawExt
}

// ParseFileName splits a name produced by [FileName]. Room identifiers must
// not contain underscores; participant identifiers may.
func ParseFileName(name string) (roomID, participantID string, start time.Time, err error) {
	base := filepath.Base(name)
	stem, ok := strings.CutSuffix(base, RawExt)
	if !ok {
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	rest, millis, ok := cutLast(stem, "_")
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("%w: %q", ErrBadFileName, base)
	}
	ms, perr := strconv.ParseInt(millis, 10, 64)
	if perr != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadFileName, base, perr)
	}
	roomID, participantID, ok = strings.Cut(rest, "_")
	if !ok || roomID == "" || participantID == "" {
		return "", "", time.Time{}, fmt.Errorf("%w: %q", ErrBadFileName, base)
	}
	return roomID, participantID, time.UnixMilli(ms), nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// Silent reports whether the capture holds too little audio to carry speech.
func (f FileRef) Silent() bool { return f.Size < MinSignalBytes }

package audio

import "time"

// Codec identifies how the payload of an [AudioFrame] is encoded.
type Codec int

const (
	// CodecPCM is signed 16-bit little-endian interleaved PCM.
	CodecPCM Codec = iota

	// CodecOpus is a single Opus packet as delivered by the voice gateway.
	CodecOpus
)

// String returns the lower-case codec name.
func (c Codec) String() string {
	switch c {
	case CodecPCM:
		return "pcm"
	case CodecOpus:
		return "opus"
	default:
		return "unknown"
	}
}

// AudioFrame is one unit of audio received from a participant.
//
// For [CodecOpus] frames, SampleRate and Channels describe the stream the
// packet decodes to (48 kHz stereo on Discord), not the compressed payload.
type AudioFrame struct {
	// Data is the encoded payload. Interpretation depends on Codec.
	Data []byte

	// Codec selects the payload encoding.
	Codec Codec

	// SampleRate in Hz (48000 for Discord voice).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

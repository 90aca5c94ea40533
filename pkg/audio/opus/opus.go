// Package opus decodes the Opus packets received from a voice gateway into
// 16-bit PCM using the layeh.com/gopus bindings.
package opus

import (
	"fmt"

	"layeh.com/gopus"
)

// Discord voice is 48 kHz stereo Opus with 20 ms frames.
const (
	SampleRate  = 48000
	Channels    = 2
	FrameSizeMs = 20

	// FrameSize is the number of samples per channel in one frame.
	FrameSize = SampleRate * FrameSizeMs / 1000 // 960
)

// Decoder turns Opus packets of a single stream into interleaved
// little-endian PCM. Decoders carry inter-packet state, so each participant
// needs its own. A Decoder is not safe for concurrent use.
type Decoder struct {
	dec *gopus.Decoder
}

// NewDecoder creates a 48 kHz stereo decoder.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes one packet into PCM bytes.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, FrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("opus: decode: %w", err)
	}
	return Int16sToBytes(pcm), nil
}

// Encoder is the inverse of [Decoder]. voxrecap only receives audio; the
// encoder produces fixtures for decoder and capture tests.
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder creates a 48 kHz stereo voice encoder.
func NewEncoder() (*Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("opus: create encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// Encode compresses exactly one frame (FrameSize*Channels samples) of PCM.
func (e *Encoder) Encode(pcm []byte) ([]byte, error) {
	pkt, err := e.enc.Encode(BytesToInt16s(pcm), FrameSize, len(pcm))
	if err != nil {
		return nil, fmt.Errorf("opus: encode: %w", err)
	}
	return pkt, nil
}

// Int16sToBytes converts samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to samples. A trailing odd
// byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

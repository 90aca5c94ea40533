package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// CaptureFormat is the layout of every raw capture file: 48 kHz, stereo,
// signed 16-bit little-endian.
var CaptureFormat = Format{SampleRate: 48000, Channels: 2}

// FormatConverter normalises PCM frames to a target format. Only mono and
// stereo sources are supported. Create one per stream.
type FormatConverter struct {
	Target Format

	warnOnce sync.Once
}

// Convert returns frame converted to c.Target. Frames already in the target
// format are returned unchanged. Frames with a truncated sample are dropped
// and come back with empty Data.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	out := AudioFrame{
		Codec:      CodecPCM,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
	if frame.Channels <= 0 || len(frame.Data)%(2*frame.Channels) != 0 {
		return out
	}
	src := Format{SampleRate: frame.SampleRate, Channels: frame.Channels}
	if src == c.Target {
		return frame
	}
	c.warnOnce.Do(func() {
		slog.Debug("audio: converting capture format", "from", src.String(), "to", c.Target.String())
	})

	pcm := Resample16(frame.Data, frame.Channels, frame.SampleRate, c.Target.SampleRate)
	switch {
	case frame.Channels == 1 && c.Target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case frame.Channels == 2 && c.Target.Channels == 1:
		pcm = StereoToMono(pcm)
	}
	out.Data = pcm
	return out
}

// MonoToStereo duplicates every 16-bit mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, 0, len(pcm)*2)
	for i := 0; i+1 < len(pcm); i += 2 {
		out = append(out, pcm[i], pcm[i+1], pcm[i], pcm[i+1])
	}
	return out
}

// StereoToMono averages each L+R pair of 16-bit samples.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		r := int32(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16((l+r)/2)))
	}
	return out
}

// Resample16 converts interleaved 16-bit PCM with the given channel count
// from srcRate to dstRate using linear interpolation. The input is returned
// unchanged when the rates match or either rate is not positive.
func Resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || channels <= 0 {
		return pcm
	}
	stride := 2 * channels
	srcFrames := len(pcm) / stride
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	out := make([]byte, dstFrames*stride)
	ratio := float64(srcRate) / float64(dstRate)

	sample := func(frame, ch int) float64 {
		if frame >= srcFrames {
			frame = srcFrames - 1
		}
		return float64(int16(binary.LittleEndian.Uint16(pcm[frame*stride+ch*2:])))
	}
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		for ch := range channels {
			v := sample(idx, ch)*(1-frac) + sample(idx+1, ch)*frac
			binary.LittleEndian.PutUint16(out[i*stride+ch*2:], uint16(int16(v)))
		}
	}
	return out
}

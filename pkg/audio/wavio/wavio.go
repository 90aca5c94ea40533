// Package wavio reads and writes the RIFF/WAVE files exchanged between the
// transcoder and the recognizers, using github.com/go-audio/wav.
package wavio

import (
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// ErrInvalid is returned when a file is not a readable PCM WAV.
var ErrInvalid = errors.New("wavio: not a valid PCM wav file")

// Clip is a decoded WAV file downmixed to mono float samples in [-1, 1].
type Clip struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []float32
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Read decodes the WAV at path. A valid file with an empty data chunk yields
// a Clip with no samples.
func Read(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: open %q: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, path, err)
	}
	if d.NumChans < 1 || d.BitDepth < 8 || (d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible) {
		return nil, fmt.Errorf("%w: %q (channels=%d bits=%d format=%d)", ErrInvalid, path, d.NumChans, d.BitDepth, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, path, err)
	}

	clip := &Clip{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	clip.Samples = downmix(buf.Data, clip.Channels, clip.BitDepth)
	return clip, nil
}

// downmix averages interleaved integer samples into normalised mono floats.
func downmix(data []int, channels, bitDepth int) []float32 {
	scale := float32(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		scale = 128
	}
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			v := data[i*channels+ch]
			if bitDepth == 8 {
				v -= 128
			}
			sum += float32(v)
		}
		out[i] = sum / float32(channels) / scale
	}
	return out
}

// WriteMono16 writes 16-bit mono PCM samples to path.
func WriteMono16(path string, sampleRate int, samples []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create %q: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("wavio: write %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("wavio: finalize %q: %w", path, err)
	}
	return f.Close()
}

package audio_test

import (
	"encoding/binary"
	"slices"
	"testing"

	"github.com/MrWong99/voxrecap/pkg/audio"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func samples16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func TestMonoToStereo(t *testing.T) {
	t.Parallel()
	got := samples16(audio.MonoToStereo(pcm16(100, -200, 300)))
	want := []int16{100, 100, -200, -200, 300, 300}
	if !slices.Equal(got, want) {
		t.Errorf("MonoToStereo = %v, want %v", got, want)
	}
}

func TestMonoToStereo_TrailingByteIgnored(t *testing.T) {
	t.Parallel()
	got := audio.MonoToStereo([]byte{0x01, 0x02, 0x03})
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []int16
		want []int16
	}{
		{name: "average", in: []int16{100, 200, -100, -200}, want: []int16{150, -150}},
		{name: "extremes", in: []int16{32767, 32767, -32768, -32768}, want: []int16{32767, -32768}},
		{name: "empty", in: nil, want: []int16{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := samples16(audio.StereoToMono(pcm16(tc.in...)))
			if !slices.Equal(got, tc.want) {
				t.Errorf("StereoToMono = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResample16(t *testing.T) {
	t.Parallel()

	t.Run("same rate returns input", func(t *testing.T) {
		t.Parallel()
		in := pcm16(1, 2, 3, 4)
		if got := audio.Resample16(in, 1, 16000, 16000); !slices.Equal(got, in) {
			t.Errorf("got %v, want input unchanged", got)
		}
	})

	t.Run("invalid rate returns input", func(t *testing.T) {
		t.Parallel()
		in := pcm16(1, 2)
		if got := audio.Resample16(in, 1, 0, 16000); !slices.Equal(got, in) {
			t.Errorf("got %v, want input unchanged", got)
		}
	})

	t.Run("mono upsample interpolates", func(t *testing.T) {
		t.Parallel()
		got := samples16(audio.Resample16(pcm16(0, 100), 1, 8000, 16000))
		want := []int16{0, 50, 100, 100}
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("stereo downsample keeps channels apart", func(t *testing.T) {
		t.Parallel()
		got := samples16(audio.Resample16(pcm16(10, -10, 20, -20, 30, -30, 40, -40), 2, 48000, 24000))
		want := []int16{10, -10, 30, -30}
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestFormatConverter(t *testing.T) {
	t.Parallel()

	t.Run("matching format is passthrough", func(t *testing.T) {
		t.Parallel()
		c := audio.FormatConverter{Target: audio.CaptureFormat}
		in := audio.AudioFrame{Data: pcm16(1, 2, 3, 4), SampleRate: 48000, Channels: 2}
		out := c.Convert(in)
		if !slices.Equal(out.Data, in.Data) {
			t.Errorf("Data = %v, want %v", out.Data, in.Data)
		}
	})

	t.Run("mono 24k to capture format", func(t *testing.T) {
		t.Parallel()
		c := audio.FormatConverter{Target: audio.CaptureFormat}
		out := c.Convert(audio.AudioFrame{Data: pcm16(0, 100), SampleRate: 24000, Channels: 1})
		if out.SampleRate != 48000 || out.Channels != 2 {
			t.Fatalf("format = %dHz/%dch, want 48000Hz/2ch", out.SampleRate, out.Channels)
		}
		want := []int16{0, 0, 50, 50, 100, 100, 100, 100}
		if got := samples16(out.Data); !slices.Equal(got, want) {
			t.Errorf("Data = %v, want %v", got, want)
		}
	})

	t.Run("truncated sample is dropped", func(t *testing.T) {
		t.Parallel()
		c := audio.FormatConverter{Target: audio.CaptureFormat}
		out := c.Convert(audio.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 48000, Channels: 2})
		if len(out.Data) != 0 {
			t.Errorf("len(Data) = %d, want 0", len(out.Data))
		}
	})
}

func TestFormat_String(t *testing.T) {
	t.Parallel()
	tests := map[audio.Format]string{
		{SampleRate: 48000, Channels: 2}: "48000Hz stereo",
		{SampleRate: 16000, Channels: 1}: "16000Hz mono",
		{SampleRate: 44100, Channels: 6}: "44100Hz 6ch",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", f, got, want)
		}
	}
}

func TestCodec_String(t *testing.T) {
	t.Parallel()
	if got := audio.CodecOpus.String(); got != "opus" {
		t.Errorf("CodecOpus.String() = %q", got)
	}
	if got := audio.Codec(42).String(); got != "unknown" {
		t.Errorf("Codec(42).String() = %q", got)
	}
}

package opus

import (
	"slices"
	"testing"
)

func TestInt16Roundtrip(t *testing.T) {
	t.Parallel()
	in := []int16{0, 1, -1, 32767, -32768, 1234}
	if got := BytesToInt16s(Int16sToBytes(in)); !slices.Equal(got, in) {
		t.Errorf("roundtrip = %v, want %v", got, in)
	}
}

func TestBytesToInt16s_OddLength(t *testing.T) {
	t.Parallel()
	if got := BytesToInt16s([]byte{1, 0, 9}); len(got) != 1 || got[0] != 1 {
		t.Errorf("BytesToInt16s = %v, want [1]", got)
	}
}

func TestDecode_SilenceFrame(t *testing.T) {
	t.Parallel()

	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	frame := make([]byte, FrameSize*Channels*2)
	pkt, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	pcm, err := dec.Decode(pkt)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pcm) != len(frame) {
		t.Errorf("decoded %d bytes, want %d", len(pcm), len(frame))
	}
}

func TestDecode_Garbage(t *testing.T) {
	t.Parallel()
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Decode(nil); err == nil {
		t.Error("expected error decoding empty packet")
	}
}

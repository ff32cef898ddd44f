package audio

import (
	"bytes"
	"testing"

	"github.com/go-audio/wav"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x7f}
	out, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("RIFF")) || !bytes.Equal(out[8:12], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE header: %q", out[:12])
	}

	dec := wav.NewDecoder(bytes.NewReader(out))
	if !dec.IsValidFile() {
		t.Fatalf("decoder rejected output")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format: rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{1, -1, -32768}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d: want %d got %d", i, want[i], buf.Data[i])
		}
	}
}

func TestEncodeWAVRejectsBadFormat(t *testing.T) {
	t.Parallel()

	if _, err := EncodeWAV([]byte{0, 0}, 0, 1); err == nil {
		t.Fatalf("expected sample rate error")
	}
	if _, err := EncodeWAV([]byte{0, 0}, 16000, 0); err == nil {
		t.Fatalf("expected channel error")
	}
}

func TestMemBufferSeekPatchesInPlace(t *testing.T) {
	t.Parallel()

	m := &memBuffer{}
	_, _ = m.Write([]byte("abcdef"))
	if _, err := m.Seek(1, 0); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	_, _ = m.Write([]byte("XY"))
	if string(m.Bytes()) != "aXYdef" {
		t.Fatalf("unexpected buffer: %q", m.Bytes())
	}
	if _, err := m.Seek(-10, 1); err == nil {
		t.Fatalf("expected negative position error")
	}
}

package client

import "testing"

func TestApplyVolume16Mute(t *testing.T) {
	pcm := []byte{0x10, 0x27, 0x10, 0x27} // two samples of 10000 LE
	applyVolume16(pcm, 50, true)
	for i, b := range pcm {
		if b != 0 {
			t.Errorf("byte %d: expected 0 when muted, got %d", i, b)
		}
	}
}

func TestApplyVolume16FullVolumeNoop(t *testing.T) {
	pcm := []byte{0x10, 0x27, 0x10, 0x27}
	orig := append([]byte(nil), pcm...)
	applyVolume16(pcm, 100, false)
	for i := range pcm {
		if pcm[i] != orig[i] {
			t.Errorf("byte %d changed at full volume: %d != %d", i, pcm[i], orig[i])
		}
	}
}

func TestApplyVolume16HalfScalesDown(t *testing.T) {
	pcm := []byte{0x10, 0x27} // 10000 LE
	applyVolume16(pcm, 50, false)
	got := int16(uint16(pcm[0]) | uint16(pcm[1])<<8)
	if got != 5000 {
		t.Errorf("expected ~5000 at half volume, got %d", got)
	}
}

func TestSinkReadFallsBackToSilenceWithoutBuffer(t *testing.T) {
	s := NewSink()
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xFF
	}
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(buf) {
		t.Errorf("expected to fill full buffer, got %d", n)
	}
	for i, b := range buf {
		if b != 0 {
			t.Errorf("byte %d: expected silence, got %d", i, b)
		}
	}
}

package codec

import (
	"testing"
	"time"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

func TestEncoderChainAdvancesMonotonically(t *testing.T) {
	format := audio.SampleFormat{Rate: 48000, Bits: 16, Channels: 2}
	enc, _ := NewEncoder("pcm", format)
	chain := NewEncoderChain(enc, format, 0)

	samples := make([]int32, 960) // 480 frames = 10ms at 48kHz stereo
	chunk1, err := chain.EncodeChunk(samples)
	if err != nil {
		t.Fatalf("EncodeChunk failed: %v", err)
	}
	chunk2, err := chain.EncodeChunk(samples)
	if err != nil {
		t.Fatalf("EncodeChunk failed: %v", err)
	}

	if chunk1.RecordingStart != 0 {
		t.Errorf("expected first chunk at 0, got %v", chunk1.RecordingStart)
	}
	expectedGap := 10 * time.Millisecond
	if got := chunk2.RecordingStart - chunk1.RecordingStart; got != expectedGap {
		t.Errorf("expected gap %v, got %v", expectedGap, got)
	}
}

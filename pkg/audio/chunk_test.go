package audio

import (
	"testing"
	"time"
)

func testFormat() SampleFormat {
	return SampleFormat{Rate: 48000, Bits: 16, Channels: 2}
}

func TestNewChunkBadPayload(t *testing.T) {
	_, err := NewChunk(testFormat(), 0, []byte{1, 2, 3})
	if err != ErrBadPayload {
		t.Errorf("expected ErrBadPayload, got %v", err)
	}
}

func TestChunkFrameCount(t *testing.T) {
	format := testFormat()
	payload := make([]byte, format.FrameSize()*10)
	c, err := NewChunk(format, 0, payload)
	if err != nil {
		t.Fatal(err)
	}
	if c.FrameCount() != 10 {
		t.Errorf("expected 10 frames, got %d", c.FrameCount())
	}
}

func TestChunkReadFramesAdvancesStart(t *testing.T) {
	format := testFormat()
	payload := make([]byte, format.FrameSize()*480) // 10ms at 48kHz
	c, _ := NewChunk(format, 0, payload)

	before := c.Start()
	_, n := c.ReadFrames(240)
	if n != 240 {
		t.Fatalf("expected 240 frames read, got %d", n)
	}
	after := c.Start()
	expectedAdvance := time.Duration(240) * time.Second / time.Duration(format.Rate)
	if got := after - before; got != expectedAdvance {
		t.Errorf("expected start to advance by %v, advanced by %v", expectedAdvance, got)
	}
}

func TestChunkDurationUnaffectedByCursor(t *testing.T) {
	format := testFormat()
	payload := make([]byte, format.FrameSize()*480)
	c, _ := NewChunk(format, 0, payload)

	d1 := c.Duration()
	c.ReadFrames(100)
	d2 := c.Duration()
	if d1 != d2 {
		t.Errorf("duration changed after read: %v != %v", d1, d2)
	}
}

func TestChunkSeekClamps(t *testing.T) {
	format := testFormat()
	payload := make([]byte, format.FrameSize()*10)
	c, _ := NewChunk(format, 0, payload)

	c.Seek(-5)
	if c.ReadIdx != 0 {
		t.Errorf("expected clamp to 0, got %d", c.ReadIdx)
	}
	c.Seek(1000)
	if c.ReadIdx != 10 {
		t.Errorf("expected clamp to 10, got %d", c.ReadIdx)
	}
}

func TestChunkReadFramesExhausted(t *testing.T) {
	format := testFormat()
	payload := make([]byte, format.FrameSize()*5)
	c, _ := NewChunk(format, 0, payload)

	_, n := c.ReadFrames(10)
	if n != 5 {
		t.Errorf("expected capped to 5 frames, got %d", n)
	}
	if !c.Exhausted() {
		t.Error("expected chunk to be exhausted")
	}
	_, n2 := c.ReadFrames(1)
	if n2 != 0 {
		t.Errorf("expected 0 frames from exhausted chunk, got %d", n2)
	}
}

package jitterbuffer

import (
	"testing"
	"time"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

func testFormat() audio.SampleFormat {
	return audio.SampleFormat{Rate: 48000, Bits: 16, Channels: 2}
}

func makeChunk(t *testing.T, format audio.SampleFormat, start time.Duration, frames int) *audio.Chunk {
	t.Helper()
	payload := make([]byte, frames*format.FrameSize())
	c, err := audio.NewChunk(format, start, payload)
	if err != nil {
		t.Fatalf("NewChunk failed: %v", err)
	}
	return c
}

func fixedClock(t time.Duration) Clock {
	return func() time.Duration { return t }
}

func TestGetPlayerChunkEmptyQueueReturnsFalse(t *testing.T) {
	format := testFormat()
	b := New(format, time.Second, fixedClock(0))

	out := make([]byte, 480*format.FrameSize())
	if ok := b.GetPlayerChunk(out, 0, 480); ok {
		t.Fatal("expected false for empty queue")
	}
}

func TestAddChunkDropsStaleOnArrival(t *testing.T) {
	format := testFormat()
	now := 10 * time.Second
	b := New(format, time.Second, fixedClock(now))

	stale := makeChunk(t, format, now-7*time.Second, 480) // age 7s > 5s+1s buffer
	b.AddChunk(stale)
	if b.Len() != 0 {
		t.Errorf("expected stale chunk to be dropped, len=%d", b.Len())
	}
}

func TestAddChunkOrdersByStart(t *testing.T) {
	format := testFormat()
	b := New(format, time.Second, fixedClock(0))

	c2 := makeChunk(t, format, 20*time.Millisecond, 480)
	c1 := makeChunk(t, format, 10*time.Millisecond, 480)
	b.AddChunk(c2)
	b.AddChunk(c1)

	if b.queue[0].Start() != 10*time.Millisecond {
		t.Errorf("expected first chunk at 10ms, got %v", b.queue[0].Start())
	}
}

// Scenario B: chunk arrives on time, age ~= -chunk_duration, hard sync.
func TestHardSyncChunkOnTime(t *testing.T) {
	format := testFormat()
	bufferMs := time.Second
	serverNow := 10 * time.Second
	b := New(format, bufferMs, fixedClock(serverNow))

	start := serverNow - 980*time.Millisecond // age = -20ms
	chunk := makeChunk(t, format, start, 960) // 20ms of frames at 48kHz
	b.AddChunk(chunk)

	frames := 960
	out := make([]byte, frames*format.FrameSize())
	ok := b.GetPlayerChunk(out, 0, frames)
	if !ok {
		t.Fatal("expected success")
	}
	if b.hardSync {
		t.Error("expected hard sync to clear after on-time chunk")
	}
}

// Scenario C: chunk arrives 100ms late; hard sync fast-forwards.
func TestHardSyncFastForwardOnLateChunk(t *testing.T) {
	format := testFormat()
	bufferMs := time.Second
	serverNow := 10 * time.Second
	b := New(format, bufferMs, fixedClock(serverNow))

	start := serverNow - 1100*time.Millisecond // age = +100ms
	chunk := makeChunk(t, format, start, 9600) // 200ms of frames; the first 100ms are already late
	b.AddChunk(chunk)

	frames := 480 // 10ms request
	out := make([]byte, frames*format.FrameSize())
	ok := b.GetPlayerChunk(out, 0, frames)
	if !ok {
		t.Fatal("expected success")
	}
	if b.hardSync {
		t.Error("expected hard sync to clear after fast-forward")
	}
}

func TestGetPlayerChunkFarFutureFillsSilence(t *testing.T) {
	format := testFormat()
	bufferMs := time.Second
	serverNow := 10 * time.Second
	b := New(format, bufferMs, fixedClock(serverNow))

	// age = now - start - bufferMs = way negative (chunk far in the future)
	start := serverNow + 5*time.Second
	chunk := makeChunk(t, format, start, 480)
	b.AddChunk(chunk)

	frames := 480
	out := make([]byte, frames*format.FrameSize())
	for i := range out {
		out[i] = 0xFF
	}
	ok := b.GetPlayerChunk(out, 0, frames)
	if !ok {
		t.Fatal("expected success (silence fill)")
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected silence at byte %d, got %d", i, v)
		}
	}
}

func TestRedistributeFramesDrop(t *testing.T) {
	frameSize := 2
	srcFrames := 10
	src := make([]byte, srcFrames*frameSize)
	for i := 0; i < srcFrames; i++ {
		src[i*frameSize] = byte(i)
	}

	out := redistributeFrames(src, srcFrames, 2, frameSize) // drop 2 -> 8 frames
	if len(out) != 8*frameSize {
		t.Fatalf("expected 8 frames, got %d", len(out)/frameSize)
	}
}

func TestRedistributeFramesInsert(t *testing.T) {
	frameSize := 2
	srcFrames := 8
	src := make([]byte, srcFrames*frameSize)
	for i := 0; i < srcFrames; i++ {
		src[i*frameSize] = byte(i)
	}

	out := redistributeFrames(src, srcFrames, -2, frameSize) // insert 2 -> 10 frames
	if len(out) != 10*frameSize {
		t.Fatalf("expected 10 frames, got %d", len(out)/frameSize)
	}
}

func TestRollingWindowMedianOddEven(t *testing.T) {
	w := newRollingWindow(5)
	for _, v := range []time.Duration{1, 3, 2, 5, 4} {
		w.Add(v * time.Millisecond)
	}
	if got := w.Median(); got != 3*time.Millisecond {
		t.Errorf("expected median 3ms, got %v", got)
	}

	even := newRollingWindow(4)
	for _, v := range []time.Duration{4, 1, 3, 2} {
		even.Add(v * time.Millisecond)
	}
	if got := even.Median(); got != 2500*time.Microsecond {
		t.Errorf("expected median 2.5ms, got %v", got)
	}
}

func TestRollingWindowResetClears(t *testing.T) {
	w := newRollingWindow(3)
	w.Add(time.Millisecond)
	w.Add(time.Millisecond)
	w.Reset()
	if w.count() != 0 {
		t.Errorf("expected count 0 after reset, got %d", w.count())
	}
}

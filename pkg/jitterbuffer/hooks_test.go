package jitterbuffer

import (
	"testing"
	"time"
)

func TestOnHardSyncFiresOnReentry(t *testing.T) {
	format := testFormat()
	bufferMs := time.Second
	serverNow := 10 * time.Second
	b := New(format, bufferMs, fixedClock(serverNow))

	var fired bool
	b.OnHardSync(func() { fired = true })

	// Clear the initial hard-sync state with an on-time chunk first.
	start := serverNow - 980*time.Millisecond
	b.AddChunk(makeChunk(t, format, start, 960))
	out := make([]byte, 960*format.FrameSize())
	if ok := b.GetPlayerChunk(out, 0, 960); !ok {
		t.Fatal("expected success")
	}
	if fired {
		t.Fatal("hook should not fire for the initial default hard-sync state")
	}

	// Force re-entry into hard sync via the decision path directly.
	b.decideNextSyncAction(ageHardSync + time.Millisecond)
	if !fired {
		t.Fatal("expected OnHardSync to fire on re-entry")
	}
}

func TestOnSoftSyncReportsDirection(t *testing.T) {
	format := testFormat()
	b := New(format, time.Second, fixedClock(0))

	var gotDirection string
	b.OnSoftSync(func(direction string) { gotDirection = direction })

	b.setCorrection(0.9995) // rateFactor < 1 => drop
	if gotDirection != "drop" {
		t.Fatalf("expected drop, got %q", gotDirection)
	}

	b.setCorrection(1.0005) // rateFactor > 1 => insert
	if gotDirection != "insert" {
		t.Fatalf("expected insert, got %q", gotDirection)
	}
}

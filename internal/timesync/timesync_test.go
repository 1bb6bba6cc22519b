package timesync

import (
	"math/rand"
	"testing"
	"time"
)

func TestObserveComputesOffset(t *testing.T) {
	s := New()
	t1 := 1000 * time.Microsecond
	t2 := 1002 * time.Microsecond
	t3 := 1003 * time.Microsecond
	t4 := 1006 * time.Microsecond

	if ok := s.Observe(t1, t2, t3, t4); !ok {
		t.Fatal("expected sample to be accepted")
	}

	// offset = ((t2-t1)+(t3-t4))/2 = ((2)+( -3))/2 = -0.5us
	expected := -500 * time.Nanosecond
	if got := s.Offset(); got != expected {
		t.Errorf("expected offset %v, got %v", expected, got)
	}
}

func TestObserveDiscardsHighRTT(t *testing.T) {
	s := New()
	ok := s.Observe(0, 200*time.Millisecond, 200*time.Millisecond, 400*time.Millisecond)
	if ok {
		t.Fatal("expected high-RTT sample to be discarded")
	}
	if got := s.Offset(); got != 0 {
		t.Errorf("expected offset unchanged at 0, got %v", got)
	}
}

func TestMedianConvergesUnderNoise(t *testing.T) {
	s := New()
	trueOffset := 123456 * time.Microsecond
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		noise := time.Duration(rng.Intn(1000)-500) * time.Microsecond
		t1 := time.Duration(i) * time.Second
		t2 := t1 + trueOffset + noise/2
		t3 := t2 + time.Millisecond
		t4 := t1 + 2*time.Millisecond
		s.Observe(t1, t2, t3, t4)
	}

	offset := s.Offset()
	diff := offset - trueOffset
	if diff < 0 {
		diff = -diff
	}
	if diff > 5*time.Millisecond {
		t.Errorf("expected convergence within 5ms of %v, got %v (diff %v)", trueOffset, offset, diff)
	}
}

func TestServerNowRoundTrip(t *testing.T) {
	s := New()
	s.Observe(0, 100*time.Millisecond, 100*time.Millisecond, 0)

	local := 5 * time.Second
	server := s.ServerNow(local)
	back := s.LocalFromServer(server)
	if back != local {
		t.Errorf("expected round trip to %v, got %v", local, back)
	}
}

func TestCheckQualityLostAfterSilence(t *testing.T) {
	s := New()
	s.Observe(0, time.Millisecond, time.Millisecond, 0)
	s.lastSync = time.Now().Add(-10 * time.Second)
	if q := s.CheckQuality(); q != QualityLost {
		t.Errorf("expected QualityLost, got %v", q)
	}
}

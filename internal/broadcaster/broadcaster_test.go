package broadcaster

import (
	"net"
	"testing"
	"time"

	"github.com/airwave-audio/airwave-go/internal/transport"
	"github.com/airwave-audio/airwave-go/pkg/audio"
)

func pipeSessions() (transport.Session, transport.Session) {
	a, b := net.Pipe()
	return transport.NewTCPSession(a), transport.NewTCPSession(b)
}

func TestEnqueueDropsStaleChunks(t *testing.T) {
	clientT, serverT := pipeSessions()
	defer clientT.Close()
	defer serverT.Close()

	now := 10 * time.Second
	clock := func() time.Duration { return now }
	sess := NewSession("client-1", clientT, time.Second, clock)

	format := audio.SampleFormat{Rate: 48000, Bits: 16, Channels: 2}
	stale, _ := audio.NewChunk(format, now-5*time.Second, make([]byte, format.FrameSize()*10))
	fresh, _ := audio.NewChunk(format, now-500*time.Millisecond, make([]byte, format.FrameSize()*10))

	sess.Enqueue("pcm", stale)
	sess.Enqueue("pcm", fresh)

	if depth := sess.QueueDepth(); depth != 1 {
		t.Errorf("expected 1 chunk after drop, got %d", depth)
	}
}

func TestBroadcasterPublishFansOut(t *testing.T) {
	clientT1, serverT1 := pipeSessions()
	clientT2, serverT2 := pipeSessions()
	defer clientT1.Close()
	defer serverT1.Close()
	defer clientT2.Close()
	defer serverT2.Close()

	now := time.Second
	clock := func() time.Duration { return now }
	s1 := NewSession("c1", serverT1, time.Second, clock)
	s2 := NewSession("c2", serverT2, time.Second, clock)

	b := New()
	b.Subscribe("stream-a", s1)
	b.Subscribe("stream-a", s2)

	format := audio.SampleFormat{Rate: 48000, Bits: 16, Channels: 2}
	chunk, _ := audio.NewChunk(format, now, make([]byte, format.FrameSize()*10))
	b.Publish("stream-a", "pcm", chunk)

	if s1.QueueDepth() != 1 {
		t.Errorf("expected session 1 to have 1 queued chunk, got %d", s1.QueueDepth())
	}
	if s2.QueueDepth() != 1 {
		t.Errorf("expected session 2 to have 1 queued chunk, got %d", s2.QueueDepth())
	}
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	clientT, serverT := pipeSessions()
	defer clientT.Close()
	defer serverT.Close()

	clock := func() time.Duration { return time.Second }
	s := NewSession("c1", serverT, time.Second, clock)

	b := New()
	b.Subscribe("stream-a", s)
	b.Unsubscribe("stream-a", "c1")

	if count := b.SessionCount("stream-a"); count != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", count)
	}
}

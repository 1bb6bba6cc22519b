package client

import (
	"net"
	"testing"
	"time"

	"github.com/airwave-audio/airwave-go/internal/transport"
	"github.com/airwave-audio/airwave-go/internal/wire"
)

func TestHandshakeSendsHelloAndAppliesServerSettings(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	clientT := transport.NewTCPSession(clientConn)
	serverT := transport.NewTCPSession(serverConn)
	defer clientT.Close()
	defer serverT.Close()

	c := New(Config{HostName: "test-host", ID: "client-1"}, clientT)

	serverDone := make(chan error, 1)
	go func() {
		msg, err := serverT.ReadMessage()
		if err != nil {
			serverDone <- err
			return
		}
		if msg.Header.Type != wire.TypeHello {
			serverDone <- err
			return
		}
		var hello wire.Hello
		if err := wire.DecodeJSONPayload(msg.Payload, &hello); err != nil {
			serverDone <- err
			return
		}
		if hello.ID != "client-1" {
			serverDone <- err
			return
		}

		payload, _ := wire.EncodeJSONPayload(wire.ServerSettings{BufferMs: 500, Volume: 80, Muted: false})
		h := wire.Header{Type: wire.TypeServerSettings}
		serverDone <- serverT.WriteMessage(h, payload)
	}()

	if err := c.handshake(); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server side failed: %v", err)
	}

	if c.bufferMs != 500*time.Millisecond {
		t.Errorf("expected bufferMs=500ms, got %v", c.bufferMs)
	}
	if c.sink.Volume() != 80 {
		t.Errorf("expected volume 80, got %d", c.sink.Volume())
	}
}

func TestOnTimeReplyFeedsTimeSync(t *testing.T) {
	clientConn, _ := net.Pipe()
	clientT := transport.NewTCPSession(clientConn)
	defer clientT.Close()

	c := New(Config{ID: "client-1"}, clientT)

	// Sent 20ms ago, so the 5ms the server held the request leaves a
	// positive round trip.
	t1 := c.localNow() - 20*time.Millisecond
	c.mu.Lock()
	c.pendingTimeReqs[7]= &pendingTimeRequest{sentAt: t1, timer: time.NewTimer(requestTimeout)}
	c.mu.Unlock()

	h := wire.Header{
		Type:     wire.TypeTime,
		RefersTo: 7,
		Sent:     wire.TVFromDuration(t1 + 10*time.Millisecond),
		Received: wire.TVFromDuration(t1 + 5*time.Millisecond),
	}
	c.onTimeReply(h)

	_, rtt, _ := c.Stats()
	if rtt <= 0 {
		t.Errorf("expected a positive rtt after one observation, got %v", rtt)
	}

	c.mu.Lock()
	_, stillPending := c.pendingTimeReqs[7]
	c.mu.Unlock()
	if stillPending {
		t.Error("expected pending time request to be cleared after reply")
	}
}

func TestExpireTimeRequestRemovesPendingEntry(t *testing.T) {
	clientConn, _ := net.Pipe()
	clientT := transport.NewTCPSession(clientConn)
	defer clientT.Close()

	c := New(Config{ID: "client-1"}, clientT)

	c.mu.Lock()
	c.pendingTimeReqs[3] = &pendingTimeRequest{sentAt: c.localNow(), timer: time.NewTimer(time.Hour)}
	c.mu.Unlock()

	c.expireTimeRequest(3)

	c.mu.Lock()
	_, stillPending := c.pendingTimeReqs[3]
	c.mu.Unlock()
	if stillPending {
		t.Error("expected expired request to be removed")
	}
}

func TestOnTimeReplyIgnoresAlreadyExpiredRequest(t *testing.T) {
	clientConn, _ := net.Pipe()
	clientT := transport.NewTCPSession(clientConn)
	defer clientT.Close()

	c := New(Config{ID: "client-1"}, clientT)

	t1 := c.localNow()
	c.mu.Lock()
	c.pendingTimeReqs[9] = &pendingTimeRequest{sentAt: t1, timer: time.NewTimer(time.Hour)}
	c.mu.Unlock()

	c.expireTimeRequest(9)

	h := wire.Header{
		Type:     wire.TypeTime,
		RefersTo: 9,
		Sent:     wire.TVFromDuration(t1 + 10*time.Millisecond),
		Received: wire.TVFromDuration(t1 + 5*time.Millisecond),
	}
	// A late reply after expiry must be a no-op: no panic, no re-add.
	c.onTimeReply(h)

	c.mu.Lock()
	_, present := c.pendingTimeReqs[9]
	c.mu.Unlock()
	if present {
		t.Error("late reply after timeout should not re-add a pending entry")
	}
}

func TestCloseCancelsPendingRequests(t *testing.T) {
	clientConn, _ := net.Pipe()
	clientT := transport.NewTCPSession(clientConn)

	c := New(Config{ID: "client-1"}, clientT)
	c.mu.Lock()
	c.pendingTimeReqs[1] = &pendingTimeRequest{sentAt: c.localNow(), timer: time.NewTimer(time.Hour)}
	c.pendingTimeReqs[2] = &pendingTimeRequest{sentAt: c.localNow(), timer: time.NewTimer(time.Hour)}
	c.mu.Unlock()

	c.Close()

	c.mu.Lock()
	remaining := len(c.pendingTimeReqs)
	c.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected Close to cancel all pending requests, %d remain", remaining)
	}
}

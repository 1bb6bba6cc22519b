package transport

import (
	"net"
	"testing"

	"github.com/airwave-audio/airwave-go/internal/wire"
)

func TestTCPSessionRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewTCPSession(clientConn)
	server := NewTCPSession(serverConn)

	h := wire.Header{Type: wire.TypeHello, ID: 1}
	payload := []byte("hello")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.WriteMessage(h, payload)
	}()

	msg, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if writeErr := <-errCh; writeErr != nil {
		t.Fatalf("WriteMessage failed: %v", writeErr)
	}

	if msg.Header.Type != wire.TypeHello {
		t.Errorf("expected TypeHello, got %v", msg.Header.Type)
	}
	if string(msg.Payload) != "hello" {
		t.Errorf("expected payload %q, got %q", "hello", msg.Payload)
	}
}

func TestListenTCPAcceptsSession(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP failed: %v", err)
	}
	defer ln.Close()

	acceptErr := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		acceptErr <- err
	}()

	conn, err := DialTCP(ln.Addr())
	if err != nil {
		t.Fatalf("DialTCP failed: %v", err)
	}
	defer conn.Close()

	if err := <-acceptErr; err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
}

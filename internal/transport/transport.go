// Package transport implements the frame-based bidirectional byte
// transport abstraction of §4.2: one uniform Session capability over
// plain TCP, TLS, WebSocket, and a RIST-style reliable-UDP overlay.
package transport

import (
	"errors"

	"github.com/airwave-audio/airwave-go/internal/wire"
)

// ErrClosed is returned by a RIST session's WriteMessage after Close and
// by WebSocketServer.Accept after Close; TCP and WebSocket sessions return
// the underlying connection's error instead.
var ErrClosed = errors.New("transport: session closed")

// Session is the capability set every transport variant implements:
// {read_message, write_message, close} (§4.2).
type Session interface {
	// ReadMessage blocks until one full message is available, or returns
	// an error (including ErrClosed) if the session can no longer
	// produce messages.
	ReadMessage() (wire.Message, error)
	// WriteMessage sends one full message. On error the session should
	// be considered closed by the caller (§4.2 failure contract: queued
	// messages dropped, session closed).
	WriteMessage(h wire.Header, payload []byte) error
	Close() error
	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}

// Listener accepts inbound Sessions for a server-side transport variant.
type Listener interface {
	Accept() (Session, error)
	Close() error
	Addr() string
}

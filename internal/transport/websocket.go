package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/airwave-audio/airwave-go/internal/wire"
)

// wsSession frames one BaseMessage+payload per binary WebSocket frame
// (§4.2 WebSocket variant), grounded on the same gorilla/websocket dial
// and message-routing pattern the upstream client uses for its JSON
// control channel, generalized here to carry our binary wire format.
type wsSession struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func newWSSession(conn *websocket.Conn) Session {
	return &wsSession{conn: conn}
}

func (s *wsSession) ReadMessage() (wire.Message, error) {
	msgType, data, err := s.conn.ReadMessage()
	if err != nil {
		return wire.Message{}, fmt.Errorf("transport: ws read: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return wire.Message{}, fmt.Errorf("transport: ws unexpected message type %d", msgType)
	}
	if len(data) < wire.HeaderSize {
		return wire.Message{}, wire.ErrBadHeader
	}
	h, err := wire.DecodeHeader(data[:wire.HeaderSize])
	if err != nil {
		return wire.Message{}, err
	}
	payload := data[wire.HeaderSize:]
	if uint32(len(payload)) < h.Size {
		return wire.Message{}, wire.ErrTruncated
	}
	return wire.Message{Header: h, Payload: payload[:h.Size]}, nil
}

func (s *wsSession) WriteMessage(h wire.Header, payload []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	buf := wire.Encode(h, payload)
	return s.conn.WriteMessage(websocket.BinaryMessage, buf)
}

func (s *wsSession) Close() error { return s.conn.Close() }

func (s *wsSession) RemoteAddr() string {
	return s.conn.RemoteConn().RemoteAddr().String()
}

// DialWebSocket connects to a server's audio ("/stream") or control
// ("/jsonrpc") WebSocket endpoint (§4.2, §6.1).
func DialWebSocket(addr, path string, tlsEnabled bool) (Session, error) {
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: addr, Path: path}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: ws dial %s: %w", u.String(), err)
	}
	return newWSSession(conn), nil
}

// WebSocketServer upgrades incoming HTTP connections to WebSocket
// sessions and queues them for Accept, mirroring the server-side half
// of the handshake the client dials into above.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	sessions chan Session
}

// NewWebSocketServer creates a server ready to be mounted at one or more
// HTTP paths via ServeHTTP.
func NewWebSocketServer() *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(chan Session, 16),
	}
}

// ServeHTTP upgrades the request and publishes the resulting Session to
// Accept. Callers mount it on an HTTP mux, e.g. at "/stream" and
// "/jsonrpc"; nothing in this module mounts it.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.sessions <- newWSSession(conn)
}

// Accept blocks until a client upgrades, returning the new Session.
func (s *WebSocketServer) Accept() (Session, error) {
	sess, ok := <-s.sessions
	if !ok {
		return nil, ErrClosed
	}
	return sess, nil
}

func (s *WebSocketServer) Close() error {
	close(s.sessions)
	return nil
}

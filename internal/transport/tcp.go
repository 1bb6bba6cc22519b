package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/airwave-audio/airwave-go/internal/wire"
)

// tcpSession frames messages over a plain net.Conn (TCP or TLS); the
// framing itself is transport-agnostic (wire.ReadMessage/WriteMessage),
// so TLS is just a net.Conn constructed with tls.Client/tls.Server
// before wrapping (§4.2 plain TCP and TLS-over-TCP variants).
type tcpSession struct {
	conn net.Conn
	wmu  sync.Mutex
}

// NewTCPSession wraps an already-established net.Conn (plain or TLS) as
// a Session.
func NewTCPSession(conn net.Conn) Session {
	return &tcpSession{conn: conn}
}

func (s *tcpSession) ReadMessage() (wire.Message, error) {
	return wire.ReadMessage(s.conn)
}

func (s *tcpSession) WriteMessage(h wire.Header, payload []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := wire.WriteMessage(s.conn, h, payload); err != nil {
		return err
	}
	return nil
}

func (s *tcpSession) Close() error {
	return s.conn.Close()
}

func (s *tcpSession) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// TLSConfig holds certificate and key paths for the server identity and
// an optional CA for client-certificate verification. It has no option
// for a password-protected key.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// DialTCP connects to addr and returns a framed Session.
func DialTCP(addr string) (Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tcp %s: %w", addr, err)
	}
	return NewTCPSession(conn), nil
}

// DialTLS connects to addr over TLS using cfg (a *tls.Config built from
// TLSConfig by the caller's config loader) and returns a framed Session.
func DialTLS(addr string, cfg *tls.Config) (Session, error) {
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tls %s: %w", addr, err)
	}
	return NewTCPSession(conn), nil
}

// tcpListener accepts plain or TLS TCP connections.
type tcpListener struct {
	ln net.Listener
}

// ListenTCP starts a plain TCP listener on addr.
func ListenTCP(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp %s: %w", addr, err)
	}
	return &tcpListener{ln: ln}, nil
}

// ListenTLS starts a TLS TCP listener on addr using cfg.
func ListenTLS(addr string, cfg *tls.Config) (Listener, error) {
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tls %s: %w", addr, err)
	}
	return &tcpListener{ln: ln}, nil
}

func (l *tcpListener) Accept() (Session, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewTCPSession(conn), nil
}

func (l *tcpListener) Close() error { return l.ln.Close() }
func (l *tcpListener) Addr() string { return l.ln.Addr().String() }

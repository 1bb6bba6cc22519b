package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/webtransport-go"

	"github.com/airwave-audio/airwave-go/internal/wire"
)

// Virtual ports multiplex logical channels over one RIST/WebTransport
// session (§6.2).
const (
	VirtualPortAudio       = 1000 // server -> client
	VirtualPortControl     = 2000 // server -> client
	VirtualPortBackchannel = 3000 // client -> server
)

// RISTConfig carries the tunable recovery parameters negotiable from
// server to client (§4.2, and renegotiable mid-session per the
// original_source supplement in SPEC_FULL.md §11).
type RISTConfig struct {
	RecoveryLengthMin time.Duration
	RecoveryLengthMax time.Duration
	RTTMin            time.Duration
	RTTMax            time.Duration
	ReorderBuffer     int
	MinRetries        int
	MaxRetries        int
}

// DefaultRISTConfig mirrors typical RIST main-profile defaults.
var DefaultRISTConfig = RISTConfig{
	RecoveryLengthMin: 1000 * time.Millisecond,
	RecoveryLengthMax: 1000 * time.Millisecond,
	RTTMin:            50 * time.Millisecond,
	RTTMax:            500 * time.Millisecond,
	ReorderBuffer:     25,
	MinRetries:        2,
	MaxRetries:        10,
}

const (
	dgramCacheSize              = 128
	circuitBreakerThreshold     = 50
	circuitBreakerProbeInterval = 25
)

// cachedDatagram retains recently sent audio datagrams so a NACK'd
// sequence can be retransmitted without re-reading from the broadcaster
// queue.
type cachedDatagram struct {
	seq  uint32
	data []byte
}

// ristSession adapts a *webtransport.Session into three virtual-port
// streams, following the control-stream-plus-datagram-relay pattern used
// for reliable-overlay fan-out elsewhere in the retrieval pack, adapted
// here to RIST's three-virtual-port audio/control/backchannel split
// instead of a single control channel.
type ristSession struct {
	sess *webtransport.Session

	audio, control, back webtransport.Stream

	incoming chan wire.Message
	readErr  chan error

	wmu sync.Mutex

	cacheMu sync.Mutex
	cache   [dgramCacheSize]cachedDatagram
	cacheAt int

	failures int64
	skips    int64

	cfg    RISTConfig
	cfgMu  sync.RWMutex
	closed int32
}

// sessionCloser adapts *webtransport.Session to io.Closer for callers
// that only need Close.
type sessionCloser struct{ sess *webtransport.Session }

func (c sessionCloser) Close() error {
	return c.sess.CloseWithError(0, "closing")
}

// DialRIST opens a WebTransport session to addr and negotiates the three
// virtual-port streams as a client (§4.2, §6.2).
func DialRIST(ctx context.Context, addr string, tlsConfig *tls.Config, cfg RISTConfig) (Session, error) {
	d := webtransport.Dialer{TLSClientConfig: tlsConfig}
	_, sess, err := d.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: rist dial %s: %w", addr, err)
	}

	s := &ristSession{sess: sess, incoming: make(chan wire.Message, 64), readErr: make(chan error, 3), cfg: cfg}

	s.audio, err = sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: rist open audio stream: %w", err)
	}
	s.control, err = sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: rist open control stream: %w", err)
	}
	s.back, err = sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: rist open backchannel stream: %w", err)
	}

	s.startReaders()
	return s, nil
}

// AcceptRISTSession accepts one incoming WebTransport session and waits
// for the client to open its three virtual-port streams, as the server
// side of DialRIST.
func AcceptRISTSession(ctx context.Context, sess *webtransport.Session) (Session, error) {
	s := &ristSession{sess: sess, incoming: make(chan wire.Message, 64), readErr: make(chan error, 3), cfg: DefaultRISTConfig}

	var err error
	s.audio, err = sess.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: rist accept audio stream: %w", err)
	}
	s.control, err = sess.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: rist accept control stream: %w", err)
	}
	s.back, err = sess.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: rist accept backchannel stream: %w", err)
	}

	s.startReaders()
	return s, nil
}

func (s *ristSession) startReaders() {
	go s.readLoop(s.audio)
	go s.readLoop(s.control)
	go s.readLoop(s.back)
}

func (s *ristSession) readLoop(stream webtransport.Stream) {
	for {
		msg, err := wire.ReadMessage(stream)
		if err != nil {
			select {
			case s.readErr <- err:
			default:
			}
			return
		}
		select {
		case s.incoming <- msg:
		default:
			log.Printf("[rist] incoming queue full, dropping message type %v", msg.Header.Type)
		}
	}
}

// virtualPortFor picks the stream a given message type belongs to
// (§6.2): audio chunks on 1000, server push control on 2000, client
// backchannel requests on 3000.
func (s *ristSession) virtualPortFor(t wire.Type) webtransport.Stream {
	switch t {
	case wire.TypeWireChunk:
		return s.audio
	case wire.TypeServerSettings, wire.TypeCodecHeader:
		return s.control
	default:
		return s.back
	}
}

func (s *ristSession) ReadMessage() (wire.Message, error) {
	select {
	case msg := <-s.incoming:
		return msg, nil
	case err := <-s.readErr:
		return wire.Message{}, err
	}
}

func (s *ristSession) WriteMessage(h wire.Header, payload []byte) error {
	if atomic.LoadInt32(&s.closed) != 0 {
		return ErrClosed
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	stream := s.virtualPortFor(h.Type)
	if err := wire.WriteMessage(stream, h, payload); err != nil {
		atomic.AddInt64(&s.failures, 1)
		return fmt.Errorf("transport: rist write: %w", err)
	}

	if h.Type == wire.TypeWireChunk {
		s.cacheDatagram(h.ID, wire.Encode(h, payload))
	}
	return nil
}

func (s *ristSession) cacheDatagram(seq uint16, data []byte) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[s.cacheAt] = cachedDatagram{seq: uint32(seq), data: data}
	s.cacheAt = (s.cacheAt + 1) % dgramCacheSize
}

// Resend looks up a cached datagram by sequence for NACK-driven
// retransmission; it returns false if the datagram has already aged out
// of the cache.
func (s *ristSession) Resend(seq uint32) ([]byte, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for _, d := range s.cache {
		if d.seq == seq && d.data != nil {
			return d.data, true
		}
	}
	return nil, false
}

// Reconfigure applies new recovery parameters by tearing down and
// rebuilding the underlying WebTransport session, matching the original
// implementation's own behavior on mid-stream RIST parameter changes
// (§9 open question: this loses a burst of audio by design; callers
// should expect the jitter buffer's hard-sync path to absorb it).
func (s *ristSession) Reconfigure(ctx context.Context, addr string, tlsConfig *tls.Config, cfg RISTConfig) error {
	log.Printf("[rist] reconfiguring session, recovery_length=%v-%v rtt=%v-%v reorder=%d retries=%d-%d",
		cfg.RecoveryLengthMin, cfg.RecoveryLengthMax, cfg.RTTMin, cfg.RTTMax, cfg.ReorderBuffer, cfg.MinRetries, cfg.MaxRetries)

	if err := s.Close(); err != nil {
		log.Printf("[rist] error closing old session during reconfigure: %v", err)
	}

	d := webtransport.Dialer{TLSClientConfig: tlsConfig}
	_, sess, err := d.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("transport: rist reconfigure dial: %w", err)
	}

	s.sess = sess
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	atomic.StoreInt32(&s.closed, 0)

	s.audio, err = sess.OpenStreamSync(ctx)
	if err != nil {
		return err
	}
	s.control, err = sess.OpenStreamSync(ctx)
	if err != nil {
		return err
	}
	s.back, err = sess.OpenStreamSync(ctx)
	if err != nil {
		return err
	}
	s.startReaders()
	return nil
}

func (s *ristSession) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	return sessionCloser{sess: s.sess}.Close()
}

func (s *ristSession) RemoteAddr() string {
	return s.sess.RemoteAddr().String()
}

// recordHealth implements the pack's circuit-breaker idiom: after
// circuitBreakerThreshold consecutive write failures, health checks back
// off to once every circuitBreakerProbeInterval calls instead of firing
// on every single one.
func (s *ristSession) recordHealth(ok bool) bool {
	if ok {
		atomic.StoreInt64(&s.failures, 0)
		return true
	}
	failures := atomic.AddInt64(&s.failures, 1)
	if failures < circuitBreakerThreshold {
		return true
	}
	skips := atomic.AddInt64(&s.skips, 1)
	return skips%circuitBreakerProbeInterval == 0
}

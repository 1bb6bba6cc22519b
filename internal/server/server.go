package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airwave-audio/airwave-go/internal/broadcaster"
	"github.com/airwave-audio/airwave-go/internal/transport"
	"github.com/airwave-audio/airwave-go/internal/wire"
	"github.com/airwave-audio/airwave-go/pkg/audio"
)

// DefaultStreamID names the stream new clients are assigned to when
// none is specified, matching the teacher's single-stream default.
const DefaultStreamID = "default"

// Config holds server-wide settings (§9 ambient config surface).
type Config struct {
	BufferMs     int
	DefaultCodec string
	SampleFormat audio.SampleFormat
}

// Server accepts sessions from any number of transport.Listener
// instances, performs the handshake, and wires each session into the
// broadcaster for its assigned stream. The per-connection read loop
// and handshake sequencing mirror the teacher's handleConnection, with
// the WebSocket-only JSON protocol replaced by the shared wire
// package so every transport variant shares one handler.
type Server struct {
	cfg     Config
	id      string
	startAt time.Time
	now     Clock

	bc *broadcaster.Broadcaster

	mu       sync.RWMutex
	sessions map[string]*broadcaster.Session
	engines  map[string]*Engine

	wg sync.WaitGroup
}

// New creates a Server; call AddEngine to register at least one
// stream before clients can receive audio.
func New(cfg Config) *Server {
	startAt := time.Now()
	now := func() time.Duration { return time.Since(startAt) }
	return &Server{
		cfg:      cfg,
		id:       uuid.New().String(),
		startAt:  startAt,
		now:      now,
		bc:       broadcaster.New(),
		sessions: make(map[string]*broadcaster.Session),
		engines:  make(map[string]*Engine),
	}
}

// Broadcaster exposes the underlying broadcaster, e.g. for an engine
// constructed externally.
func (s *Server) Broadcaster() *broadcaster.Broadcaster { return s.bc }

// Now returns the server's monotonic clock, shared by every engine and
// every session's time-sync handler.
func (s *Server) Now() time.Duration { return s.now() }

// AddEngine registers and starts a streaming engine for streamID.
func (s *Server) AddEngine(streamID string, source Source, codecName string) error {
	engine, err := NewEngine(streamID, source, codecName, s.bc, s.now)
	if err != nil {
		return fmt.Errorf("server: add engine %s: %w", streamID, err)
	}
	s.mu.Lock()
	s.engines[streamID] = engine
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		engine.Run()
	}()
	return nil
}

// Serve accepts sessions from ln until it returns an error (e.g. on
// Close), handling each on its own goroutine.
func (s *Server) Serve(ln transport.Listener) error {
	for {
		sess, err := ln.Accept()
		if err != nil {
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleSession(sess)
		}()
	}
}

// handleSession performs the handshake, registers the session, and
// runs its read loop until the transport closes (§6.3).
func (s *Server) handleSession(t transport.Session) {
	defer t.Close()

	hello, err := s.readHello(t)
	if err != nil {
		log.Printf("[server] handshake failed from %s: %v", t.RemoteAddr(), err)
		return
	}
	clientID := hello.UniqueID()

	sess := broadcaster.NewSession(clientID, t, time.Duration(s.cfg.BufferMs)*time.Millisecond, s.now)

	s.mu.Lock()
	if _, exists := s.sessions[clientID]; exists {
		s.mu.Unlock()
		log.Printf("[server] rejecting duplicate client id %s", clientID)
		return
	}
	s.sessions[clientID] = sess
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, clientID)
		s.mu.Unlock()
		s.bc.Unsubscribe(DefaultStreamID, clientID)
		log.Printf("[server] client disconnected: %s", clientID)
	}()

	settings := wire.ServerSettings{BufferMs: s.cfg.BufferMs, Volume: 100, Muted: false}
	if err := sess.SendServerSettings(settings, 0); err != nil {
		log.Printf("[server] failed to send server settings to %s: %v", clientID, err)
		return
	}

	s.bc.Subscribe(DefaultStreamID, sess)
	log.Printf("[server] client connected: %s (%s)", clientID, hello.HostName)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drainLoop(sess)
	}()

	s.readLoop(t, clientID, sess)
}

// readHello blocks for the client's initial Hello message.
func (s *Server) readHello(t transport.Session) (wire.Hello, error) {
	msg, err := t.ReadMessage()
	if err != nil {
		return wire.Hello{}, err
	}
	if msg.Header.Type != wire.TypeHello {
		return wire.Hello{}, fmt.Errorf("expected Hello, got %v", msg.Header.Type)
	}
	var hello wire.Hello
	if err := wire.DecodeJSONPayload(msg.Payload, &hello); err != nil {
		return wire.Hello{}, err
	}
	if hello.ID == "" {
		return wire.Hello{}, fmt.Errorf("hello missing ID")
	}
	return hello, nil
}

// drainLoop writes at most one queued chunk every 5ms, skipping ticks
// while the session's queue is empty, and returns on the first failed
// write.
func (s *Server) drainLoop(sess *broadcaster.Session) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if sess.QueueDepth() == 0 {
			continue
		}
		if err := sess.DrainOne(); err != nil {
			return
		}
	}
}

// readLoop processes inbound messages from one client: time-sync
// requests and ClientInfo volume/mute updates (§4.3, §6.3).
func (s *Server) readLoop(t transport.Session, clientID string, sess *broadcaster.Session) {
	for {
		msg, err := t.ReadMessage()
		if err != nil {
			return
		}
		switch msg.Header.Type {
		case wire.TypeTime:
			s.handleTimeRequest(t, msg.Header)
		case wire.TypeClientInfo:
			var info wire.ClientInfo
			if err := wire.DecodeJSONPayload(msg.Payload, &info); err != nil {
				log.Printf("[server] bad ClientInfo from %s: %v", clientID, err)
				continue
			}
			log.Printf("[server] client %s reports volume=%d muted=%v", clientID, info.Volume, info.Muted)
		case wire.TypeClientSystemInfo:
			// accepted and ignored; no server-side behavior depends on it yet
		default:
			log.Printf("[server] unhandled message type %v from %s", msg.Header.Type, clientID)
		}
	}
}

// handleTimeRequest replies to a client's Time request with the
// server's receive and transmit timestamps (§4.3's t2/t3).
func (s *Server) handleTimeRequest(t transport.Session, reqHeader wire.Header) {
	t2 := s.now()
	t3 := s.now()
	reply := wire.Header{
		Type:     wire.TypeTime,
		RefersTo: reqHeader.ID,
		Sent:     wire.TVFromDuration(t3),
		Received: wire.TVFromDuration(t2),
	}
	if err := t.WriteMessage(reply, nil); err != nil {
		log.Printf("[server] time reply failed: %v", err)
	}
}

// Close stops every engine. It does not close client sessions or wait
// for their goroutines to exit.
func (s *Server) Close() {
	s.mu.Lock()
	engines := make([]*Engine, 0, len(s.engines))
	for _, e := range s.engines {
		engines = append(engines, e)
	}
	s.mu.Unlock()

	for _, e := range engines {
		e.Stop()
	}
}

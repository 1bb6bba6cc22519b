// Package broadcaster implements the server-side stream fan-out of
// §4.5: a broadcaster holds the set of client sessions subscribed to
// each stream id, and fans out every encoded chunk to each subscriber's
// own bounded outbound queue.
package broadcaster

import (
	"log"
	"sync"
	"time"

	"github.com/airwave-audio/airwave-go/internal/metrics"
	"github.com/airwave-audio/airwave-go/internal/transport"
	"github.com/airwave-audio/airwave-go/internal/wire"
	"github.com/airwave-audio/airwave-go/pkg/audio"
)

// dropSlack is the extra margin past bufferMs before an enqueued chunk is
// dropped for a slow client (§4.5).
const dropSlack = 100 * time.Millisecond

// Clock supplies server time for drop-policy age checks.
type Clock func() time.Duration

// Session owns one client's outbound queue and transport. It is shared
// by the broadcaster across streams but exclusively drains to one
// transport.Session (§3 ownership).
type Session struct {
	ID        string
	transport transport.Session
	now       Clock

	mu       sync.Mutex
	bufferMs time.Duration
	streamID string
	queue    []queuedChunk
	sending  bool // true while the front chunk is on the wire

	nextID uint16
}

type queuedChunk struct {
	chunk *audio.Chunk
	codec string
}

// NewSession wraps a transport.Session as a broadcaster client.
func NewSession(id string, t transport.Session, bufferMs time.Duration, now Clock) *Session {
	return &Session{ID: id, transport: t, bufferMs: bufferMs, now: now}
}

// SetBufferMs updates the session's drop-policy target latency, e.g. on a
// ServerSettings change.
func (s *Session) SetBufferMs(bufferMs time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferMs = bufferMs
}

// Enqueue appends chunk to the outbound queue, then drops any chunk
// (including the one just appended) whose age exceeds bufferMs+100ms,
// unless it is currently being written (§4.5).
func (s *Session) Enqueue(codecName string, chunk *audio.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, queuedChunk{chunk: chunk, codec: codecName})
	s.dropStaleLocked()
	metrics.SessionQueueDepth.WithLabelValues(s.ID, s.streamID).Set(float64(len(s.queue)))
}

func (s *Session) dropStaleLocked() {
	threshold := s.bufferMs + dropSlack
	kept := s.queue[:0]
	dropped := 0
	for i, qc := range s.queue {
		age := s.now() - qc.chunk.Start()
		if age > threshold && !(i == 0 && s.sending) {
			dropped++
			continue
		}
		kept = append(kept, qc)
	}
	s.queue = kept
	if dropped > 0 {
		metrics.ChunksDroppedTotal.WithLabelValues(s.ID, s.streamID).Add(float64(dropped))
	}
}

// DrainOne writes the front chunk to the transport, if any. Intended to
// be called from this session's own outbound task (§5: "per-session
// outbound task drains the send queue onto the transport").
func (s *Session) DrainOne() error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return nil
	}
	front := s.queue[0]
	s.sending = true
	id := s.nextID
	s.nextID = (s.nextID + 1) % wire.MaxRequestID
	s.mu.Unlock()

	payload := wire.PcmChunkWire{
		Timestamp: wire.TVFromDuration(front.chunk.Start()),
		Payload:   front.chunk.Payload,
	}.Encode()

	h := wire.Header{Type: wire.TypeWireChunk, ID: id, Sent: wire.TVFromDuration(s.now())}
	err := s.transport.WriteMessage(h, payload)

	s.mu.Lock()
	s.sending = false
	if err == nil && len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
	depth := len(s.queue)
	streamID := s.streamID
	s.mu.Unlock()
	metrics.SessionQueueDepth.WithLabelValues(s.ID, streamID).Set(float64(depth))

	if err != nil {
		log.Printf("[session %s] write failed, closing: %v", s.ID, err)
		s.transport.Close()
	}
	return err
}

// QueueDepth reports the current outbound queue length, for metrics.
func (s *Session) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// SendCodecHeader pushes a CodecHeader ahead of any queued audio, used on
// connect and on stream switch (§4.5).
func (s *Session) SendCodecHeader(header wire.CodecHeader) error {
	h := wire.Header{Type: wire.TypeCodecHeader, Sent: wire.TVFromDuration(s.now())}
	return s.transport.WriteMessage(h, header.Encode())
}

// SendServerSettings pushes a ServerSettings update.
func (s *Session) SendServerSettings(settings wire.ServerSettings, refersTo uint16) error {
	payload, err := wire.EncodeJSONPayload(settings)
	if err != nil {
		return err
	}
	h := wire.Header{Type: wire.TypeServerSettings, RefersTo: refersTo, Sent: wire.TVFromDuration(s.now())}
	return s.transport.WriteMessage(h, payload)
}

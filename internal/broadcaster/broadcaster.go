package broadcaster

import (
	"sync"

	"github.com/airwave-audio/airwave-go/internal/metrics"
	"github.com/airwave-audio/airwave-go/internal/wire"
	"github.com/airwave-audio/airwave-go/pkg/audio"
)

// Broadcaster fans out each stream's encoded chunks to every Session
// subscribed to that stream id (§4.5).
type Broadcaster struct {
	mu      sync.RWMutex
	streams map[string]map[string]*Session // streamID -> sessionID -> session
	headers map[string]wire.CodecHeader    // streamID -> last CodecHeader
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		streams: make(map[string]map[string]*Session),
		headers: make(map[string]wire.CodecHeader),
	}
}

// Subscribe attaches sess to streamID, immediately sending that stream's
// current CodecHeader if one has been published (§4.5 client change of
// stream: the new stream's header is re-sent before any chunks).
func (b *Broadcaster) Subscribe(streamID string, sess *Session) {
	b.mu.Lock()
	if b.streams[streamID] == nil {
		b.streams[streamID] = make(map[string]*Session)
	}
	b.streams[streamID][sess.ID] = sess
	header, ok := b.headers[streamID]
	b.mu.Unlock()

	sess.mu.Lock()
	sess.streamID = streamID
	sess.mu.Unlock()

	if ok {
		sess.SendCodecHeader(header)
	}
	metrics.SessionsConnected.WithLabelValues(streamID).Set(float64(b.SessionCount(streamID)))
}

// Unsubscribe removes sess from streamID.
func (b *Broadcaster) Unsubscribe(streamID string, sessionID string) {
	b.mu.Lock()
	if subs, ok := b.streams[streamID]; ok {
		delete(subs, sessionID)
		if len(subs) == 0 {
			delete(b.streams, streamID)
		}
	}
	b.mu.Unlock()
	metrics.SessionsConnected.WithLabelValues(streamID).Set(float64(b.SessionCount(streamID)))
}

// Move re-subscribes a session from one stream to another, matching
// §4.5's "client change of stream" contract.
func (b *Broadcaster) Move(sessionID, fromStream, toStream string, sess *Session) {
	b.Unsubscribe(fromStream, sessionID)
	b.Subscribe(toStream, sess)
}

// PublishHeader records streamID's current CodecHeader and pushes it to
// every subscriber (called once per stream start or codec change).
func (b *Broadcaster) PublishHeader(streamID string, header wire.CodecHeader) {
	b.mu.Lock()
	b.headers[streamID] = header
	subs := snapshot(b.streams[streamID])
	b.mu.Unlock()

	for _, sess := range subs {
		sess.SendCodecHeader(header)
	}
}

// Publish enqueues chunk, encoded with codecName, on every session
// subscribed to streamID.
func (b *Broadcaster) Publish(streamID string, codecName string, chunk *audio.Chunk) {
	b.mu.RLock()
	subs := snapshot(b.streams[streamID])
	b.mu.RUnlock()

	for _, sess := range subs {
		sess.Enqueue(codecName, chunk)
	}
}

// SessionCount reports how many sessions are subscribed to streamID.
func (b *Broadcaster) SessionCount(streamID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams[streamID])
}

func snapshot(m map[string]*Session) []*Session {
	out := make([]*Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airwave-audio/airwave-go/internal/metrics"
	"github.com/airwave-audio/airwave-go/internal/timesync"
	"github.com/airwave-audio/airwave-go/internal/transport"
	"github.com/airwave-audio/airwave-go/internal/wire"
	"github.com/airwave-audio/airwave-go/pkg/audio"
	"github.com/airwave-audio/airwave-go/pkg/codec"
	"github.com/airwave-audio/airwave-go/pkg/jitterbuffer"
)

// Config describes how this client identifies itself and what it
// advertises in Hello (§6.3).
type Config struct {
	HostName string
	Version  string
	OS       string
	Arch     string
	Instance int
	ID       string // stable id, e.g. a MAC-derived uuid; generated if empty
}

// Client drives one connection to a server: handshake, time sync,
// decode, and playback (§4.8).
type Client struct {
	cfg       Config
	transport transport.Session

	ctx    context.Context
	cancel context.CancelFunc

	timeSync *timesync.Sync
	sink     *Sink

	mu       sync.Mutex
	bufferMs time.Duration
	decoder  codec.Decoder
	jitter   *jitterbuffer.Buffer
	nextID   uint16

	pendingTimeReqs map[uint16]*pendingTimeRequest
}

// requestTimeout bounds how long a time-sync request may stay pending
// before it is dropped and counted as a timeout (§3, §5, §8 property 12).
const requestTimeout = 5 * time.Second

// pendingTimeRequest is the client's "response promise, timeout timer"
// entry per §3's pending-requests contract.
type pendingTimeRequest struct {
	sentAt time.Duration
	timer  *time.Timer
}

// New wraps an already-connected transport.Session as a Client.
func New(cfg Config, t transport.Session) *Client {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:             cfg,
		transport:       t,
		ctx:             ctx,
		cancel:          cancel,
		timeSync:        timesync.New(),
		sink:            NewSink(),
		bufferMs:        1000 * time.Millisecond,
		pendingTimeReqs: make(map[uint16]*pendingTimeRequest),
	}
}

// localNow is the client's own free-running clock, used as the
// monotonic domain for time-sync requests and jitter buffer playback.
func (c *Client) localNow() time.Duration {
	return time.Duration(time.Now().UnixNano())
}

// Run performs the handshake, then launches the time-sync task and
// message dispatch loop, blocking until ctx is done or the connection
// fails (§4.8: "Opens transport; performs Hello/ServerSettings
// handshake. Launches time-sync task. Sets up a message dispatch
// loop.").
func (c *Client) Run(ctx context.Context) error {
	if err := c.handshake(); err != nil {
		return fmt.Errorf("client: handshake: %w", err)
	}

	go c.timeSyncLoop()
	go c.statsLoop()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.ctx.Done():
		}
	}()

	return c.dispatchLoop()
}

// handshake sends Hello and waits for the server's ServerSettings
// reply (§6.3).
func (c *Client) handshake() error {
	hello := wire.Hello{
		MAC:                       c.cfg.ID,
		HostName:                  c.cfg.HostName,
		Version:                   c.cfg.Version,
		OS:                        c.cfg.OS,
		Arch:                      c.cfg.Arch,
		Instance:                  c.cfg.Instance,
		ID:                        c.cfg.ID,
		SnapStreamProtocolVersion: 2,
	}
	payload, err := wire.EncodeJSONPayload(hello)
	if err != nil {
		return err
	}
	h := wire.Header{Type: wire.TypeHello, Sent: wire.TVFromDuration(c.localNow())}
	if err := c.transport.WriteMessage(h, payload); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	msg, err := c.transport.ReadMessage()
	if err != nil {
		return fmt.Errorf("read server settings: %w", err)
	}
	if msg.Header.Type != wire.TypeServerSettings {
		return fmt.Errorf("expected ServerSettings, got %v", msg.Header.Type)
	}
	var settings wire.ServerSettings
	if err := wire.DecodeJSONPayload(msg.Payload, &settings); err != nil {
		return fmt.Errorf("decode server settings: %w", err)
	}
	c.applyServerSettings(settings)

	log.Printf("[client %s] handshake complete: bufferMs=%d volume=%d muted=%v",
		c.cfg.ID, settings.BufferMs, settings.Volume, settings.Muted)
	return nil
}

func (c *Client) applyServerSettings(settings wire.ServerSettings) {
	c.mu.Lock()
	c.bufferMs = time.Duration(settings.BufferMs+settings.Latency) * time.Millisecond
	if c.jitter != nil {
		c.jitter.SetBufferMs(c.bufferMs)
	}
	c.mu.Unlock()

	c.sink.SetVolume(settings.Volume)
	c.sink.SetMuted(settings.Muted)
}

// timeSyncLoop implements the burst-then-steady cadence of §4.3: fifty
// quick requests at connect time to seed the ring buffer, then one
// request per second.
func (c *Client) timeSyncLoop() {
	for i := 0; i < timesync.BurstCount; i++ {
		if c.sendTimeRequest() != nil {
			return
		}
		select {
		case <-time.After(timesync.BurstInterval):
		case <-c.ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(timesync.SteadyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if c.sendTimeRequest() != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// statsLoop reports jitter buffer depth and clock-sync quality on a
// fixed interval, independent of the jitter buffer's own lifecycle
// (which is recreated on every CodecHeader).
func (c *Client) statsLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			jitter := c.jitter
			c.mu.Unlock()
			if jitter != nil {
				metrics.JitterBufferDepth.WithLabelValues(c.cfg.ID).Set(float64(jitter.Len()))
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) sendTimeRequest() error {
	c.mu.Lock()
	id := c.nextID
	c.nextID = (c.nextID + 1) % wire.MaxRequestID
	t1 := c.localNow()
	c.pendingTimeReqs[id] = &pendingTimeRequest{
		sentAt: t1,
		timer:  time.AfterFunc(requestTimeout, func() { c.expireTimeRequest(id) }),
	}
	c.mu.Unlock()

	h := wire.Header{Type: wire.TypeTime, ID: id, Sent: wire.TVFromDuration(t1)}
	if err := c.transport.WriteMessage(h, nil); err != nil {
		log.Printf("[client %s] time request failed: %v", c.cfg.ID, err)
		return err
	}
	return nil
}

// expireTimeRequest removes a pending time request that received no
// reply within requestTimeout and counts it (§5, §8 property 12: fires
// exactly once — a reply arriving after this point finds no matching
// entry and is ignored by onTimeReply).
func (c *Client) expireTimeRequest(id uint16) {
	c.mu.Lock()
	_, ok := c.pendingTimeReqs[id]
	delete(c.pendingTimeReqs, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	metrics.RequestTimeoutsTotal.WithLabelValues(c.cfg.ID).Inc()
	log.Printf("[client %s] %v: request %d", c.cfg.ID, wire.ErrRequestTimeout, id)
}

// dispatchLoop reads messages until the transport closes, routing each
// by Type (§4.8).
func (c *Client) dispatchLoop() error {
	for {
		msg, err := c.transport.ReadMessage()
		if err != nil {
			return err
		}
		switch msg.Header.Type {
		case wire.TypeServerSettings:
			var settings wire.ServerSettings
			if err := wire.DecodeJSONPayload(msg.Payload, &settings); err != nil {
				log.Printf("[client %s] bad ServerSettings: %v", c.cfg.ID, err)
				continue
			}
			c.applyServerSettings(settings)

		case wire.TypeCodecHeader:
			header, err := wire.DecodeCodecHeader(msg.Payload)
			if err != nil {
				log.Printf("[client %s] bad CodecHeader: %v", c.cfg.ID, err)
				continue
			}
			c.onCodecHeader(header)

		case wire.TypeWireChunk:
			chunkWire, err := wire.DecodePcmChunkWire(msg.Payload)
			if err != nil {
				log.Printf("[client %s] bad PcmChunk: %v", c.cfg.ID, err)
				continue
			}
			c.onChunk(chunkWire)

		case wire.TypeTime:
			c.onTimeReply(msg.Header)

		case wire.TypeStreamTags:
			// legacy, decoded and ignored per the Type enum contract

		default:
			log.Printf("[client %s] unhandled message type %v", c.cfg.ID, msg.Header.Type)
		}
	}
}

func (c *Client) onCodecHeader(header wire.CodecHeader) {
	decoder, err := codec.NewDecoder(header.CodecName, header.Payload)
	if err != nil {
		log.Printf("[client %s] unsupported codec %q: %v", c.cfg.ID, header.CodecName, err)
		return
	}

	format := decoder.Format()
	outputFormat := audio.SampleFormat{Rate: format.Rate, Bits: 16, Channels: format.Channels}

	c.mu.Lock()
	if c.decoder != nil {
		c.decoder.Close()
	}
	c.decoder = decoder
	c.jitter = jitterbuffer.New(outputFormat, c.bufferMs, c.serverNow)
	jitter := c.jitter
	c.mu.Unlock()

	clientID := c.cfg.ID
	jitter.OnHardSync(func() {
		metrics.HardSyncTotal.WithLabelValues(clientID).Inc()
	})
	jitter.OnSoftSync(func(direction string) {
		metrics.SoftSyncTotal.WithLabelValues(clientID, direction).Inc()
	})

	if err := c.sink.Initialize(outputFormat, jitter); err != nil {
		log.Printf("[client %s] sink init failed: %v", c.cfg.ID, err)
	}
	log.Printf("[client %s] codec %s: %dHz %dbit %dch", c.cfg.ID, header.CodecName, format.Rate, format.Bits, format.Channels)
}

func (c *Client) onChunk(chunkWire wire.PcmChunkWire) {
	c.mu.Lock()
	decoder := c.decoder
	jitter := c.jitter
	c.mu.Unlock()
	if decoder == nil || jitter == nil {
		return
	}

	samples, delay, err := decoder.Decode(chunkWire.Payload)
	if err != nil {
		log.Printf("[client %s] decode error: %v", c.cfg.ID, err)
		return
	}

	format := decoder.Format()
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.SampleToInt16(s)))
	}
	outputFormat := audio.SampleFormat{Rate: format.Rate, Bits: 16, Channels: format.Channels}

	start := chunkWire.Timestamp.Duration() - time.Duration(delay)*time.Microsecond
	chunk, err := audio.NewChunk(outputFormat, start, out)
	if err != nil {
		log.Printf("[client %s] bad decoded chunk: %v", c.cfg.ID, err)
		return
	}
	jitter.AddChunk(chunk)
}

func (c *Client) onTimeReply(h wire.Header) {
	c.mu.Lock()
	req, ok := c.pendingTimeReqs[h.RefersTo]
	delete(c.pendingTimeReqs, h.RefersTo)
	c.mu.Unlock()
	if !ok {
		// Already removed by expireTimeRequest (timeout) or never sent;
		// a late reply after timeout must be a no-op (§8 property 12).
		return
	}
	req.timer.Stop()
	t1 := req.sentAt

	t4 := c.localNow()
	t2 := h.Received.Duration()
	t3 := h.Sent.Duration()
	c.timeSync.Observe(t1, t2, t3, t4)

	offset, rtt, _ := c.timeSync.Stats()
	metrics.ClockOffsetMicros.WithLabelValues(c.cfg.ID).Set(float64(offset.Microseconds()))
	metrics.RoundTripMicros.WithLabelValues(c.cfg.ID).Set(float64(rtt.Microseconds()))
}

// serverNow converts the client's local clock into the synchronized
// server domain, used as the jitter buffer's Clock.
func (c *Client) serverNow() time.Duration {
	return c.timeSync.ServerNow(c.localNow())
}

// SetLocalVolume applies a local volume/mute change and reports it
// upstream via ClientInfo (§4.8: "ClientInfo upstream on local volume
// change").
func (c *Client) SetLocalVolume(volume int, muted bool) error {
	c.sink.SetVolume(volume)
	c.sink.SetMuted(muted)

	info := wire.ClientInfo{Volume: volume, Muted: muted}
	payload, err := wire.EncodeJSONPayload(info)
	if err != nil {
		return err
	}
	h := wire.Header{Type: wire.TypeClientInfo, Sent: wire.TVFromDuration(c.localNow())}
	return c.transport.WriteMessage(h, payload)
}

// Stats reports the current clock-sync quality, for UI/metrics use.
func (c *Client) Stats() (offset, rtt time.Duration, quality timesync.Quality) {
	return c.timeSync.Stats()
}

// Close stops the dispatch loop, cancels every pending request (§5:
// "session shutdown cancels all pending requests"), and releases the
// audio sink.
func (c *Client) Close() {
	c.cancel()

	c.mu.Lock()
	pending := c.pendingTimeReqs
	c.pendingTimeReqs = make(map[uint16]*pendingTimeRequest)
	c.mu.Unlock()
	for id, req := range pending {
		req.timer.Stop()
		log.Printf("[client %s] %v: request %d", c.cfg.ID, wire.ErrRequestCancelled, id)
	}

	c.sink.Close()
	c.transport.Close()
}

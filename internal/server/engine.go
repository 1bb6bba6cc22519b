// Package server orchestrates the server side of the protocol: it
// accepts sessions over any transport variant, performs the
// Hello/ServerSettings handshake, assigns sessions to streams, and
// runs one streaming engine per stream that reads from a Source,
// encodes, and publishes through a broadcaster (§4.8, §6.3).
package server

import (
	"log"
	"sync"
	"time"

	"github.com/airwave-audio/airwave-go/internal/broadcaster"
	"github.com/airwave-audio/airwave-go/internal/wire"
	"github.com/airwave-audio/airwave-go/pkg/codec"
)

// chunkDuration matches the teacher's own 20ms chunking interval.
const chunkDuration = 20 * time.Millisecond

// bufferAhead is added to the current server clock when stamping a
// freshly generated chunk's recording start, giving clients headroom
// to have it queued before its playback time arrives.
const bufferAhead = 500 * time.Millisecond

// Clock supplies the server's own free-running time domain.
type Clock func() time.Duration

// Engine generates, encodes, and publishes one stream's audio on a
// fixed tick, the server-side counterpart to the teacher's
// AudioEngine, generalized from a hardcoded PCM test tone to any
// Source/codec combination.
type Engine struct {
	streamID string
	source   Source
	chain    *codec.EncoderChain
	codec    string
	bc       *broadcaster.Broadcaster
	now      Clock

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewEngine builds an Engine for streamID, encoding source's samples
// with codecName and publishing through bc.
func NewEngine(streamID string, source Source, codecName string, bc *broadcaster.Broadcaster, now Clock) (*Engine, error) {
	enc, err := codec.NewEncoder(codecName, source.Format())
	if err != nil {
		return nil, err
	}
	chain := codec.NewEncoderChain(enc, source.Format(), now()+bufferAhead)

	bc.PublishHeader(streamID, wire.CodecHeader{CodecName: codecName, Payload: enc.Header()})

	return &Engine{
		streamID: streamID,
		source:   source,
		chain:    chain,
		codec:    codecName,
		bc:       bc,
		now:      now,
		stopChan: make(chan struct{}),
	}, nil
}

// Run ticks every chunkDuration, generating, encoding, and publishing
// one chunk each time, until Stop is called.
func (e *Engine) Run() {
	format := e.source.Format()
	frames := int(chunkDuration * time.Duration(format.Rate) / time.Second)
	samples := make([]int32, frames*format.Channels)

	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := e.source.Read(samples)
			if err != nil {
				log.Printf("[engine %s] source read error: %v", e.streamID, err)
				continue
			}
			chunk, err := e.chain.EncodeChunk(samples[:n])
			if err != nil {
				log.Printf("[engine %s] encode error: %v", e.streamID, err)
				continue
			}
			e.bc.Publish(e.streamID, e.codec, chunk)

		case <-e.stopChan:
			return
		}
	}
}

// Stop halts the engine's generate/encode/publish loop and releases
// its source.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		if err := e.source.Close(); err != nil {
			log.Printf("[engine %s] source close error: %v", e.streamID, err)
		}
	})
}

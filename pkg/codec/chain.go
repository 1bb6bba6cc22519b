package codec

import (
	"time"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

// EncoderChain wraps an Encoder with the timestamp bookkeeping described
// in §4.4 and supplemented from the original source's encoder base class:
// each emitted chunk's start is the encoder's running "next chunk start"
// clock, advanced by exactly the emitted chunk's duration after every
// call — so start times stay monotonic and evenly spaced regardless of
// how long the Encode call itself took on a loaded server.
type EncoderChain struct {
	Encoder
	format    audio.SampleFormat
	nextStart time.Duration
}

// NewEncoderChain wraps enc, seeding the bookkeeping clock at start.
func NewEncoderChain(enc Encoder, format audio.SampleFormat, start time.Duration) *EncoderChain {
	return &EncoderChain{Encoder: enc, format: format, nextStart: start}
}

// EncodeChunk encodes samples and returns a chunk stamped at the chain's
// current bookkeeping clock, which is then advanced by the chunk's
// duration.
func (c *EncoderChain) EncodeChunk(samples []int32) (*audio.Chunk, error) {
	payload, err := c.Encode(samples)
	if err != nil {
		return nil, err
	}
	frames := len(samples) / c.format.Channels
	duration := time.Duration(frames) * time.Second / time.Duration(c.format.Rate)

	chunk := &audio.Chunk{
		Format:         c.format,
		RecordingStart: c.nextStart,
		Payload:        payload,
	}
	c.nextStart += duration
	return chunk, nil
}

// Reset reseeds the bookkeeping clock, used when a stream restarts.
func (c *EncoderChain) Reset(start time.Duration) {
	c.nextStart = start
}

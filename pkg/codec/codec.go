// Package codec provides the server-side encoder and client-side decoder
// capability sets described in §4.4 and §4.7: a uniform contract over
// PCM, Opus, FLAC, and Vorbis, hiding each codec's underlying library
// behind a thin owning wrapper (no shared state between instances,
// per §9 design notes).
package codec

import "github.com/airwave-audio/airwave-go/pkg/audio"

// Encoder consumes PCM samples at one fixed SampleFormat and emits
// codec-specific bytes. Timestamps are the caller's responsibility
// (EncoderChain's chunk-duration bookkeeping);
// Encoder only turns samples into bytes.
type Encoder interface {
	// Encode converts interleaved int32 samples to encoded bytes.
	Encode(samples []int32) ([]byte, error)
	// Header returns the codec-specific bytes needed to initialize a
	// matching Decoder (FLAC STREAMINFO, Vorbis setup packets, or a
	// WAV-like header for PCM).
	Header() []byte
	// Name is the codec_name carried in CodecHeader.
	Name() string
	Close() error
}

// Decoder initializes from a CodecHeader payload, then decodes chunks one
// at a time. Decode may return a non-negative delay, in microseconds,
// representing internal cache latency (e.g. a FLAC block cache) the
// caller subtracts from the chunk's start timestamp; a zero delay is
// typical.
type Decoder interface {
	// Decode converts one encoded payload into interleaved int32
	// samples, plus a cache delay in microseconds to back-date the
	// chunk's start by.
	Decode(data []byte) (samples []int32, delay int64, err error)
	Format() audio.SampleFormat
	Close() error
}

// NewDecoder constructs a Decoder for name, initializing it from header.
func NewDecoder(name string, header []byte) (Decoder, error) {
	switch name {
	case "pcm":
		return newPCMDecoder(header)
	case "opus":
		return newOpusDecoder(header)
	case "flac":
		return newFLACDecoder(header)
	case "vorbis":
		return newVorbisDecoder(header)
	default:
		return nil, ErrUnsupportedCodec{Name: name}
	}
}

// NewEncoder constructs an Encoder for name at the given format.
func NewEncoder(name string, format audio.SampleFormat) (Encoder, error) {
	switch name {
	case "pcm":
		return newPCMEncoder(format)
	case "opus":
		return newOpusEncoder(format)
	case "flac":
		return newFLACEncoder(format)
	case "vorbis":
		return newVorbisEncoder(format)
	default:
		return nil, ErrUnsupportedCodec{Name: name}
	}
}

// ErrUnsupportedCodec is returned by NewDecoder/NewEncoder for an unknown
// codec name.
type ErrUnsupportedCodec struct{ Name string }

func (e ErrUnsupportedCodec) Error() string {
	return "codec: unsupported codec " + e.Name
}

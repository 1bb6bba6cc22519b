package codec

import (
	"bytes"
	"fmt"

	"github.com/airwave-audio/airwave-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// flacStreamInfoSize is the fixed size of a FLAC STREAMINFO metadata
// block (RFC 9639 §8.2), the CodecHeader payload for the flac codec.
const flacStreamInfoSize = 34

// flacMarkerHeader wraps a raw STREAMINFO block in the minimal stream
// prologue mewkiz/flac expects (the "fLaC" marker plus a metadata-block
// header declaring a 34-byte STREAMINFO block as the last block), so
// flac.New can parse it the same way it parses a real file's header in
// the source-side FLACSource, without us hand-rolling the bit layout.
func flacMarkerHeader(streamInfo []byte) []byte {
	buf := make([]byte, 0, 4+4+len(streamInfo))
	buf = append(buf, "fLaC"...)
	buf = append(buf, 0x80, 0x00, 0x00, byte(len(streamInfo))) // last-block flag | type=STREAMINFO(0), 24-bit length
	buf = append(buf, streamInfo...)
	return buf
}

// parseFLACStreamInfo extracts sample rate, channel count, and bit depth
// from a raw STREAMINFO block using mewkiz/flac's own header parser.
func parseFLACStreamInfo(b []byte) (audio.SampleFormat, error) {
	if len(b) < flacStreamInfoSize {
		return audio.SampleFormat{}, fmt.Errorf("codec: flac STREAMINFO too short (%d bytes)", len(b))
	}
	stream, err := flac.New(bytes.NewReader(flacMarkerHeader(b[:flacStreamInfoSize])))
	if err != nil {
		return audio.SampleFormat{}, fmt.Errorf("codec: parse flac STREAMINFO: %w", err)
	}
	info := stream.Info
	return audio.SampleFormat{
		Rate:     int(info.SampleRate),
		Bits:     int(info.BitsPerSample),
		Channels: int(info.NChannels),
	}, nil
}

type flacDecoder struct {
	format audio.SampleFormat
}

// newFLACDecoder parses the STREAMINFO block for format discovery. Actual
// frame decode is not yet implemented — matching the upstream client's
// own FLACDecoder, which stops at the same point pending a streaming
// frame-at-a-time adapter over mewkiz/flac.
func newFLACDecoder(header []byte) (Decoder, error) {
	format, err := parseFLACStreamInfo(header)
	if err != nil {
		return nil, err
	}
	return &flacDecoder{format: format}, nil
}

func (d *flacDecoder) Decode(data []byte) ([]int32, int64, error) {
	return nil, 0, fmt.Errorf("codec: flac frame decoding not yet implemented")
}

func (d *flacDecoder) Format() audio.SampleFormat { return d.format }
func (d *flacDecoder) Close() error               { return nil }

type flacEncoder struct {
	format audio.SampleFormat
}

func newFLACEncoder(format audio.SampleFormat) (Encoder, error) {
	return &flacEncoder{format: format}, nil
}

func (e *flacEncoder) Encode(samples []int32) ([]byte, error) {
	return nil, fmt.Errorf("codec: flac encoding not yet implemented")
}

// Header emits a zeroed STREAMINFO block sized correctly; real encoding
// would fill min/max block+frame size and total-sample fields once frame
// encode exists.
func (e *flacEncoder) Header() []byte {
	return make([]byte, flacStreamInfoSize)
}

func (e *flacEncoder) Name() string { return "flac" }
func (e *flacEncoder) Close() error { return nil }

package codec

import (
	"fmt"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

// Vorbis support is a contract-only stub: no library in the retrieval
// pack provides a usable pure-Go Vorbis codec, and CGo bindings (e.g.
// libvorbis wrappers) would break the ambient dependency story. Wiring
// this in later means adopting such a binding and filling these two
// types in; until then NewDecoder/NewEncoder("vorbis", ...) construct
// successfully (so CodecHeader dispatch for "vorbis" doesn't hard-fail)
// but every decode/encode call errors.

type vorbisDecoder struct {
	format audio.SampleFormat
}

func newVorbisDecoder(header []byte) (Decoder, error) {
	return &vorbisDecoder{format: audio.DefaultSampleFormat}, nil
}

func (d *vorbisDecoder) Decode(data []byte) ([]int32, int64, error) {
	return nil, 0, fmt.Errorf("codec: vorbis decoding not yet implemented")
}

func (d *vorbisDecoder) Format() audio.SampleFormat { return d.format }
func (d *vorbisDecoder) Close() error               { return nil }

type vorbisEncoder struct {
	format audio.SampleFormat
}

func newVorbisEncoder(format audio.SampleFormat) (Encoder, error) {
	return &vorbisEncoder{format: format}, nil
}

func (e *vorbisEncoder) Encode(samples []int32) ([]byte, error) {
	return nil, fmt.Errorf("codec: vorbis encoding not yet implemented")
}

// Header returns empty setup packets; real Vorbis would carry the three
// Vorbis setup packets here (§4.4).
func (e *vorbisEncoder) Header() []byte { return nil }
func (e *vorbisEncoder) Name() string   { return "vorbis" }
func (e *vorbisEncoder) Close() error   { return nil }

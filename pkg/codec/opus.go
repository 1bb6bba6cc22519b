package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/airwave-audio/airwave-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

type opusEncoder struct {
	enc    *opus.Encoder
	format audio.SampleFormat
}

func newOpusEncoder(format audio.SampleFormat) (Encoder, error) {
	enc, err := opus.NewEncoder(format.Rate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("codec: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc, format: format}, nil
}

func (e *opusEncoder) Encode(samples []int32) ([]byte, error) {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = audio.SampleToInt16(s)
	}
	out := make([]byte, 4000) // max Opus packet size
	n, err := e.enc.Encode(pcm, out)
	if err != nil {
		return nil, fmt.Errorf("codec: opus encode: %w", err)
	}
	return out[:n], nil
}

// Header builds a minimal OpusHead-like descriptor carrying just the
// fields a decoder needs to recreate the SampleFormat; a full Ogg/Opus
// setup is out of scope since chunks travel framed on our own wire
// protocol, not muxed into Ogg pages.
func (e *opusEncoder) Header() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.format.Rate))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(e.format.Channels))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(e.format.Bits))
	return buf
}

func (e *opusEncoder) Name() string { return "opus" }
func (e *opusEncoder) Close() error { return nil }

type opusDecoder struct {
	dec    *opus.Decoder
	format audio.SampleFormat
}

func newOpusDecoder(header []byte) (Decoder, error) {
	if len(header) < 8 {
		return nil, fmt.Errorf("codec: opus header too short (%d bytes)", len(header))
	}
	rate := int(binary.LittleEndian.Uint32(header[0:4]))
	channels := int(binary.LittleEndian.Uint16(header[4:6]))
	bits := int(binary.LittleEndian.Uint16(header[6:8]))
	dec, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return nil, fmt.Errorf("codec: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec, format: audio.SampleFormat{Rate: rate, Bits: bits, Channels: channels}}, nil
}

func (d *opusDecoder) Decode(data []byte) ([]int32, int64, error) {
	pcmSize := 5760 * d.format.Channels // max frame size per the opus spec
	pcm16 := make([]int16, pcmSize)

	n, err := d.dec.Decode(data, pcm16)
	if err != nil {
		return nil, 0, fmt.Errorf("codec: opus decode: %w", err)
	}

	actual := n * d.format.Channels
	out := make([]int32, actual)
	for i := 0; i < actual; i++ {
		out[i] = audio.SampleFromInt16(pcm16[i])
	}
	return out, 0, nil
}

func (d *opusDecoder) Format() audio.SampleFormat { return d.format }
func (d *opusDecoder) Close() error               { return nil }

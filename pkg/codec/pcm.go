package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

// pcmHeaderSize matches the 44-byte WAV-like header emitted as the PCM
// CodecHeader (§4.4).
const pcmHeaderSize = 44

type pcmEncoder struct {
	format audio.SampleFormat
}

func newPCMEncoder(format audio.SampleFormat) (Encoder, error) {
	if !format.Initialized() {
		return nil, fmt.Errorf("codec: pcm encoder requires an initialized format")
	}
	return &pcmEncoder{format: format}, nil
}

// Encode passes PCM samples through unchanged, packing them at the
// configured bit depth.
func (e *pcmEncoder) Encode(samples []int32) ([]byte, error) {
	switch e.format.Bits {
	case 16:
		out := make([]byte, len(samples)*2)
		for i, s := range samples {
			v := audio.SampleToInt16(s)
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
		return out, nil
	case 24:
		out := make([]byte, len(samples)*3)
		for i, s := range samples {
			b := audio.SampleTo24Bit(s)
			copy(out[i*3:], b[:])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unsupported pcm bit depth %d", e.format.Bits)
	}
}

// Header builds a minimal WAV-like fmt description, just enough for a
// decoder to recover the SampleFormat (§4.4).
func (e *pcmEncoder) Header() []byte {
	buf := make([]byte, pcmHeaderSize)
	copy(buf[0:4], "RIFF")
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(e.format.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(e.format.Rate))
	byteRate := e.format.Rate * e.format.FrameSize()
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(e.format.FrameSize()))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(e.format.Bits))
	copy(buf[36:40], "data")
	return buf
}

func (e *pcmEncoder) Name() string { return "pcm" }
func (e *pcmEncoder) Close() error { return nil }

type pcmDecoder struct {
	format audio.SampleFormat
}

func newPCMDecoder(header []byte) (Decoder, error) {
	if len(header) < pcmHeaderSize {
		return nil, fmt.Errorf("codec: pcm header too short (%d bytes)", len(header))
	}
	channels := int(binary.LittleEndian.Uint16(header[22:24]))
	rate := int(binary.LittleEndian.Uint32(header[24:28]))
	bits := int(binary.LittleEndian.Uint16(header[34:36]))
	return &pcmDecoder{format: audio.SampleFormat{Rate: rate, Bits: bits, Channels: channels}}, nil
}

func (d *pcmDecoder) Decode(data []byte) ([]int32, int64, error) {
	switch d.format.Bits {
	case 16:
		if len(data)%2 != 0 {
			return nil, 0, fmt.Errorf("codec: pcm16 payload not sample-aligned")
		}
		out := make([]int32, len(data)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(data[i*2:]))
			out[i] = audio.SampleFromInt16(v)
		}
		return out, 0, nil
	case 24:
		if len(data)%3 != 0 {
			return nil, 0, fmt.Errorf("codec: pcm24 payload not sample-aligned")
		}
		out := make([]int32, len(data)/3)
		for i := range out {
			var b [3]byte
			copy(b[:], data[i*3:i*3+3])
			out[i] = audio.SampleFrom24Bit(b)
		}
		return out, 0, nil
	default:
		return nil, 0, fmt.Errorf("codec: unsupported pcm bit depth %d", d.format.Bits)
	}
}

func (d *pcmDecoder) Format() audio.SampleFormat { return d.format }
func (d *pcmDecoder) Close() error               { return nil }

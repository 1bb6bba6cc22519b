package server

import (
	"math"
	"sync"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

// Source generates interleaved int32 samples for one stream, the
// server-side counterpart to pkg/codec's int32 sample convention.
// Adapted from the teacher's TestToneSource interface, generalized
// from a fixed int16/stereo reader to the chain's SampleFormat.
type Source interface {
	Read(samples []int32) (int, error)
	Format() audio.SampleFormat
	Close() error
}

// ToneSource generates a sine wave test tone, used as the default
// stream when no real audio source is configured.
type ToneSource struct {
	mu          sync.Mutex
	format      audio.SampleFormat
	frequency   float64
	sampleIndex uint64
}

// NewToneSource creates a ToneSource at format, defaulting to an A4
// (440Hz) tone at 50% amplitude, matching the teacher's test tone.
func NewToneSource(format audio.SampleFormat) *ToneSource {
	return &ToneSource{format: format, frequency: 440.0}
}

func (s *ToneSource) Read(samples []int32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := s.format.Channels
	frames := len(samples) / channels
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.format.Rate)
		v := math.Sin(2*math.Pi*s.frequency*t) * 0.5
		sample16 := int16(v * 32767.0)
		sample := audio.SampleFromInt16(sample16)
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = sample
		}
	}
	s.sampleIndex += uint64(frames)
	return frames * channels, nil
}

func (s *ToneSource) Format() audio.SampleFormat { return s.format }
func (s *ToneSource) Close() error                { return nil }

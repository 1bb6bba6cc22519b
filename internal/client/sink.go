// Package client binds the client side of the protocol together: it
// opens a transport, performs the Hello/ServerSettings handshake,
// drives a time-sync task, dispatches incoming messages to the decoder
// and jitter buffer, and pulls synchronized audio from an output sink
// (§4.8).
package client

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/airwave-audio/airwave-go/pkg/audio"
	"github.com/airwave-audio/airwave-go/pkg/jitterbuffer"
)

// dacCallbackFrames sizes the Sink's frameBuf; Read itself requests as
// many frames as fit in the buffer oto passes it.
const dacCallbackFrames = 480

// Sink drives continuous PCM playback from a jitter buffer through oto,
// applying software volume and mute (§4.8, "client audio sink"). It
// implements io.Reader so oto.NewPlayer can pull from it directly,
// instead of the teacher's one-shot NewPlayer-per-buffer approach,
// since this protocol needs one continuously running player to let the
// jitter buffer's sync corrections land sample-accurately.
type Sink struct {
	mu     sync.Mutex
	format audio.SampleFormat
	buffer *jitterbuffer.Buffer

	otoCtx *oto.Context
	player *oto.Player

	volume int // 0-100
	muted  bool

	frameBuf []byte
}

// NewSink creates a Sink with no active output; call Initialize once
// the stream's SampleFormat is known from a CodecHeader.
func NewSink() *Sink {
	return &Sink{volume: 100}
}

// Initialize (re)creates the oto context and starts continuous
// playback pulling from buffer, closing any previously running output
// first (§4.8: codec switch mid-session reinitializes the sink).
func (s *Sink) Initialize(format audio.SampleFormat, buffer *jitterbuffer.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	if s.otoCtx != nil {
		s.otoCtx.Suspend()
		s.otoCtx = nil
	}

	s.format = format
	s.buffer = buffer
	s.frameBuf = make([]byte, dacCallbackFrames*2*format.Channels) // always 16-bit out

	op := &oto.NewContextOptions{
		SampleRate:   format.Rate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("client: create oto context: %w", err)
	}
	<-readyChan

	s.otoCtx = ctx
	s.player = ctx.NewPlayer(s)
	s.player.Play()

	log.Printf("[sink] initialized: %dHz %dch", format.Rate, format.Channels)
	return nil
}

// Read implements io.Reader for oto's pull model: it asks the jitter
// buffer for one DAC-callback's worth of frames, falling back to
// silence if the buffer can't supply them yet, then applies the
// current volume/mute.
func (s *Sink) Read(p []byte) (int, error) {
	s.mu.Lock()
	buffer := s.buffer
	format := s.format
	volume := s.volume
	muted := s.muted
	s.mu.Unlock()

	if buffer == nil || !format.Initialized() {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	frameSize := 2 * format.Channels // output is always 16-bit
	frames := len(p) / frameSize
	if frames == 0 {
		return 0, nil
	}

	out := p[:frames*frameSize]
	if !buffer.GetPlayerChunk(out, s.dacDelay(), frames) {
		for i := range out {
			out[i] = 0
		}
	}
	applyVolume16(out, volume, muted)

	return frames * frameSize, nil
}

// dacDelay approximates oto's internal output buffering. oto/v3
// exposes no direct query for this, so the teacher's output path
// ignores it too; this is a fixed estimate rather than zero, since the
// jitter buffer's hard-sync math is sensitive to a persistent bias.
func (s *Sink) dacDelay() time.Duration {
	return 20 * time.Millisecond
}

// SetVolume sets playback volume as a 0-100 percentage.
func (s *Sink) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
}

// SetMuted sets the mute flag.
func (s *Sink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Volume and Muted report the current software volume state.
func (s *Sink) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Sink) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Close stops playback and releases the oto context.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	if s.otoCtx != nil {
		s.otoCtx.Suspend()
		s.otoCtx = nil
	}
}

// applyVolume16 scales 16-bit little-endian PCM in place by volume/100,
// or zeroes it when muted, matching the teacher's own software-volume
// approach in internal/player/output.go generalized to N channels.
func applyVolume16(pcm []byte, volume int, muted bool) {
	if muted {
		for i := range pcm {
			pcm[i] = 0
		}
		return
	}
	if volume == 100 {
		return
	}
	mult := float64(volume) / 100.0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sample = int16(float64(sample) * mult)
		binary.LittleEndian.PutUint16(pcm[i:i+2], uint16(sample))
	}
}

// Package jitterbuffer implements the client's adaptive playback queue:
// it buffers incoming chunks, decides at each DAC callback exactly which
// samples are due, and performs hard resyncs (silence/fast-forward) or
// soft resyncs (uniform frame insert/drop) to keep playback locked to the
// server's clock (§4.6 — the hardest, most central piece of the system).
package jitterbuffer

import (
	"sort"
	"time"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

const (
	miniWindowSize  = 20
	shortWindowSize = 100
	longWindowSize  = 500

	staleSlack = 5 * time.Second

	shortMedianHardSync = 5 * time.Millisecond
	longMedianHardSync  = 2 * time.Millisecond
	miniMedianHardSync  = 50 * time.Millisecond
	ageHardSync         = 500 * time.Millisecond
	minAgeForHardCheck  = 500 * time.Microsecond

	shortMedianSoftThreshold = 100 * time.Microsecond
	miniMedianSoftThreshold  = 50 * time.Microsecond
	ageSoftThreshold         = 50 * time.Microsecond

	// rateFactorScale and the rateFactor*Clip bounds implement the empirical soft-sync
	// formula from §4.6/§9: rate_factor = 1 - clip(short_median/100us *
	// 5e-5, 0, 5e-4). Treated as tunables, not load-bearing constants.
	rateFactorScale   = 5e-5
	rateFactorMinClip = 0.0
	rateFactorMaxClip = 5e-4
)

// Clock supplies the client's view of server time, typically backed by
// internal/timesync.Sync.ServerNow.
type Clock func() time.Duration

// Buffer is the ordered chunk queue plus sync state for one stream. It is
// safe for concurrent use by one network-task writer (AddChunk) and one
// audio-callback reader (GetPlayerChunk); the critical sections are kept
// short per §5's real-time constraints.
type Buffer struct {
	format   audio.SampleFormat
	bufferMs time.Duration
	now      Clock

	queue []*audio.Chunk

	hardSync bool

	mini, short, long *rollingWindow

	playedFrames     int
	correctionStride int // 0 = disabled
	correctionSign   int // +1 = drop frames (late), -1 = insert frames (early)

	onHardSync func()
	onSoftSync func(direction string)
}

// OnHardSync registers a callback invoked every time the buffer enters
// hard-sync mode, e.g. to increment a metrics counter.
func (b *Buffer) OnHardSync(fn func()) { b.onHardSync = fn }

// OnSoftSync registers a callback invoked every time a soft-sync
// correction is (re)armed, with direction "insert" or "drop".
func (b *Buffer) OnSoftSync(fn func(direction string)) { b.onSoftSync = fn }

// New creates a Buffer targeting bufferMs end-to-end latency, using now to
// read the synchronized server clock.
func New(format audio.SampleFormat, bufferMs time.Duration, now Clock) *Buffer {
	return &Buffer{
		format:   format,
		bufferMs: bufferMs,
		now:      now,
		hardSync: true,
		mini:     newRollingWindow(miniWindowSize),
		short:    newRollingWindow(shortWindowSize),
		long:     newRollingWindow(longWindowSize),
	}
}

// SetBufferMs updates the target latency (e.g. on ServerSettings update).
func (b *Buffer) SetBufferMs(bufferMs time.Duration) {
	b.bufferMs = bufferMs
}

// Len returns the number of chunks currently queued.
func (b *Buffer) Len() int { return len(b.queue) }

// staleThreshold is the age beyond which a chunk is discarded outright.
func (b *Buffer) staleThreshold() time.Duration {
	return staleSlack + b.bufferMs
}

// AddChunk inserts chunk in server-timestamp order, drops it if already
// stale on arrival, and trims stale chunks from the queue front (§4.6
// insertion algorithm, steps 1, 3 and 4). It does not resample: chunks
// are queued in the format they arrive in.
func (b *Buffer) AddChunk(chunk *audio.Chunk) {
	age := b.now() - chunk.Start()
	if age > b.staleThreshold() {
		return
	}

	idx := sort.Search(len(b.queue), func(i int) bool {
		return b.queue[i].Start() > chunk.Start()
	})
	b.queue = append(b.queue, nil)
	copy(b.queue[idx+1:], b.queue[idx:])
	b.queue[idx] = chunk

	for len(b.queue) > 0 {
		front := b.queue[0]
		if b.now()-front.Start() > b.staleThreshold() {
			b.queue = b.queue[1:]
			continue
		}
		break
	}
}

// GetPlayerChunk fills out with exactly frames frames of audio, or
// returns false and leaves out untouched (caller fills silence) per
// §4.6. dacDelay is the sink-reported playout delay.
func (b *Buffer) GetPlayerChunk(out []byte, dacDelay time.Duration, frames int) bool {
	frameSize := b.format.FrameSize()
	if len(out) < frames*frameSize {
		return false
	}

	if b.hardSync {
		return b.getPlayerChunkHardSync(out, dacDelay, frames, frameSize)
	}
	return b.getPlayerChunkSteady(out, dacDelay, frames, frameSize)
}

func (b *Buffer) getPlayerChunkHardSync(out []byte, dacDelay time.Duration, frames, frameSize int) bool {
	if len(b.queue) == 0 {
		return false
	}
	front := b.queue[0]
	age := b.playbackAge(front, dacDelay)
	requestedDuration := time.Duration(frames) * time.Second / time.Duration(b.format.Rate)

	switch {
	case age < -requestedDuration:
		fillSilence(out, frames, frameSize)
		return true

	case age > 0:
		threshold := b.now() - b.bufferMs + dacDelay
		for len(b.queue) > 0 && b.queue[0].End() <= threshold {
			b.queue = b.queue[1:]
		}
		if len(b.queue) == 0 {
			return false
		}
		front = b.queue[0]
		front.SeekForward(age)
		fallthrough

	default:
		age = b.playbackAge(front, dacDelay)
		silentFrames := 0
		if age < 0 {
			silentFrames = int(-age * time.Duration(b.format.Rate) / time.Second)
		}
		if silentFrames > frames {
			silentFrames = frames
		}
		fillSilence(out[:silentFrames*frameSize], silentFrames, frameSize)

		realFrames := frames - silentFrames
		read, n := b.readFramesMulti(realFrames, frameSize)
		if n < realFrames {
			return false
		}
		copy(out[silentFrames*frameSize:], read)

		b.hardSync = false
		b.mini.Reset()
		b.short.Reset()
		b.long.Reset()
		return true
	}
}

func (b *Buffer) getPlayerChunkSteady(out []byte, dacDelay time.Duration, frames, frameSize int) bool {
	correction := b.nextCorrection(frames)
	total := frames + correction
	if total < 0 {
		total = 0
	}

	read, n := b.readFramesMulti(total, frameSize)
	if n < total {
		return false
	}

	redistributed := redistributeFrames(read, total, correction, frameSize)
	copy(out, redistributed)

	var age time.Duration
	if len(b.queue) > 0 {
		age = b.playbackAge(b.queue[0], dacDelay)
	}
	b.mini.Add(age)
	b.short.Add(age)
	b.long.Add(age)
	b.decideNextSyncAction(age)

	return true
}

// playbackAge is the "age at this call" from §4.6: server_now() -
// chunk.start() - bufferMs + dac_delay.
func (b *Buffer) playbackAge(chunk *audio.Chunk, dacDelay time.Duration) time.Duration {
	return b.now() - chunk.Start() - b.bufferMs + dacDelay
}

// readFramesMulti reads up to n frames across however many chunks at the
// queue front are needed, advancing past any chunk it exhausts.
func (b *Buffer) readFramesMulti(n, frameSize int) ([]byte, int) {
	if n <= 0 {
		return nil, 0
	}
	out := make([]byte, 0, n*frameSize)
	remaining := n
	for remaining > 0 && len(b.queue) > 0 {
		front := b.queue[0]
		chunkBytes, read := front.ReadFrames(remaining)
		out = append(out, chunkBytes...)
		remaining -= read
		if front.Exhausted() {
			b.queue = b.queue[1:]
		}
		if read == 0 {
			break
		}
	}
	return out, n - remaining
}

func fillSilence(out []byte, frames, frameSize int) {
	n := frames * frameSize
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = 0
	}
}

// decideNextSyncAction implements §4.6 step 5: from the three rolling
// medians and the latest age, decide whether to trigger a hard sync,
// apply a soft-sync rate correction, or clear correction entirely.
func (b *Buffer) decideNextSyncAction(age time.Duration) {
	shortM := b.short.Median()
	longM := b.long.Median()
	miniM := b.mini.Median()
	absAge := abs(age)

	if (abs(shortM) > shortMedianHardSync && absAge > minAgeForHardCheck) ||
		(abs(longM) > longMedianHardSync && absAge > minAgeForHardCheck) ||
		(abs(miniM) > miniMedianHardSync && absAge > minAgeForHardCheck) ||
		absAge > ageHardSync {
		b.hardSync = true
		b.disableCorrection()
		if b.onHardSync != nil {
			b.onHardSync()
		}
		return
	}

	switch {
	case shortM > shortMedianSoftThreshold && miniM > miniMedianSoftThreshold && age > ageSoftThreshold:
		b.setCorrection(rateFactorFor(shortM, -1))
	case shortM < -shortMedianSoftThreshold && miniM < -miniMedianSoftThreshold && age < -ageSoftThreshold:
		b.setCorrection(rateFactorFor(-shortM, 1))
	default:
		b.disableCorrection()
	}
}

// rateFactorFor computes 1 +/- clip(median/100us * 5e-5, 0, 5e-4); sign
// is -1 when the client is late (drop frames, rate_factor < 1) and +1
// when early (insert frames, rate_factor > 1).
func rateFactorFor(median time.Duration, sign float64) float64 {
	ratio := float64(median) / float64(100*time.Microsecond) * rateFactorScale
	ratio = clip(ratio, rateFactorMinClip, rateFactorMaxClip)
	return 1 + sign*ratio
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// setCorrection converts a target rate factor into an integer stride:
// one frame is added or dropped every `stride` output frames (§4.6
// step 6).
func (b *Buffer) setCorrection(rateFactor float64) {
	if rateFactor == 1.0 {
		b.disableCorrection()
		return
	}
	ratio := 1 / rateFactor
	stride := round(ratio / (ratio - 1))
	if stride < 0 {
		stride = -stride
	}
	b.correctionStride = stride
	direction := "insert"
	if rateFactor < 1 {
		b.correctionSign = 1 // drop
		direction = "drop"
	} else {
		b.correctionSign = -1 // insert
	}
	b.playedFrames = 0
	if b.onSoftSync != nil {
		b.onSoftSync(direction)
	}
}

func (b *Buffer) disableCorrection() {
	b.correctionStride = 0
	b.correctionSign = 0
	b.playedFrames = 0
}

// nextCorrection accumulates played_frames and schedules a correction of
// `played_frames / stride` frames (signed) whenever the stride threshold
// is crossed (§4.6 step 6).
func (b *Buffer) nextCorrection(frames int) int {
	if b.correctionStride == 0 {
		return 0
	}
	b.playedFrames += frames
	if b.playedFrames < b.correctionStride {
		return 0
	}
	n := b.playedFrames / b.correctionStride
	b.playedFrames -= n * b.correctionStride
	return n * b.correctionSign
}

func round(f float64) int {
	if f < 0 {
		return -int(-f + 0.5)
	}
	return int(f + 0.5)
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// redistributeFrames spreads `correction` inserted/dropped frames
// uniformly across the source buffer's srcFrames, producing srcFrames -
// correction destination frames (§4.6 step 3). Positive correction drops
// frames (source has correction extra frames); negative correction
// duplicates frames (source has -correction too few).
func redistributeFrames(src []byte, srcFrames, correction, frameSize int) []byte {
	if correction == 0 {
		return src
	}
	dstFrames := srcFrames - correction
	if dstFrames < 0 {
		dstFrames = 0
	}
	out := make([]byte, dstFrames*frameSize)

	if correction > 0 {
		slices := correction + 1
		srcIdx, outIdx, dropped := 0, 0, 0
		for outIdx < dstFrames && srcIdx < srcFrames {
			boundary := (dropped + 1) * srcFrames / slices
			if dropped < correction && srcIdx+1 == boundary {
				srcIdx++
				dropped++
				continue
			}
			copy(out[outIdx*frameSize:], src[srcIdx*frameSize:(srcIdx+1)*frameSize])
			srcIdx++
			outIdx++
		}
		return out
	}

	ins := -correction
	slices := ins + 1
	srcIdx, outIdx, inserted := 0, 0, 0
	for outIdx < dstFrames && srcIdx < srcFrames {
		copy(out[outIdx*frameSize:], src[srcIdx*frameSize:(srcIdx+1)*frameSize])
		outIdx++
		boundary := (inserted + 1) * dstFrames / slices
		if inserted < ins && outIdx == boundary {
			copy(out[outIdx*frameSize:], src[srcIdx*frameSize:(srcIdx+1)*frameSize])
			outIdx++
			inserted++
		}
		srcIdx++
	}
	return out
}

// Package resample converts PCM sample streams between sample rates using
// linear interpolation. internal/server's ResampledSource uses it to feed
// an encoder from a source whose native rate differs from the target.
package resample

// Resampler performs linear interpolation between an input and output
// sample rate, carrying fractional phase across successive calls so chunk
// boundaries don't introduce audible discontinuities.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a Resampler converting inputRate to outputRate for an
// interleaved stream of channels channels.
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// NoOp reports whether input and output rates are identical, in which
// case callers may skip resampling entirely.
func (r *Resampler) NoOp() bool {
	return r.inputRate == r.outputRate
}

// Resample converts interleaved input samples into output, returning the
// number of output samples (not frames) written. The caller must size
// output generously (see OutputSamplesNeeded); any unconsumed input stays
// unconsumed and should be resubmitted, prefixed to the next call, by the
// caller if needed.
func (r *Resampler) Resample(input []int32, output []int32) int {
	if len(input) == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputIdx := int(r.position)
		if inputIdx >= inputFrames-1 {
			break
		}

		frac := r.position - float64(inputIdx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[(inputIdx+1)*r.channels+ch]
			interpolated := float64(s1)*(1.0-frac) + float64(s2)*frac
			output[outIdx*r.channels+ch] = int32(interpolated)
		}

		outIdx++
		r.position += r.ratio
	}

	r.position -= float64(int(r.position))
	return outIdx * r.channels
}

// Reset clears the fractional phase, used when a stream restarts (codec
// header re-init, CodecHeader with an unknown name, etc).
func (r *Resampler) Reset() {
	r.position = 0
}

// OutputSamplesNeeded estimates how many output samples a given input
// sample count will produce.
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded estimates how many input samples are needed to
// produce a given output sample count.
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}

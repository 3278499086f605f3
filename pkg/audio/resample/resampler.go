// ABOUTME: Linear interpolation resampling for 16-bit interleaved PCM
// ABOUTME: A streaming Resampler for rate conversion and Stretch for pitch shifting
package resample

// Resampler performs linear interpolation to convert a continuous stream
// between sample rates. The last input frame is carried over so that
// consecutive chunks interpolate across their boundary.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	lastFrame  []int16
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int16, channels),
	}
}

// Resample converts interleaved input at inputRate into output at
// outputRate and returns the number of samples written. output should hold
// at least OutputSamplesNeeded(len(input)) plus one frame.
func (r *Resampler) Resample(input []int16, output []int16) int {
	ch := r.channels
	inputFrames := len(input) / ch
	if inputFrames == 0 {
		return 0
	}

	// Frame 0 is the carried frame once primed
	total := inputFrames
	if r.primed {
		total++
	}
	at := func(frame, c int) int16 {
		if r.primed {
			if frame == 0 {
				return r.lastFrame[c]
			}
			frame--
		}
		return input[frame*ch+c]
	}

	outputFrames := len(output) / ch
	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}
		frac := r.position - float64(idx)
		for c := 0; c < ch; c++ {
			a := float64(at(idx, c))
			b := float64(at(idx+1, c))
			output[outIdx*ch+c] = int16(a + (b-a)*frac)
		}
		outIdx++
		r.position += r.ratio
	}

	// Keep the fractional position relative to the new carried frame
	r.position -= float64(total - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.lastFrame, input[(inputFrames-1)*ch:])
	r.primed = true

	return outIdx * ch
}

// Reset drops the carried frame and position
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}

// Stretch fills dst from src at a fixed step of len(src)/len(dst) frames,
// interpolating linearly. The read index is clamped at the last source frame.
// Decoding pitch*N frames and stretching them into N frames shifts pitch.
func Stretch(dst, src []int16, channels int) {
	srcFrames := len(src) / channels
	dstFrames := len(dst) / channels
	if dstFrames == 0 {
		return
	}
	if srcFrames == 0 {
		clear(dst)
		return
	}

	step := float64(srcFrames) / float64(dstFrames)
	last := srcFrames - 1
	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		out := dst[i*channels : (i+1)*channels]
		if idx >= last {
			copy(out, src[last*channels:])
			continue
		}
		frac := pos - float64(idx)
		for c := 0; c < channels; c++ {
			a := float64(src[idx*channels+c])
			b := float64(src[(idx+1)*channels+c])
			out[c] = int16(a + (b-a)*frac)
		}
	}
}

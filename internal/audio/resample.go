package audio

// WhisperSampleRate is the sample rate expected by the ASR model and the VAD backends
const WhisperSampleRate = 16000

// Resample converts mono samples between rates with linear interpolation.
// The input slice is returned unchanged when the rates match.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 || from <= 0 || to <= 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j] + (samples[j+1]-samples[j])*frac
	}
	return out
}

// Resampler converts a stream of frames to a target rate, carrying the
// fractional read position across calls so frame boundaries add no drift.
type Resampler struct {
	from, to int
	pos      float64
	prev     float32
	primed   bool
}

func NewResampler(from, to int) *Resampler {
	return &Resampler{from: from, to: to}
}

// Process resamples the next frame of the stream
func (r *Resampler) Process(frame []float32) []float32 {
	if r.from == r.to || r.from <= 0 || r.to <= 0 {
		return frame
	}
	if len(frame) == 0 {
		return nil
	}

	// src holds the last sample of the previous frame at index 0
	src := frame
	if r.primed {
		src = make([]float32, len(frame)+1)
		src[0] = r.prev
		copy(src[1:], frame)
	}

	step := float64(r.from) / float64(r.to)
	out := make([]float32, 0, len(frame)*r.to/r.from+1)
	last := float64(len(src) - 1)
	pos := r.pos
	for pos < last {
		j := int(pos)
		frac := float32(pos - float64(j))
		out = append(out, src[j]+(src[j+1]-src[j])*frac)
		pos += step
	}

	// rebase so the carried sample sits at 0 on the next call
	r.pos = pos - last
	r.prev = src[len(src)-1]
	r.primed = true
	return out
}

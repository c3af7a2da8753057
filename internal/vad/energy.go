package vad

import "math"

const (
	// EnergyFrameSize is 30 ms at 16 kHz
	EnergyFrameSize = 480

	defaultEnergyThreshold = 0.01
	maxSpeechZCR           = 0.35
	loudFactor             = 4
)

// Energy is a stateless detector. A frame is speech when its RMS clears the
// threshold and it either has a speech-like zero-crossing rate or is loud
// enough to override it. Broadband hiss near the threshold is rejected.
// A constant non-silent frame is speech at any level.
type Energy struct {
	threshold float64
}

func NewEnergy(threshold float64) *Energy {
	if threshold <= 0 {
		threshold = defaultEnergyThreshold
	}
	return &Energy{threshold: threshold}
}

func (e *Energy) IsVoiceSegment(frame []float32) (bool, error) {
	if err := checkFrame(frame, EnergyFrameSize); err != nil {
		return false, err
	}

	if constantFrame(frame) {
		return true, nil
	}

	rms, zcr := frameStats(frame)
	if rms < e.threshold {
		return false, nil
	}
	return zcr <= maxSpeechZCR || rms >= loudFactor*e.threshold, nil
}

func (e *Energy) FrameSize() int  { return EnergyFrameSize }
func (e *Energy) SampleRate() int { return SampleRate }
func (e *Energy) Reset()          {}
func (e *Energy) Close() error    { return nil }

// frameStats returns the RMS and the fraction of adjacent sample pairs that
// change sign
func frameStats(frame []float32) (rms, zcr float64) {
	var sum float64
	var crossings int
	for i, s := range frame {
		v := float64(s)
		sum += v * v
		if i > 0 && (frame[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}
	rms = math.Sqrt(sum / float64(len(frame)))
	if len(frame) > 1 {
		zcr = float64(crossings) / float64(len(frame)-1)
	}
	return rms, zcr
}

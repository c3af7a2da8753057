package vad

const (
	// SileroFrameSize is 32 ms at 16 kHz, one Silero v5 hop
	SileroFrameSize = 512
	// sileroContextSize samples of the previous frame are prepended to every window
	sileroContextSize = 64

	defaultSpeechThreshold = 0.5
)

// speechModel runs one window of sileroContextSize+SileroFrameSize samples
// and returns a speech probability, updating its recurrent state.
type speechModel interface {
	Predict(window []float32) (float32, error)
	ResetState()
	Close() error
}

// Silero is the model-based backend
type Silero struct {
	model     speechModel
	threshold float32
	window    []float32
}

func newSilero(model speechModel, threshold float64) *Silero {
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultSpeechThreshold
	}
	return &Silero{
		model:     model,
		threshold: float32(threshold),
		window:    make([]float32, sileroContextSize+SileroFrameSize),
	}
}

func (s *Silero) IsVoiceSegment(frame []float32) (bool, error) {
	if err := checkFrame(frame, SileroFrameSize); err != nil {
		return false, err
	}

	copy(s.window[sileroContextSize:], frame)
	defer s.roll()

	if peak(frame) < digitalSilenceFloor {
		return false, nil
	}
	if constantFrame(frame) {
		return true, nil
	}

	prob, err := s.model.Predict(s.window)
	if err != nil {
		return false, err
	}
	return prob >= s.threshold, nil
}

// roll keeps the tail of the current frame as context for the next one
func (s *Silero) roll() {
	copy(s.window[:sileroContextSize], s.window[len(s.window)-sileroContextSize:])
}

func (s *Silero) FrameSize() int  { return SileroFrameSize }
func (s *Silero) SampleRate() int { return SampleRate }

// Reset clears the context samples and the model's recurrent state
func (s *Silero) Reset() {
	for i := range s.window {
		s.window[i] = 0
	}
	s.model.ResetState()
}

func (s *Silero) Close() error {
	return s.model.Close()
}

func peak(frame []float32) float32 {
	var m float32
	for _, v := range frame {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

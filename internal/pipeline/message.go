package pipeline

import (
	"time"

	"github.com/petems/whisper-pipe/internal/audio"
)

// AudioInput is one completed, file-backed audio segment. The file is
// flushed and closed before the message is sent.
type AudioInput struct {
	ID        string           `json:"id"`
	Path      string           `json:"path"`
	Device    audio.DeviceSpec `json:"device"`
	Timestamp time.Time        `json:"timestamp"`
	Duration  time.Duration    `json:"duration"`
	// SpeechRatio is the fraction of VAD frames classified as speech, or -1
	// when no VAD was consulted
	SpeechRatio float64 `json:"speech_ratio"`
}

// TranscriptionResult is the outcome of one AudioInput. Exactly one of
// Transcription and Error is set.
type TranscriptionResult struct {
	Input         AudioInput `json:"input"`
	Transcription *string    `json:"transcription,omitempty"`
	Error         *string    `json:"error,omitempty"`

	err error
}

func succeeded(in AudioInput, text string) TranscriptionResult {
	return TranscriptionResult{Input: in, Transcription: &text}
}

func failed(in AudioInput, err error) TranscriptionResult {
	msg := err.Error()
	return TranscriptionResult{Input: in, Error: &msg, err: err}
}

// OK reports whether the segment was transcribed
func (r TranscriptionResult) OK() bool {
	return r.Error == nil
}

// Text returns the transcription, or "" for failed results
func (r TranscriptionResult) Text() string {
	if r.Transcription == nil {
		return ""
	}
	return *r.Transcription
}

// Err returns the failure cause, or nil for successful results
func (r TranscriptionResult) Err() error {
	return r.err
}

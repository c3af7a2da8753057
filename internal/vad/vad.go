// Package vad classifies fixed-size audio frames as speech or silence.
//
// Two backends implement Engine:
//
//   - energy: stateless RMS / zero-crossing detector, 30 ms frames (480 samples) at 16 kHz.
//   - silero: Silero v5 ONNX model, 32 ms frames (512 samples) at 16 kHz. The model
//     carries a recurrent state and a 64-sample context across calls.
//
// A Silero frame is exactly one model hop, so every call returns a real decision;
// there is no "insufficient data" outcome. Engines are not safe for concurrent use.
package vad

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedEngineKind = errors.New("unsupported VAD engine kind")
	ErrEngineInit            = errors.New("VAD engine initialization failed")
	ErrInvalidFrameSize      = errors.New("invalid VAD frame size")
)

// SampleRate is the input rate for every backend
const SampleRate = 16000

// Engine classifies one fixed-size frame of mono float32 samples at SampleRate
type Engine interface {
	IsVoiceSegment(frame []float32) (bool, error)
	FrameSize() int
	SampleRate() int
	Reset()
	Close() error
}

// Kind selects a VAD backend
type Kind string

const (
	KindEnergy Kind = "energy"
	KindSilero Kind = "silero"
)

// ParseKind accepts the backend names case-insensitively
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindEnergy:
		return KindEnergy, nil
	case KindSilero:
		return KindSilero, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEngineKind, s)
	}
}

// Config holds backend parameters. Zero values select defaults.
type Config struct {
	// EnergyThreshold is the minimum RMS for the energy backend
	EnergyThreshold float64 `json:"energy_threshold"`
	// SpeechThreshold is the minimum speech probability for the silero backend
	SpeechThreshold float64 `json:"speech_threshold"`
	// ModelPath points at silero_vad.onnx
	ModelPath string `json:"model_path"`
	// RuntimeLibrary points at the onnxruntime shared library
	RuntimeLibrary string `json:"runtime_library"`
}

// New creates the engine for kind
func New(kind Kind, cfg Config) (Engine, error) {
	switch kind {
	case KindEnergy:
		return NewEnergy(cfg.EnergyThreshold), nil
	case KindSilero:
		model, err := newONNXModel(cfg.ModelPath, cfg.RuntimeLibrary)
		if err != nil {
			return nil, err
		}
		return newSilero(model, cfg.SpeechThreshold), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngineKind, kind)
	}
}

// digitalSilenceFloor is one 16-bit LSB; quieter frames are silence
const digitalSilenceFloor = 1.0 / 32768

// constantFrame reports whether every sample holds the same value at or
// above the silence floor. Both backends classify such a frame as speech.
func constantFrame(frame []float32) bool {
	if len(frame) == 0 {
		return false
	}
	v := frame[0]
	for _, s := range frame[1:] {
		if s != v {
			return false
		}
	}
	if v < 0 {
		v = -v
	}
	return float64(v) >= digitalSilenceFloor
}

func checkFrame(frame []float32, size int) error {
	if len(frame) != size {
		return fmt.Errorf("%w: got %d samples, want %d", ErrInvalidFrameSize, len(frame), size)
	}
	return nil
}

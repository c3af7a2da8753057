// Package asr owns loaded speech recognition models.
package asr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

var (
	ErrUnknownEngine = errors.New("unknown ASR engine")
	ErrModelLoad     = errors.New("failed to load ASR model")
	ErrInference     = errors.New("ASR inference failed")
)

// Model is a loaded recognition model. Implementations are safe for
// concurrent Transcribe calls.
type Model interface {
	Engine() Engine
	// Transcribe converts mono 16 kHz float32 samples to text
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Close() error
}

// FileTranscriber is implemented by models that consume encoded audio files directly
type FileTranscriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// LoadConfig configures model loading
type LoadConfig struct {
	ModelsDir string
	Language  string // "auto", "en", etc.
	Threads   int
	APIKey    string // OpenAI engine only
	BaseURL   string // OpenAI engine only, optional
}

// Load creates the model handle for engine. Loading local weights is slow and
// happens once here, not per call.
func Load(engine Engine, cfg LoadConfig) (Model, error) {
	if _, err := ParseEngine(string(engine)); err != nil {
		return nil, err
	}
	if engine.Remote() {
		return NewOpenAI(cfg)
	}
	return NewWhisper(engine, filepath.Join(cfg.ModelsDir, engine.ModelFile()), cfg)
}

func inferenceError(err error) error {
	return fmt.Errorf("%w: %v", ErrInference, err)
}

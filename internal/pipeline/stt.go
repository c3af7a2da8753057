package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/petems/whisper-pipe/internal/asr"
	"github.com/petems/whisper-pipe/internal/audio"
)

var (
	// ErrIO is returned when the audio file is missing or unreadable.
	ErrIO = errors.New("audio file unreadable")
	// ErrDecode is returned for unsupported or corrupt containers.
	ErrDecode = errors.New("audio decode failed")
	// ErrModel is returned when inference fails.
	ErrModel = errors.New("speech model failed")
)

// SpeechToText transcribes the audio file at path with model. engine must be
// the variant the model was loaded for; remote engines receive the encoded
// file, local engines receive decoded 16 kHz mono samples.
func SpeechToText(ctx context.Context, path string, model asr.Model, engine asr.Engine) (string, error) {
	if model == nil {
		return "", fmt.Errorf("%w: no model loaded", ErrModel)
	}
	if model.Engine() != engine {
		return "", fmt.Errorf("%w: model loaded for %s, requested %s", ErrModel, model.Engine(), engine)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrIO, path)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrDecode, path)
	}

	if _, err := audio.DetectFormat(path); err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			return "", fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}

	if ft, ok := model.(asr.FileTranscriber); ok && engine.Remote() {
		text, err := ft.TranscribeFile(ctx, path)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrModel, err)
		}
		return strings.TrimSpace(text), nil
	}

	samples, err := audio.LoadForASR(path)
	if err != nil {
		if errors.Is(err, audio.ErrCorruptAudio) || errors.Is(err, audio.ErrUnsupportedFormat) {
			return "", fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	if len(samples) == 0 {
		return "", fmt.Errorf("%w: no audio samples in %s", ErrDecode, path)
	}

	text, err := model.Transcribe(ctx, samples)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModel, err)
	}
	return strings.TrimSpace(text), nil
}

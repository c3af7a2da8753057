package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Whisper is a local whisper.cpp model. Every Process call runs on the
// shared model state, so inference is serialized by mu; concurrent workers
// queue on the lock.
type Whisper struct {
	engine    Engine
	modelPath string
	language  string
	threads   int

	mu    sync.Mutex
	model whisper.Model
}

// NewWhisper loads the ggml weights at modelPath
func NewWhisper(engine Engine, modelPath string, cfg LoadConfig) (*Whisper, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, engine, err)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, engine, err)
	}

	language := cfg.Language
	if engine.EnglishOnly() || !model.IsMultilingual() {
		language = "en"
	}

	return &Whisper{
		engine:    engine,
		modelPath: modelPath,
		language:  language,
		threads:   cfg.Threads,
		model:     model,
	}, nil
}

func (w *Whisper) Engine() Engine {
	return w.engine
}

func (w *Whisper) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", inferenceError(errors.New("empty audio samples"))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if w.model == nil {
		return "", inferenceError(errors.New("model closed"))
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", inferenceError(fmt.Errorf("failed to create context: %w", err))
	}

	if w.threads > 0 {
		wctx.SetThreads(uint(w.threads))
	}
	if w.language != "" {
		if err := wctx.SetLanguage(w.language); err != nil {
			return "", inferenceError(fmt.Errorf("set language %q: %w", w.language, err))
		}
	}
	wctx.SetTranslate(false)

	if err := wctx.Process(samples, nil, nil); err != nil {
		return "", inferenceError(err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", inferenceError(err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}

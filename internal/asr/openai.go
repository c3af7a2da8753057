package asr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel transcribes through the OpenAI audio API. The client is safe
// for concurrent use, so calls are not serialized.
type OpenAIModel struct {
	client   *openai.Client
	language string
}

func NewOpenAI(cfg LoadConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s: API key not configured", ErrModelLoad, OpenAI)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	language := cfg.Language
	if language == "auto" {
		language = ""
	}

	return &OpenAIModel{
		client:   openai.NewClientWithConfig(clientCfg),
		language: language,
	}, nil
}

func (m *OpenAIModel) Engine() Engine {
	return OpenAI
}

func (m *OpenAIModel) TranscribeFile(ctx context.Context, path string) (string, error) {
	resp, err := m.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: path,
		Language: m.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", inferenceError(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Transcribe wraps raw samples in a temporary 16 kHz WAV and uploads it
func (m *OpenAIModel) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", inferenceError(errors.New("empty audio samples"))
	}

	dir, err := os.MkdirTemp("", "whisper-pipe-")
	if err != nil {
		return "", inferenceError(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "segment.wav")
	if err := writePCM16(path, samples, 16000); err != nil {
		return "", inferenceError(err)
	}
	return m.TranscribeFile(ctx, path)
}

func (m *OpenAIModel) Close() error {
	return nil
}

func writePCM16(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1:
			data[i] = 32767
		case s <= -1:
			data[i] = -32768
		default:
			data[i] = int(s * 32767)
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}); err != nil {
		return err
	}
	return enc.Close()
}

package asr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseEngine(t *testing.T) {
	for _, e := range Engines() {
		got, err := ParseEngine(string(e))
		if err != nil || got != e {
			t.Errorf("ParseEngine(%q) = %q, %v", e, got, err)
		}
	}

	if got, err := ParseEngine(" Tiny.EN "); err != nil || got != TinyEn {
		t.Errorf("expected case-insensitive match, got %q, %v", got, err)
	}

	for _, name := range []string{"", "huge", "whisper-tiny", "deepgram"} {
		if _, err := ParseEngine(name); !errors.Is(err, ErrUnknownEngine) {
			t.Errorf("ParseEngine(%q): expected ErrUnknownEngine, got %v", name, err)
		}
	}
}

func TestEngineProperties(t *testing.T) {
	tests := []struct {
		engine      Engine
		remote      bool
		englishOnly bool
		modelFile   string
	}{
		{Tiny, false, false, "tiny.bin"},
		{BaseEn, false, true, "base.en.bin"},
		{LargeV3Turbo, false, false, "large-v3-turbo.bin"},
		{OpenAI, true, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.engine.String(), func(t *testing.T) {
			if tt.engine.Remote() != tt.remote {
				t.Errorf("expected remote %v", tt.remote)
			}
			if tt.engine.EnglishOnly() != tt.englishOnly {
				t.Errorf("expected englishOnly %v", tt.englishOnly)
			}
			if tt.engine.ModelFile() != tt.modelFile {
				t.Errorf("expected model file %q, got %q", tt.modelFile, tt.engine.ModelFile())
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		engine  Engine
		cfg     LoadConfig
		wantErr error
	}{
		{"unknown engine", Engine("huge"), LoadConfig{}, ErrUnknownEngine},
		{"missing weights", Tiny, LoadConfig{ModelsDir: t.TempDir()}, ErrModelLoad},
		{"openai without key", OpenAI, LoadConfig{}, ErrModelLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.engine, tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func newTranscriptionServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" {
			http.Error(w, "bad model", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "server exploded", "type": "server_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAITranscribe(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusOK, "  hello world  ")

	m, err := Load(OpenAI, LoadConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Language: "auto"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Close()

	if m.Engine() != OpenAI {
		t.Errorf("expected engine openai, got %s", m.Engine())
	}

	text, err := m.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected trimmed text, got %q", text)
	}
}

func TestOpenAITranscribeFile(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusOK, "from file")

	m, err := NewOpenAI(LoadConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := writePCM16(path, make([]float32, 160), 16000); err != nil {
		t.Fatalf("write: %v", err)
	}

	text, err := m.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "from file" {
		t.Errorf("expected 'from file', got %q", text)
	}
}

func TestOpenAIServerError(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusInternalServerError, "")

	m, err := NewOpenAI(LoadConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.Transcribe(context.Background(), make([]float32, 160)); !errors.Is(err, ErrInference) {
		t.Errorf("expected ErrInference, got %v", err)
	}
	if _, err := m.Transcribe(context.Background(), nil); !errors.Is(err, ErrInference) {
		t.Errorf("expected ErrInference for empty samples, got %v", err)
	}
}

// TestWhisperTranscribe runs local inference when WHISPER_MODELS_DIR holds tiny.bin
func TestWhisperTranscribe(t *testing.T) {
	dir := os.Getenv("WHISPER_MODELS_DIR")
	if dir == "" {
		t.Skip("WHISPER_MODELS_DIR not set")
	}

	m, err := Load(Tiny, LoadConfig{ModelsDir: dir, Language: "auto"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer m.Close()

	if _, err := m.Transcribe(context.Background(), make([]float32, 16000)); err != nil {
		t.Fatalf("transcribe silence: %v", err)
	}
	if _, err := m.Transcribe(context.Background(), nil); !errors.Is(err, ErrInference) {
		t.Errorf("expected ErrInference for empty samples, got %v", err)
	}
}

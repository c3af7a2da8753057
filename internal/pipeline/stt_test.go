package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/petems/whisper-pipe/internal/asr"
)

func TestSpeechToText(t *testing.T) {
	path := writeTone(t, t.TempDir(), "tone.wav", 48000, 1)
	model := &fakeModel{text: "  hello world \n"}

	text, err := SpeechToText(context.Background(), path, model, asr.Tiny)
	if err != nil {
		t.Fatalf("SpeechToText: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected trimmed text, got %q", text)
	}
	if len(model.lengths) != 1 || model.lengths[0] != 16000 {
		t.Errorf("expected one call with 16000 resampled samples, got %v", model.lengths)
	}
}

func TestSpeechToTextErrors(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.mp3")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	notes := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notes, []byte("this is not audio\n"), 0644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.wav")
	if err := os.WriteFile(broken, []byte("RIFF\x24\x00\x00\x00WAVEjunkjunkjunkjunk"), 0644); err != nil {
		t.Fatal(err)
	}
	tone := writeTone(t, dir, "tone.wav", 16000, 0.5)

	tests := []struct {
		name   string
		path   string
		model  *fakeModel
		engine asr.Engine
		want   error
	}{
		{"missing file", filepath.Join(dir, "missing.mp3"), &fakeModel{}, asr.Tiny, ErrIO},
		{"directory", dir, &fakeModel{}, asr.Tiny, ErrIO},
		{"empty file", empty, &fakeModel{}, asr.Tiny, ErrDecode},
		{"not audio", notes, &fakeModel{}, asr.Tiny, ErrDecode},
		{"corrupt wav", broken, &fakeModel{}, asr.Tiny, ErrDecode},
		{"engine mismatch", tone, &fakeModel{engine: asr.Base}, asr.Tiny, ErrModel},
		{"inference failure", tone, &fakeModel{err: errBoom}, asr.Tiny, ErrModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SpeechToText(context.Background(), tt.path, tt.model, tt.engine)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSpeechToTextModelErrorKeepsCause(t *testing.T) {
	tone := writeTone(t, t.TempDir(), "tone.wav", 16000, 0.5)

	_, err := SpeechToText(context.Background(), tone, &fakeModel{err: errBoom}, asr.Tiny)
	if !errors.Is(err, errBoom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestSpeechToTextNilModel(t *testing.T) {
	_, err := SpeechToText(context.Background(), "unused.mp3", nil, asr.Tiny)
	if !errors.Is(err, ErrModel) {
		t.Errorf("expected ErrModel, got %v", err)
	}
}

func TestSpeechToTextRemoteUsesFile(t *testing.T) {
	tone := writeTone(t, t.TempDir(), "tone.wav", 16000, 0.5)
	model := &fakeRemote{fakeModel: fakeModel{engine: asr.OpenAI, text: "remote text "}}

	text, err := SpeechToText(context.Background(), tone, model, asr.OpenAI)
	if err != nil {
		t.Fatalf("SpeechToText: %v", err)
	}
	if text != "remote text" {
		t.Errorf("unexpected text %q", text)
	}
	if len(model.paths) != 1 || model.paths[0] != tone {
		t.Errorf("expected file upload of %s, got %v", tone, model.paths)
	}
	if model.callCount() != 0 {
		t.Errorf("expected no PCM inference for remote engine, got %d calls", model.callCount())
	}
}

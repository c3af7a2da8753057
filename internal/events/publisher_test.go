package events

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/petems/whisper-pipe/internal/metrics"
	"github.com/petems/whisper-pipe/internal/pipeline"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, zerolog.Nop())
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writer != nil {
				t.Error("expected nil writer when disabled")
			}
		})
	}
}

func TestNew_Enabled(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "transcripts"}, zerolog.Nop())
	defer p.Close()

	if !p.enabled || p.writer == nil {
		t.Fatal("expected enabled publisher with a writer")
	}
	if p.writer.Topic != "transcripts" {
		t.Errorf("expected topic 'transcripts', got %s", p.writer.Topic)
	}
}

func TestPublisher_Publish_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, Topic: "transcripts"}, zerolog.Nop())
	counter := metrics.Default.PublishTotal.WithLabelValues("ok")
	before := testutil.ToFloat64(counter)

	text := "hello world"
	res := pipeline.TranscriptionResult{
		Input:         pipeline.AudioInput{ID: "seg-1", Path: "/tmp/seg-1.mp3"},
		Transcription: &text,
	}
	if err := p.Publish(context.Background(), res); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected one ok publish recorded, got %v", got)
	}
}

func TestPublisher_Publish_ErrorResult(t *testing.T) {
	p := New(nil, zerolog.Nop())

	msg := "segment dropped"
	res := pipeline.TranscriptionResult{
		Input: pipeline.AudioInput{ID: "seg-2"},
		Error: &msg,
	}
	if err := p.Publish(context.Background(), res); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Close_NoWriter(t *testing.T) {
	p := New(&Config{Enabled: false}, zerolog.Nop())

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

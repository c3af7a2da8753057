package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/petems/whisper-pipe/internal/asr"
)

type fakeModel struct {
	engine asr.Engine
	text   string
	err    error

	mu      sync.Mutex
	calls   int
	lengths []int
	panicOn int // 1-based call number that panics, 0 for never
	closed  bool

	started chan struct{} // signalled at the start of each call, if set
	gate    chan struct{} // each call waits for a value, if set
}

func (m *fakeModel) Engine() asr.Engine {
	if m.engine == "" {
		return asr.Tiny
	}
	return m.engine
}

func (m *fakeModel) Transcribe(ctx context.Context, samples []float32) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lengths = append(m.lengths, len(samples))
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	if m.panicOn == call {
		panic("model crashed")
	}
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *fakeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeRemote struct {
	fakeModel
	paths []string
}

func (m *fakeRemote) TranscribeFile(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	return m.text, m.err
}

var errBoom = errors.New("boom")

// writeTone writes a mono 16-bit WAV of the given length
func writeTone(t *testing.T, dir, name string, sampleRate int, seconds float64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	n := int(float64(sampleRate) * seconds)
	data := make([]int, n)
	for i := range data {
		if i%20 < 10 {
			data[i] = 8000
		} else {
			data[i] = -8000
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func input(id, path string) AudioInput {
	return AudioInput{ID: id, Path: path, Timestamp: time.Now(), SpeechRatio: -1}
}

func collect(t *testing.T, results <-chan TranscriptionResult, n int) []TranscriptionResult {
	t.Helper()

	out := make([]TranscriptionResult, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case r, ok := <-results:
			if !ok {
				t.Fatalf("results closed after %d of %d", len(out), n)
			}
			out = append(out, r)
		case <-timeout:
			t.Fatalf("timed out after %d of %d results", len(out), n)
		}
	}
	return out
}

// Package encode turns captured PCM frames into a persisted audio container.
package encode

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/braheezy/shine-mp3/pkg/mp3"

	"github.com/petems/whisper-pipe/internal/audio"
)

// ErrEncoding wraps failures encoding or writing the output container.
var ErrEncoding = errors.New("audio encoding failed")

// samplesPerFrame is the MPEG-1 Layer III frame size. shine encodes one
// frame per mono Write call and reads a full frame regardless of input
// length, so every call gets exactly this many samples.
const samplesPerFrame = 1152

// FallbackSampleRate is the encoded rate used when the input rate has no
// MPEG-1 Layer III equivalent.
const FallbackSampleRate = 48000

// SupportedSampleRate reports whether rate can be encoded without resampling
func SupportedSampleRate(rate int) bool {
	switch rate {
	case 32000, 44100, 48000:
		return true
	}
	return false
}

// Writer accepts mono float32 frames and writes an encoded stream
type Writer interface {
	WriteFrame(samples []float32) error
	Close() error
}

// MP3Writer streams mono PCM into an MPEG-1 Layer III CBR stream using shine.
// Input at other rates is resampled to FallbackSampleRate.
// It does not close the underlying writer.
type MP3Writer struct {
	mu        sync.Mutex
	out       io.Writer
	enc       *mp3.Encoder
	resampler *audio.Resampler
	rate      int
	pending   []int16
	written   int64
	closed    bool
}

// NewMP3Writer creates a mono encoder for input captured at sampleRate
func NewMP3Writer(out io.Writer, sampleRate int) (*MP3Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrEncoding, sampleRate)
	}
	w := &MP3Writer{
		out:     out,
		rate:    sampleRate,
		pending: make([]int16, 0, samplesPerFrame*4),
	}
	if !SupportedSampleRate(sampleRate) {
		w.rate = FallbackSampleRate
		w.resampler = audio.NewResampler(sampleRate, FallbackSampleRate)
	}
	w.enc = mp3.NewEncoder(w.rate, 1)
	return w, nil
}

// SampleRate returns the rate of the encoded stream
func (w *MP3Writer) SampleRate() int {
	return w.rate
}

func (w *MP3Writer) WriteFrame(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("%w: writer closed", ErrEncoding)
	}

	if w.resampler != nil {
		samples = w.resampler.Process(samples)
	}
	for _, s := range samples {
		w.pending = append(w.pending, toInt16(s))
	}

	off := 0
	for ; len(w.pending)-off >= samplesPerFrame; off += samplesPerFrame {
		if err := w.encode(w.pending[off:off+samplesPerFrame], samplesPerFrame); err != nil {
			w.pending = append(w.pending[:0], w.pending[off:]...)
			return err
		}
	}
	w.pending = append(w.pending[:0], w.pending[off:]...)
	return nil
}

// Samples returns the number of encoded-rate input samples flushed so far,
// excluding the silence padding the last frame.
func (w *MP3Writer) Samples() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close encodes any buffered tail, padded to a whole frame with silence
func (w *MP3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.pending) == 0 {
		return nil
	}
	tail := make([]int16, samplesPerFrame)
	n := copy(tail, w.pending)
	w.pending = nil
	return w.encode(tail, n)
}

func (w *MP3Writer) encode(frame []int16, real int) error {
	if err := w.enc.Write(w.out, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	w.written += int64(real)
	return nil
}

func toInt16(s float32) int16 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	default:
		return int16(s * 32767)
	}
}

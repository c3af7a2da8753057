// Package recorder captures a device into an MP3 file for a bounded duration
// and hands the finished file to the transcription queue.
//
// Stop conditions are checked between frames, so a session always captures at
// least one frame and overshoots its duration by at most one frame plus the
// final flush. The default frame length, and therefore the polling interval,
// is 100 ms.
package recorder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/whisper-pipe/internal/audio"
	"github.com/petems/whisper-pipe/internal/encode"
	"github.com/petems/whisper-pipe/internal/metrics"
	"github.com/petems/whisper-pipe/internal/pipeline"
	"github.com/petems/whisper-pipe/internal/vad"
)

// ErrInvalidDuration is returned for non-positive recording durations
var ErrInvalidDuration = errors.New("recording duration must be positive")

const (
	DefaultFrameDuration = 100 * time.Millisecond
	// fallbackSampleRate sizes frames when the device rate is not known up front
	fallbackSampleRate = 48000
)

// Sender accepts finished segments. *pipeline.Queue implements it.
type Sender interface {
	Send(ctx context.Context, in pipeline.AudioInput) error
}

// EncoderFactory creates the container encoder for the output file
type EncoderFactory func(w io.Writer, sampleRate int) (encode.Writer, error)

func mp3Encoder(w io.Writer, sampleRate int) (encode.Writer, error) {
	return encode.NewMP3Writer(w, sampleRate)
}

// Option configures a Session
type Option func(*Session)

// WithVAD enables speech accounting with engine. The session resets the
// engine on start but does not close it.
func WithVAD(engine vad.Engine) Option {
	return func(s *Session) { s.vad = engine }
}

// WithSilenceTimeout stops the session once speech has been heard and the
// following silence lasts d. Requires WithVAD.
func WithSilenceTimeout(d time.Duration) Option {
	return func(s *Session) { s.silenceTimeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithFrameDuration sets the capture buffer length
func WithFrameDuration(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.frameDuration = d
		}
	}
}

// WithSampleRate requests a capture rate; zero uses the device default
func WithSampleRate(rate float64) Option {
	return func(s *Session) { s.sampleRate = rate }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithEncoderFactory(f EncoderFactory) Option {
	return func(s *Session) { s.newEncoder = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one recording of one device into one file
type Session struct {
	src        audio.Source
	device     audio.DeviceSpec
	duration   time.Duration
	outputPath string
	out        Sender

	vad            vad.Engine
	silenceTimeout time.Duration
	frameDuration  time.Duration
	sampleRate     float64
	now            func() time.Time
	newEncoder     EncoderFactory
	log            zerolog.Logger
	metrics        *metrics.Metrics

	mu    sync.Mutex
	state State

	// speech accounting, owned by the capture loop
	resampler    *audio.Resampler
	vadBuf       []float32
	vadFrames    int
	speechFrames int
	lastSpeech   time.Time
}

// NewSession validates the arguments without touching the device
func NewSession(src audio.Source, device audio.DeviceSpec, duration time.Duration, outputPath string, out Sender, opts ...Option) (*Session, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no audio source", audio.ErrCapture)
	}
	if _, err := audio.NewDeviceSpec(device.Name, device.Direction); err != nil {
		return nil, err
	}
	if outputPath == "" {
		return nil, fmt.Errorf("%w: empty output path", encode.ErrEncoding)
	}
	if out == nil {
		return nil, errors.New("recorder: nil sender")
	}

	s := &Session{
		src:           src,
		device:        device,
		duration:      duration,
		outputPath:    outputPath,
		out:           out,
		frameDuration: DefaultFrameDuration,
		now:           time.Now,
		newEncoder:    mp3Encoder,
		log:           zerolog.Nop(),
		metrics:       metrics.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "recorder").Str("device", device.String()).Logger()
	return s, nil
}

// RecordAndTranscribe records device into outputPath until duration elapses
// or ctx is cancelled, then sends exactly one AudioInput for the closed file
// to out. Cancellation is a normal stop and returns nil. On failure the
// partial file is removed and nothing is sent.
func RecordAndTranscribe(ctx context.Context, src audio.Source, device audio.DeviceSpec, duration time.Duration, outputPath string, out Sender, opts ...Option) error {
	s, err := NewSession(src, device, duration, outputPath, out, opts...)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run executes the session once
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != NotStarted {
		s.mu.Unlock()
		return fmt.Errorf("recorder: session already %s", s.state)
	}
	s.state = Recording
	s.mu.Unlock()

	start := s.now()
	in, err := s.record(ctx, start)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.setState(Failed)
		s.metrics.RecordRecording(Failed.String(), elapsed.Seconds())
		s.log.Error().Err(err).Dur("elapsed", elapsed).Msg("Recording failed")
		return err
	}

	// the segment is complete even if ctx was the stop reason
	if err := s.out.Send(context.WithoutCancel(ctx), in); err != nil {
		s.setState(Failed)
		s.metrics.RecordRecording(Failed.String(), elapsed.Seconds())
		return fmt.Errorf("failed to enqueue %s: %w", in.Path, err)
	}

	s.metrics.RecordRecording(s.State().String(), elapsed.Seconds())
	s.log.Info().
		Str("segment", in.ID).
		Str("path", in.Path).
		Str("state", s.State().String()).
		Dur("elapsed", in.Duration).
		Float64("speech_ratio", in.SpeechRatio).
		Msg("Recording finished")
	return nil
}

func (s *Session) record(ctx context.Context, start time.Time) (pipeline.AudioInput, error) {
	stream, err := s.src.Open(s.device, audio.StreamConfig{
		SampleRate:      s.sampleRate,
		FramesPerBuffer: s.framesPerBuffer(),
	})
	if err != nil {
		if errors.Is(err, audio.ErrCapture) || errors.Is(err, audio.ErrDeviceNotFound) {
			return pipeline.AudioInput{}, err
		}
		return pipeline.AudioInput{}, fmt.Errorf("%w: %v", audio.ErrCapture, err)
	}
	defer stream.Close()

	f, err := os.Create(s.outputPath)
	if err != nil {
		return pipeline.AudioInput{}, fmt.Errorf("%w: %v", encode.ErrEncoding, err)
	}
	bw := bufio.NewWriter(f)
	enc, err := s.newEncoder(bw, stream.SampleRate())
	if err != nil {
		f.Close()
		os.Remove(s.outputPath)
		return pipeline.AudioInput{}, fmt.Errorf("%w: %v", encode.ErrEncoding, err)
	}

	abort := func(err error) (pipeline.AudioInput, error) {
		enc.Close()
		f.Close()
		if rmErr := os.Remove(s.outputPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log.Warn().Err(rmErr).Str("path", s.outputPath).Msg("Failed to remove partial recording")
		}
		return pipeline.AudioInput{}, err
	}

	s.startVAD(stream.SampleRate())
	s.log.Info().
		Str("path", s.outputPath).
		Dur("duration", s.duration).
		Int("sample_rate", stream.SampleRate()).
		Msg("Recording started")

	final := Completed
	for {
		frame, err := stream.Read()
		if err != nil {
			if !errors.Is(err, audio.ErrCapture) {
				err = fmt.Errorf("%w: %v", audio.ErrCapture, err)
			}
			return abort(err)
		}
		s.metrics.FramesCaptured.Inc()

		if err := enc.WriteFrame(frame); err != nil {
			return abort(wrapEncoding(err))
		}
		s.accountSpeech(frame)

		now := s.now()
		if now.Sub(start) >= s.duration {
			break
		}
		if ctx.Err() != nil {
			final = Interrupted
			break
		}
		if s.silenceElapsed(now) {
			s.log.Debug().Dur("silence", now.Sub(s.lastSpeech)).Msg("Trailing silence, stopping early")
			break
		}
	}

	if err := enc.Close(); err != nil {
		return abort(wrapEncoding(err))
	}
	if err := bw.Flush(); err != nil {
		return abort(wrapEncoding(err))
	}
	if err := f.Sync(); err != nil {
		return abort(wrapEncoding(err))
	}
	if err := f.Close(); err != nil {
		return abort(wrapEncoding(err))
	}

	info, err := os.Stat(s.outputPath)
	if err != nil {
		return abort(wrapEncoding(err))
	}
	if info.Size() == 0 {
		return abort(fmt.Errorf("%w: %s is empty", encode.ErrEncoding, s.outputPath))
	}

	s.setState(final)
	return pipeline.AudioInput{
		ID:          uuid.NewString(),
		Path:        s.outputPath,
		Device:      s.device,
		Timestamp:   start,
		Duration:    s.now().Sub(start),
		SpeechRatio: s.speechRatio(),
	}, nil
}

func (s *Session) framesPerBuffer() int {
	rate := s.sampleRate
	if rate <= 0 {
		rate = fallbackSampleRate
	}
	n := int(math.Round(rate * s.frameDuration.Seconds()))
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Session) startVAD(captureRate int) {
	if s.vad == nil {
		return
	}
	s.vad.Reset()
	s.resampler = audio.NewResampler(captureRate, s.vad.SampleRate())
	s.vadBuf = make([]float32, 0, s.vad.FrameSize()*4)
}

// accountSpeech classifies every complete VAD frame contained in the
// capture frames seen so far. A VAD error disables the engine for the rest
// of the session.
func (s *Session) accountSpeech(frame []float32) {
	if s.vad == nil {
		return
	}
	s.vadBuf = append(s.vadBuf, s.resampler.Process(frame)...)

	size := s.vad.FrameSize()
	consumed := 0
	for len(s.vadBuf)-consumed >= size {
		speech, err := s.vad.IsVoiceSegment(s.vadBuf[consumed : consumed+size])
		consumed += size
		if err != nil {
			s.log.Warn().Err(err).Msg("VAD failed, disabling speech detection for this recording")
			s.vad = nil
			return
		}
		s.vadFrames++
		s.metrics.RecordVAD(speech)
		if speech {
			s.speechFrames++
			s.lastSpeech = s.now()
		}
	}
	s.vadBuf = append(s.vadBuf[:0], s.vadBuf[consumed:]...)
}

func (s *Session) silenceElapsed(now time.Time) bool {
	if s.silenceTimeout <= 0 || s.speechFrames == 0 {
		return false
	}
	return now.Sub(s.lastSpeech) >= s.silenceTimeout
}

func (s *Session) speechRatio() float64 {
	if s.vadFrames == 0 {
		return -1
	}
	return float64(s.speechFrames) / float64(s.vadFrames)
}

func wrapEncoding(err error) error {
	if errors.Is(err, encode.ErrEncoding) {
		return err
	}
	return fmt.Errorf("%w: %v", encode.ErrEncoding, err)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/whisper-pipe/internal/audio"
	"github.com/petems/whisper-pipe/internal/config"
	"github.com/petems/whisper-pipe/internal/pipeline"
	"github.com/petems/whisper-pipe/internal/recorder"
	"github.com/petems/whisper-pipe/internal/vad"
)

// captureRetryDelay is the pause after a failed segment before the next one
var captureRetryDelay = time.Second

const publishTimeout = 10 * time.Second

// Publisher receives every transcription result
type Publisher interface {
	Publish(ctx context.Context, res pipeline.TranscriptionResult) error
}

// Shutdowner stops the transcription pipeline
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// StatusUpdater is an interface for updating status (e.g., a status line)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

type Config struct {
	Catalog       audio.Catalog
	Source        audio.Source
	VAD           vad.Engine // Optional - can be nil
	Queue         recorder.Sender
	Results       <-chan pipeline.TranscriptionResult
	Pipeline      Shutdowner
	Publisher     Publisher // Optional - can be nil
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil

	// RecorderOptions are appended to the options derived from Config
	RecorderOptions []recorder.Option
}

// App records consecutive segments from one device and forwards their
// transcriptions to the publisher
type App struct {
	source   audio.Source
	catalog  audio.Catalog
	vad      vad.Engine
	queue    recorder.Sender
	results  <-chan pipeline.TranscriptionResult
	pipeline Shutdowner
	pub      Publisher
	cfg      *config.Config
	log      zerolog.Logger
	status   StatusUpdater
	recOpts  []recorder.Option

	mu       sync.Mutex
	device   audio.DeviceSpec
	running  bool
	segments int

	consumeOnce  sync.Once
	consumerDone chan struct{}
}

func New(cfg Config) *App {
	return &App{
		source:       cfg.Source,
		catalog:      cfg.Catalog,
		vad:          cfg.VAD,
		queue:        cfg.Queue,
		results:      cfg.Results,
		pipeline:     cfg.Pipeline,
		pub:          cfg.Publisher,
		cfg:          cfg.Config,
		log:          cfg.Logger.With().Str("component", "app").Logger(),
		status:       cfg.StatusUpdater,
		recOpts:      cfg.RecorderOptions,
		consumerDone: make(chan struct{}),
	}
}

// Run records segments until ctx is cancelled. The segment in progress is
// finished and enqueued before Run returns.
func (a *App) Run(ctx context.Context) error {
	device, err := a.resolveDevice()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.cfg.Recording.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("app already running")
	}
	a.running = true
	a.device = device
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		a.setIdle()
	}()

	a.consumeOnce.Do(func() { go a.consume() })

	a.log.Info().
		Str("device", device.String()).
		Dur("segment_duration", a.cfg.Recording.SegmentDuration.Std()).
		Str("output_dir", a.cfg.Recording.OutputDir).
		Msg("Starting capture")

	for ctx.Err() == nil {
		if err := a.recordSegment(ctx); err != nil {
			if errors.Is(err, pipeline.ErrQueueClosed) {
				a.log.Info().Msg("Transcription queue closed, stopping capture")
				return nil
			}
			a.log.Error().Err(err).Dur("retry_in", captureRetryDelay).Msg("Segment failed")
			if a.status != nil {
				a.status.SetError()
			}
			select {
			case <-ctx.Done():
			case <-time.After(captureRetryDelay):
			}
		}
	}

	a.log.Info().Int("segments", a.Segments()).Msg("Capture stopped")
	return nil
}

func (a *App) recordSegment(ctx context.Context) error {
	a.mu.Lock()
	device := a.device
	a.mu.Unlock()

	if a.status != nil {
		a.status.SetRecording()
	}

	path := a.segmentPath(time.Now())
	err := recorder.RecordAndTranscribe(ctx, a.source, device, a.cfg.Recording.SegmentDuration.Std(), path, a.queue, a.recorderOptions()...)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.segments++
	a.mu.Unlock()
	if a.status != nil {
		a.status.SetProcessing()
	}
	return nil
}

func (a *App) recorderOptions() []recorder.Option {
	opts := []recorder.Option{
		recorder.WithLogger(a.log),
		recorder.WithFrameDuration(a.cfg.Recording.FrameDuration.Std()),
		recorder.WithSampleRate(a.cfg.Audio.SampleRate),
	}
	if a.vad != nil {
		opts = append(opts,
			recorder.WithVAD(a.vad),
			recorder.WithSilenceTimeout(a.cfg.Recording.SilenceTimeout.Std()),
		)
	}
	return append(opts, a.recOpts...)
}

func (a *App) segmentPath(t time.Time) string {
	name := t.Format("20060102-150405") + "-" + uuid.NewString() + ".mp3"
	return filepath.Join(a.cfg.Recording.OutputDir, name)
}

func (a *App) resolveDevice() (audio.DeviceSpec, error) {
	if a.cfg.Audio.Device != "" {
		return audio.ParseDeviceSpec(a.cfg.Audio.Device)
	}
	if a.catalog == nil {
		return audio.DeviceSpec{}, fmt.Errorf("%w: no device configured", audio.ErrDeviceNotFound)
	}
	return a.catalog.DefaultInputDevice()
}

// consume logs and publishes results until the pipeline closes the channel
func (a *App) consume() {
	defer close(a.consumerDone)

	for res := range a.results {
		log := a.log.With().
			Str("segment", res.Input.ID).
			Str("path", res.Input.Path).
			Logger()

		if res.OK() {
			log.Info().Str("text", res.Text()).Msg("Transcribed")
		} else {
			log.Error().Str("error", *res.Error).Msg("Transcription failed")
		}

		if a.pub == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.pub.Publish(ctx, res); err != nil {
			log.Error().Err(err).Msg("Publish error")
		}
		cancel()
	}
}

// Shutdown drains the pipeline and waits for every result to be consumed.
// Cancel the Run context first so no new segments are started.
func (a *App) Shutdown(ctx context.Context) error {
	a.consumeOnce.Do(func() { go a.consume() })

	if a.pipeline != nil {
		if err := a.pipeline.Shutdown(ctx); err != nil {
			return err
		}
	}

	select {
	case <-a.consumerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetDevice switches capture to spec from the next segment on
func (a *App) SetDevice(spec audio.DeviceSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: empty device name", audio.ErrMalformedDeviceSpec)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.device = spec
	a.cfg.Audio.Device = spec.String()
	return nil
}

func (a *App) Device() audio.DeviceSpec {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

func (a *App) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Segments returns the number of segments enqueued so far
func (a *App) Segments() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.segments
}

func (a *App) ListDevices() ([]audio.DeviceSpec, error) {
	if a.catalog == nil {
		return nil, nil
	}
	return a.catalog.EnumerateDevices()
}

func (a *App) setIdle() {
	if a.status != nil {
		a.status.SetIdle()
	}
}

// Package pipeline decouples audio capture from speech recognition with a
// bounded queue and a pool of transcription workers.
//
// Every AudioInput accepted by the queue produces exactly one
// TranscriptionResult, including segments evicted by the drop-oldest policy
// and segments whose transcription fails. Results arrive in completion order;
// use a single worker or sort by AudioInput.Timestamp when order matters.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-pipe/internal/asr"
	"github.com/petems/whisper-pipe/internal/metrics"
)

// Config configures a transcription channel
type Config struct {
	Engine    asr.Engine
	Workers   int
	QueueSize int
	Overflow  OverflowPolicy
	// MinSpeechRatio skips inference for segments whose VAD speech ratio is
	// known and below it; they yield an empty transcription
	MinSpeechRatio float64
	// Timeout bounds one transcription; zero means no limit
	Timeout time.Duration
}

// Channel owns the queue, the workers and the results channel
type Channel struct {
	cfg       Config
	model     asr.Model
	ownsModel bool
	log       zerolog.Logger
	metrics   *metrics.Metrics

	queue   *Queue
	results chan TranscriptionResult

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// Control shuts a Channel down
type Control struct {
	c *Channel
}

// Shutdown stops accepting segments and waits for queued and in-flight work
func (ctl Control) Shutdown(ctx context.Context) error {
	return ctl.c.Shutdown(ctx)
}

// New starts workers bound to model. The caller keeps ownership of model.
func New(model asr.Model, cfg Config, log zerolog.Logger) (*Channel, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model", ErrModel)
	}
	if cfg.Engine == "" {
		cfg.Engine = model.Engine()
	}
	if model.Engine() != cfg.Engine {
		return nil, fmt.Errorf("%w: model loaded for %s, pipeline configured for %s", ErrModel, model.Engine(), cfg.Engine)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	c := &Channel{
		cfg:     cfg,
		model:   model,
		log:     log.With().Str("component", "pipeline").Str("engine", cfg.Engine.String()).Logger(),
		metrics: metrics.Default,
		stopped: make(chan struct{}),
	}
	c.queue = NewQueue(cfg.QueueSize, cfg.Overflow, c.evicted)
	c.results = make(chan TranscriptionResult, c.queue.Cap())

	for i := 1; i <= cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	c.log.Info().
		Int("workers", cfg.Workers).
		Int("queue_size", c.queue.Cap()).
		Str("overflow", string(c.queue.policy)).
		Msg("Transcription channel started")

	return c, nil
}

// CreateTranscriptionChannel loads the model for cfg.Engine once and starts
// the workers. The model is closed when the channel shuts down.
func CreateTranscriptionChannel(cfg Config, load asr.LoadConfig, log zerolog.Logger) (*Queue, <-chan TranscriptionResult, Control, error) {
	start := time.Now()
	model, err := asr.Load(cfg.Engine, load)
	if err != nil {
		return nil, nil, Control{}, err
	}
	log.Info().
		Str("engine", cfg.Engine.String()).
		Dur("load_time", time.Since(start)).
		Msg("ASR model loaded")

	c, err := New(model, cfg, log)
	if err != nil {
		model.Close()
		return nil, nil, Control{}, err
	}
	c.ownsModel = true
	return c.Input(), c.Results(), c.Control(), nil
}

// Input is the sending side for recorders
func (c *Channel) Input() *Queue {
	return c.queue
}

// Results must be drained by the consumer; it is closed after Shutdown
// completes.
func (c *Channel) Results() <-chan TranscriptionResult {
	return c.results
}

func (c *Channel) Control() Control {
	return Control{c: c}
}

// Shutdown closes the queue, lets workers finish every queued and in-flight
// segment, then closes Results. If ctx ends first its error is returned and
// the workers keep draining in the background.
func (c *Channel) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() {
		c.log.Info().Int("queued", c.queue.Len()).Msg("Shutting down transcription channel")
		go func() {
			c.queue.Close()
			c.wg.Wait()
			close(c.results)
			if c.ownsModel {
				if err := c.model.Close(); err != nil {
					c.log.Error().Err(err).Msg("Failed to close model")
				}
			}
			close(c.stopped)
		}()
	})

	select {
	case <-c.stopped:
		c.log.Info().Msg("Transcription channel stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) worker(id int) {
	defer c.wg.Done()
	log := c.log.With().Int("worker", id).Logger()

	for in := range c.queue.receive() {
		c.metrics.QueueDepth.Set(float64(c.queue.Len()))
		c.results <- c.process(in, log)
	}
	log.Debug().Msg("Worker stopped")
}

// process never panics and always returns exactly one result for in
func (c *Channel) process(in AudioInput, log zerolog.Logger) (res TranscriptionResult) {
	start := time.Now()
	log = log.With().Str("segment", in.ID).Str("path", in.Path).Logger()

	defer func() {
		if r := recover(); r != nil {
			res = failed(in, fmt.Errorf("%w: panic: %v", ErrModel, r))
		}
		c.metrics.RecordTranscription(res.Err(), time.Since(start).Seconds())
		if res.OK() {
			log.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(res.Text())).Msg("Segment transcribed")
		} else {
			log.Warn().Err(res.Err()).Msg("Segment transcription failed")
		}
	}()

	if c.cfg.MinSpeechRatio > 0 && in.SpeechRatio >= 0 && in.SpeechRatio < c.cfg.MinSpeechRatio {
		log.Debug().Float64("speech_ratio", in.SpeechRatio).Msg("Skipping segment without speech")
		return succeeded(in, "")
	}

	ctx := context.Background()
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	text, err := SpeechToText(ctx, in.Path, c.model, c.cfg.Engine)
	if err != nil {
		return failed(in, err)
	}
	return succeeded(in, text)
}

func (c *Channel) evicted(in AudioInput) {
	c.log.Warn().Str("segment", in.ID).Msg("Queue full, dropping oldest segment")
	res := failed(in, ErrDropped)
	c.metrics.RecordTranscription(res.Err(), 0)
	c.results <- res
}

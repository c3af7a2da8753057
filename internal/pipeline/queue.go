package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/petems/whisper-pipe/internal/metrics"
)

var (
	ErrQueueClosed = errors.New("transcription queue closed")
	// ErrDropped is reported for segments evicted by the drop-oldest policy
	ErrDropped = errors.New("segment dropped: transcription queue full")
)

// OverflowPolicy decides what Send does when the queue is full
type OverflowPolicy string

const (
	// Block waits until a worker frees a slot
	Block OverflowPolicy = "block"
	// DropOldest evicts the oldest queued segment; it still gets an error result
	DropOldest OverflowPolicy = "drop-oldest"
)

const defaultQueueSize = 16

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case Block, "":
		return Block, nil
	case DropOldest:
		return DropOldest, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Queue is the bounded FIFO between recorders and transcription workers
type Queue struct {
	ch      chan AudioInput
	policy  OverflowPolicy
	onEvict func(AudioInput)
	metrics *metrics.Metrics

	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	senders sync.WaitGroup
}

// NewQueue creates a queue holding up to size segments. onEvict receives
// segments dropped by the DropOldest policy and may be nil.
func NewQueue(size int, policy OverflowPolicy, onEvict func(AudioInput)) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	if policy == "" {
		policy = Block
	}
	return &Queue{
		ch:      make(chan AudioInput, size),
		policy:  policy,
		onEvict: onEvict,
		metrics: metrics.Default,
		done:    make(chan struct{}),
	}
}

// Send enqueues in according to the overflow policy
func (q *Queue) Send(ctx context.Context, in AudioInput) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()
	defer q.metrics.QueueDepth.Set(float64(len(q.ch)))

	if q.policy == DropOldest {
		return q.sendDropOldest(in)
	}

	select {
	case q.ch <- in:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) sendDropOldest(in AudioInput) error {
	for {
		select {
		case q.ch <- in:
			return nil
		default:
		}

		select {
		case old := <-q.ch:
			q.metrics.QueueDropped.Inc()
			if q.onEvict != nil {
				q.onEvict(old)
			}
		default:
		}
	}
}

// Len returns the number of queued segments
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue bound
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close stops accepting segments. Blocked senders return ErrQueueClosed;
// already queued segments stay available to receivers. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.senders.Wait()
	close(q.ch)
}

func (q *Queue) receive() <-chan AudioInput {
	return q.ch
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverflowPolicy
		wantErr bool
	}{
		{"", Block, false},
		{"block", Block, false},
		{"drop-oldest", DropOldest, false},
		{"drop-newest", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOverflowPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOverflowPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseOverflowPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4, Block, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Send(ctx, AudioInput{ID: id}); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}
	if q.Len() != 3 {
		t.Errorf("expected 3 queued, got %d", q.Len())
	}
	q.Close()

	var got []string
	for in := range q.receive() {
		got = append(got, in.ID)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestQueueDefaultSize(t *testing.T) {
	q := NewQueue(0, "", nil)
	if q.Cap() != defaultQueueSize {
		t.Errorf("expected cap %d, got %d", defaultQueueSize, q.Cap())
	}
	if q.policy != Block {
		t.Errorf("expected block policy, got %q", q.policy)
	}
}

func TestQueueDropOldest(t *testing.T) {
	var evicted []string
	q := NewQueue(2, DropOldest, func(in AudioInput) {
		evicted = append(evicted, in.ID)
	})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := q.Send(ctx, AudioInput{ID: id}); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}

	if len(evicted) != 2 || evicted[0] != "a" || evicted[1] != "b" {
		t.Errorf("expected a and b evicted, got %v", evicted)
	}
	if q.Len() != 2 {
		t.Errorf("expected queue to stay at capacity, got %d", q.Len())
	}
}

func TestQueueSendAfterClose(t *testing.T) {
	q := NewQueue(1, Block, nil)
	q.Close()
	q.Close()

	err := q.Send(context.Background(), AudioInput{ID: "late"})
	if !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueBlockedSendCancelled(t *testing.T) {
	q := NewQueue(1, Block, nil)
	if err := q.Send(context.Background(), AudioInput{ID: "a"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Send(ctx, AudioInput{ID: "b"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestQueueCloseReleasesBlockedSender(t *testing.T) {
	q := NewQueue(1, Block, nil)
	if err := q.Send(context.Background(), AudioInput{ID: "a"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Send(context.Background(), AudioInput{ID: "b"})
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked sender was not released by Close")
	}

	in, ok := <-q.receive()
	if !ok || in.ID != "a" {
		t.Errorf("expected queued segment a to survive close, got %+v ok=%v", in, ok)
	}
}

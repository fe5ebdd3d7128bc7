package pipeline

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned when Send times out.
var ErrQueueFull = errors.New("queue full")

// Queue is a fixed capacity FIFO between stages.
type Queue[T any] struct {
	ch chan T
}

// NewQueue creates a Queue. Capacity below 1 is raised to 1.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Send enqueues v waiting at most timeout for room. A zero timeout
// doesn't wait.
func (q *Queue[T]) Send(ctx context.Context, v T, timeout time.Duration) error {
	select {
	case q.ch <- v:
		return nil
	default:
	}
	if timeout <= 0 {
		return ErrQueueFull
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- v:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the oldest item, blocking until one is available or
// ctx is done.
func (q *Queue[T]) Receive(ctx context.Context) (v T, err error) {
	select {
	case v = <-q.ch:
		return v, nil
	case <-ctx.Done():
		return v, ctx.Err()
	}
}

// TryReceive dequeues without blocking.
func (q *Queue[T]) TryReceive() (v T, ok bool) {
	select {
	case v = <-q.ch:
		return v, true
	default:
		return v, false
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

package output

import (
	"context"
	"time"
)

// Bus is an exclusive lock over the shared device bus.
type Bus struct {
	sem chan struct{}
}

// NewBus creates a Bus.
func NewBus() *Bus {
	return &Bus{sem: make(chan struct{}, 1)}
}

// Acquire takes the bus waiting at most timeout.
func (b *Bus) Acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBusTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release gives the bus back. Releasing an idle bus is a no-op.
func (b *Bus) Release() {
	select {
	case <-b.sem:
	default:
	}
}

// Do runs fn while holding the bus.
func (b *Bus) Do(ctx context.Context, timeout time.Duration, fn func() error) error {
	if err := b.Acquire(ctx, timeout); err != nil {
		return err
	}
	defer b.Release()
	return fn()
}

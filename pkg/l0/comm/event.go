package comm

import (
	"context"
	"time"
)

// Event is an outbound message produced by input sources or the dispatcher.
type Event struct {
	Command Command
	Payload []byte
}

// NewEvent creates an Event owning a copy of payload.
func NewEvent(cmd Command, payload ...byte) Event {
	return Event{Command: cmd, Payload: append([]byte(nil), payload...)}
}

// EventSink accepts outbound events, waiting at most timeout for room.
type EventSink interface {
	Send(ctx context.Context, ev Event, timeout time.Duration) error
}

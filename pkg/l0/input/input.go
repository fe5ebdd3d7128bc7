// Package input builds the events reported by keypad, ADC and rotary
// encoder scanners, and publishes them to the outbound queue.
package input

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// Encoder rotation directions.
const (
	DirectionCW  byte = 1
	DirectionCCW byte = 2
)

// KeyEvent reports a key at row/col changing state.
func KeyEvent(row, col byte, pressed bool) comm.Event {
	b := ((col << 4) | (row << 1)) & 0xfe
	if pressed {
		b |= 1
	}
	return comm.NewEvent(comm.CmdKey, b)
}

// ADCEvent reports a sampled analog channel.
func ADCEvent(ch byte, value uint16) comm.Event {
	return comm.NewEvent(comm.CmdAD, ch, byte(value>>8), byte(value))
}

// EncoderEvent reports a rotary encoder step.
func EncoderEvent(rotary, direction byte) comm.Event {
	return comm.NewEvent(comm.CmdRotary, rotary<<4, direction)
}

// DefaultTimeout is the default wait for room in the outbound queue.
const DefaultTimeout = 5 * time.Millisecond

// Publisher sends input events to the outbound queue.
type Publisher struct {
	Sink    comm.EventSink
	Timeout time.Duration
	Stats   *stats.Registry
}

// NewPublisher creates a Publisher with DefaultTimeout.
func NewPublisher(sink comm.EventSink, reg *stats.Registry) *Publisher {
	return &Publisher{Sink: sink, Timeout: DefaultTimeout, Stats: reg}
}

// Publish sends ev. A full queue is counted and reported, the event
// is dropped.
func (p *Publisher) Publish(ctx context.Context, ev comm.Event) error {
	err := p.Sink.Send(ctx, ev, p.Timeout)
	if err != nil {
		p.Stats.Inc(stats.QueueSend)
		glog.V(2).Infof("input: drop %s event: %v", ev.Command, err)
	}
	return err
}

// Package dispatch routes decoded messages to the output subsystem and
// the diagnostics handlers.
package dispatch

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/output"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// DefaultSendTimeout is the default wait for room for a response.
const DefaultSendTimeout = 5 * time.Millisecond

// InvalidTaskIndex is the TaskStatus reply to an out of range index.
const InvalidTaskIndex = 0xff

// Response sizes.
const (
	ErrorStatusLen = 5
	TaskStatusLen  = 13
)

// HandlerFunc handles the payload of one command.
type HandlerFunc func(ctx context.Context, payload []byte)

// Dispatcher routes messages by command. Faults are counted, never
// returned.
type Dispatcher struct {
	Output      output.Subsystem
	Stats       *stats.Registry
	Metrics     *framework.Metrics
	Events      comm.EventSink
	SendTimeout time.Duration

	handlers map[comm.Command]HandlerFunc
}

// New creates a Dispatcher with the built-in handlers.
func New(out output.Subsystem, reg *stats.Registry, metrics *framework.Metrics, events comm.EventSink) *Dispatcher {
	d := &Dispatcher{
		Output:      out,
		Stats:       reg,
		Metrics:     metrics,
		Events:      events,
		SendTimeout: DefaultSendTimeout,
	}
	d.handlers = map[comm.Command]HandlerFunc{
		comm.CmdLEDOut:         d.ledOut,
		comm.CmdPWM:            d.pwm,
		comm.CmdDisplayControl: d.displayOut,
		comm.CmdEcho:           d.echo,
		comm.CmdErrorStatus:    d.errorStatus,
		comm.CmdTaskStatus:     d.taskStatus,
	}
	return d
}

// Handle installs or replaces the handler of cmd.
func (d *Dispatcher) Handle(cmd comm.Command, h HandlerFunc) {
	if h == nil {
		delete(d.handlers, cmd)
		return
	}
	d.handlers[cmd] = h
}

// Handles checks if cmd has a handler.
func (d *Dispatcher) Handles(cmd comm.Command) bool {
	_, ok := d.handlers[cmd]
	return ok
}

// Dispatch routes msg to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, msg comm.Message) {
	h, ok := d.handlers[msg.Command]
	if !ok {
		glog.V(2).Infof("dispatch: unhandled %s", msg.Command)
		d.Stats.Inc(stats.UnknownCmd)
		return
	}
	h(ctx, msg.Payload)
}

func (d *Dispatcher) ledOut(ctx context.Context, payload []byte) {
	if d.Output == nil {
		d.Stats.Inc(stats.LEDOut)
		return
	}
	if err := d.Output.LEDOut(payload); err != nil {
		glog.V(2).Infof("dispatch: led out: %v", err)
		d.Stats.Inc(stats.LEDOut)
	}
}

func (d *Dispatcher) displayOut(ctx context.Context, payload []byte) {
	if d.Output == nil {
		d.Stats.Inc(stats.DisplayOut)
		return
	}
	if err := d.Output.DisplayOut(payload); err != nil {
		glog.V(2).Infof("dispatch: display out: %v", err)
		d.Stats.Inc(stats.DisplayOut)
	}
}

func (d *Dispatcher) pwm(ctx context.Context, payload []byte) {
	if d.Output != nil {
		d.Output.SetBrightness(arg(payload))
	}
}

func (d *Dispatcher) echo(ctx context.Context, payload []byte) {
	d.reply(ctx, comm.NewEvent(comm.CmdEcho, payload...))
}

func (d *Dispatcher) errorStatus(ctx context.Context, payload []byte) {
	var data [ErrorStatusLen]byte
	index := arg(payload)
	if v, ok := d.Stats.Lookup(int(index)); ok {
		data[0] = index
		binary.BigEndian.PutUint32(data[1:], v)
	}
	d.reply(ctx, comm.NewEvent(comm.CmdErrorStatus, data[:]...))
}

func (d *Dispatcher) taskStatus(ctx context.Context, payload []byte) {
	index := arg(payload)
	if d.Metrics == nil {
		d.reply(ctx, comm.NewEvent(comm.CmdTaskStatus, InvalidTaskIndex))
		return
	}
	rec, ok := d.Metrics.Record(int(index))
	if !ok {
		d.reply(ctx, comm.NewEvent(comm.CmdTaskStatus, InvalidTaskIndex))
		return
	}
	var data [TaskStatusLen]byte
	data[0] = index
	binary.BigEndian.PutUint32(data[1:], rec.RunTime)
	binary.BigEndian.PutUint32(data[5:], rec.Percent)
	binary.BigEndian.PutUint32(data[9:], rec.HighWater)
	d.reply(ctx, comm.NewEvent(comm.CmdTaskStatus, data[:]...))
}

func (d *Dispatcher) reply(ctx context.Context, ev comm.Event) {
	if d.Events == nil {
		d.Stats.Inc(stats.QueueSend)
		return
	}
	if err := d.Events.Send(ctx, ev, d.SendTimeout); err != nil {
		glog.V(2).Infof("dispatch: drop %s reply: %v", ev.Command, err)
		d.Stats.Inc(stats.QueueSend)
	}
}

// arg returns the first payload byte, a missing byte reads as zero.
func arg(payload []byte) byte {
	if len(payload) > 0 {
		return payload[0]
	}
	return 0
}

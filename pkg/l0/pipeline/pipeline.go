// Package pipeline wires the transport, the protocol and the output
// subsystem together as a set of concurrently running stages connected
// by bounded queues.
package pipeline

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/dispatch"
	"github.com/robotalks/panel.go/pkg/l0/input"
	"github.com/robotalks/panel.go/pkg/l0/output"
	"github.com/robotalks/panel.go/pkg/l0/stats"
	"github.com/robotalks/panel.go/pkg/l0/transport"
)

// Pipeline is the communication core of a panel node.
type Pipeline struct {
	opts       Options
	transport  transport.Transport
	indicator  output.Indicator
	stats      *stats.Registry
	metrics    *framework.Metrics
	endpoint   *comm.Endpoint
	dispatcher *dispatch.Dispatcher
	publisher  *input.Publisher

	bytes   *Queue[byte]
	events  *Queue[comm.Event]
	packets *Queue[comm.Packet]

	stages []framework.Runnable
}

// New creates a Pipeline. A nil registry gets a fresh one.
func New(opts Options, t transport.Transport, out output.Subsystem, reg *stats.Registry) (*Pipeline, error) {
	if t == nil {
		return nil, fmt.Errorf("pipeline: no transport")
	}
	if opts.Node > comm.MaxNodeID {
		return nil, fmt.Errorf("pipeline: node %d: %w", opts.Node, comm.ErrInvalidNode)
	}
	if err := opts.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if reg == nil {
		reg = stats.NewRegistry()
	}
	p := &Pipeline{
		opts:      opts,
		transport: t,
		stats:     reg,
		metrics:   framework.NewMetrics(),
		endpoint:  &comm.Endpoint{Node: opts.Node, Limits: opts.Limits},
		bytes:     NewQueue[byte](opts.ByteQueueSize),
		events:    NewQueue[comm.Event](opts.EventQueueSize),
		packets:   NewQueue[comm.Packet](opts.PacketQueueSize),
	}
	p.dispatcher = dispatch.New(out, reg, p.metrics, p.events)
	p.dispatcher.SendTimeout = opts.EventSendTimeout
	p.publisher = input.NewPublisher(p.events, reg)
	p.publisher.Timeout = opts.EventSendTimeout

	for _, name := range StageNames {
		m := p.metrics.Stage(name, stagePriorities[name], opts.cpu(name))
		var r framework.Runnable
		switch name {
		case StagePump:
			r = &pumpStage{Pipeline: p, m: m}
		case StageReceiver:
			r = &receiverStage{Pipeline: p, m: m}
		case StageDecoder:
			r = &decoderStage{Pipeline: p, m: m}
		case StageFormatter:
			r = &formatterStage{Pipeline: p, m: m}
		case StageTransmitter:
			r = &transmitterStage{Pipeline: p, m: m}
		case StageStatus:
			r = &statusStage{Pipeline: p, m: m}
		}
		p.stages = append(p.stages, framework.StageRun(name, m.Priority(), m.CPU(), r))
	}
	return p, nil
}

// SetIndicator attaches the status indicator. Call before Run.
func (p *Pipeline) SetIndicator(ind output.Indicator) {
	p.indicator = ind
}

// Node returns the local node id.
func (p *Pipeline) Node() uint16 {
	return p.endpoint.Node
}

// Stats returns the statistics registry.
func (p *Pipeline) Stats() *stats.Registry {
	return p.stats
}

// Metrics returns the stage metrics.
func (p *Pipeline) Metrics() *framework.Metrics {
	return p.metrics
}

// Dispatcher returns the dispatcher, for installing extra handlers
// before Run.
func (p *Pipeline) Dispatcher() *dispatch.Dispatcher {
	return p.dispatcher
}

// Events returns the outbound event queue.
func (p *Pipeline) Events() *Queue[comm.Event] {
	return p.events
}

// Publisher returns the input event publisher.
func (p *Pipeline) Publisher() *input.Publisher {
	return p.publisher
}

// Publish sends an input event to the host.
func (p *Pipeline) Publish(ctx context.Context, ev comm.Event) error {
	return p.publisher.Publish(ctx, ev)
}

// Stages returns the stage runners.
func (p *Pipeline) Stages() []framework.Runnable {
	return p.stages
}

// Run runs all stages until ctx is done. A panicking stage puts the
// registry into error state.
func (p *Pipeline) Run(ctx context.Context) error {
	r := framework.NewRunnerWith(ctx)
	r.OnPanic = func(name string, v interface{}) {
		p.stats.SetError(stats.ErrorPanic)
	}
	r.OnPinFailure = func(name string, cpu int, err error) {
		p.stats.SetError(stats.ErrorSchedulerFailed)
	}
	glog.Infof("pipeline: node %d starting %d stages", p.endpoint.Node, len(p.stages))
	r.Go(p.stages...)
	err := r.Wait()
	glog.Infof("pipeline: stopped")
	return err
}

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/stats"
	"github.com/robotalks/panel.go/pkg/l0/transport"
)

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pumpStage services transports which need a pump.
type pumpStage struct {
	*Pipeline
	m *framework.StageMetrics
}

func (s *pumpStage) Run(ctx context.Context) error {
	servicer, ok := s.transport.(transport.Servicer)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		err := servicer.Service(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, transport.ErrClosed) {
			glog.V(1).Info("pump: link closed")
			<-ctx.Done()
			return ctx.Err()
		}
		if err != nil {
			glog.V(1).Infof("pump: link down: %v", err)
		}
		if err := sleep(ctx, s.opts.Yield); err != nil {
			return err
		}
	}
}

// receiverStage moves received bytes into the byte queue.
type receiverStage struct {
	*Pipeline
	m *framework.StageMetrics
}

func (s *receiverStage) Run(ctx context.Context) error {
	buf := make([]byte, s.opts.Limits.MaxFrame)
	for {
		n, err := s.transport.Read(buf)
		if err != nil {
			glog.V(1).Infof("receiver: read: %v", err)
		}
		if n == 0 {
			if err := sleep(ctx, s.opts.Yield); err != nil {
				return err
			}
			continue
		}
		start := time.Now()
		s.stats.Add(stats.BytesReceived, uint32(n))
		for _, b := range buf[:n] {
			if err := s.bytes.Send(ctx, b, s.opts.ByteSendTimeout); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.stats.Inc(stats.QueueSend)
			}
		}
		s.m.Mark(s.bytes.Len())
		s.m.Track(start)
	}
}

// decoderStage assembles frames, decodes and dispatches messages.
type decoderStage struct {
	*Pipeline
	m *framework.StageMetrics
}

func (s *decoderStage) Run(ctx context.Context) error {
	asm := comm.NewAssembler(s.opts.Limits.MaxFrame, s.stats)
	for {
		b, err := s.bytes.Receive(ctx)
		if err != nil {
			return err
		}
		start := time.Now()
		if raw := asm.Feed(b); raw != nil {
			msg, err := s.endpoint.Decode(raw)
			if err != nil {
				glog.V(2).Infof("decoder: % x: %v", raw, err)
				s.stats.Inc(comm.CounterOf(err))
			} else {
				glog.V(2).Infof("decoder: %s", msg)
				s.dispatcher.Dispatch(ctx, msg)
			}
		}
		s.m.Mark(s.bytes.Len())
		s.m.Track(start)
	}
}

// formatterStage encodes outbound events into packets.
type formatterStage struct {
	*Pipeline
	m *framework.StageMetrics
}

func (s *formatterStage) Run(ctx context.Context) error {
	for {
		ev, err := s.events.Receive(ctx)
		if err != nil {
			return err
		}
		start := time.Now()
		s.m.Mark(s.events.Len() + 1)
		pkt, err := s.endpoint.Encode(ev.Command, ev.Payload)
		if err != nil {
			glog.V(2).Infof("formatter: %s: %v", ev.Command, err)
			s.stats.Inc(comm.CounterOf(err))
		} else if err = s.packets.Send(ctx, pkt, s.opts.PacketSendTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.stats.Inc(stats.TransmitQueueSend)
		}
		s.m.Track(start)
	}
}

// transmitterStage writes packets to the transport.
type transmitterStage struct {
	*Pipeline
	m *framework.StageMetrics
}

func (s *transmitterStage) Run(ctx context.Context) error {
	for {
		pkt, err := s.packets.Receive(ctx)
		if err != nil {
			return err
		}
		start := time.Now()
		s.m.Mark(s.packets.Len() + 1)
		if err := s.transmit(ctx, pkt.Bytes()); err != nil {
			return err
		}
		s.m.Track(start)
	}
}

func (s *transmitterStage) waitReady(ctx context.Context) error {
	for !s.transport.Ready() {
		if err := sleep(ctx, s.opts.ReadyPoll); err != nil {
			return err
		}
	}
	return nil
}

func (s *transmitterStage) transmit(ctx context.Context, data []byte) error {
	written := 0
	for written < len(data) {
		if err := s.waitReady(ctx); err != nil {
			return err
		}
		chunk := len(data) - written
		if avail := s.transport.WriteAvailable(); avail < chunk {
			chunk = avail
		}
		if chunk > 0 {
			n, err := s.transport.Write(data[written : written+chunk])
			written += n
			if err != nil {
				glog.V(1).Infof("transmitter: write: %v", err)
			}
		}
		if written < len(data) {
			// make room for the rest
			if err := s.transport.Flush(); err != nil {
				glog.V(1).Infof("transmitter: flush: %v", err)
			}
			if err := sleep(ctx, s.opts.Yield); err != nil {
				return err
			}
		}
	}
	s.stats.Add(stats.BytesSent, uint32(written))
	if err := s.transport.Flush(); err != nil {
		glog.V(1).Infof("transmitter: flush: %v", err)
	}
	return nil
}

// statusStage drives the status indicator: the error type is blinked
// while in error state, otherwise the indicator shows link readiness.
type statusStage struct {
	*Pipeline
	m *framework.StageMetrics
}

func (s *statusStage) Run(ctx context.Context) error {
	timing := s.opts.Status
	for {
		start := time.Now()
		s.metrics.SampleMemory()
		inError, errType := s.stats.ErrorState()
		var wait time.Duration
		if inError {
			if err := s.blink(ctx, int(errType)); err != nil {
				return err
			}
			wait = timing.Pause
		} else {
			s.setIndicator(s.transport.Ready())
			wait = timing.Poll
		}
		s.m.Track(start)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *statusStage) blink(ctx context.Context, count int) error {
	timing := s.opts.Status
	for i := 0; i < count; i++ {
		s.setIndicator(true)
		if err := sleep(ctx, timing.BlinkOn); err != nil {
			return err
		}
		s.setIndicator(false)
		if i+1 < count {
			if err := sleep(ctx, timing.BlinkOff); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *statusStage) setIndicator(on bool) {
	if s.indicator != nil {
		s.indicator.SetIndicator(on)
	}
}

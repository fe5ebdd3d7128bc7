// Package host implements the host side of the panel link: framing
// outgoing commands and matching replies to pending requests.
package host

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// MessageHandler is called when a message is received.
type MessageHandler interface {
	HandleMessage(context.Context, comm.Message)
}

// HandleMessageFunc is func type of MessageHandler.
type HandleMessageFunc func(context.Context, comm.Message)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg comm.Message) {
	f(ctx, msg)
}

// FIFO sends commands to and receives messages from one node.
type FIFO struct {
	ReadWriter io.ReadWriter
	Handler    MessageHandler
	Endpoint   *comm.Endpoint
	// Stats counts framing faults seen on the host side.
	Stats *stats.Registry

	lock sync.Mutex
}

// NewFIFO creates a FIFO talking to node.
func NewFIFO(rw io.ReadWriter, node uint16) *FIFO {
	return &FIFO{
		ReadWriter: rw,
		Endpoint:   comm.NewEndpoint(node),
		Stats:      stats.NewRegistry(),
	}
}

// Send encodes and writes one command.
func (f *FIFO) Send(cmd comm.Command, payload []byte) error {
	pkt, err := f.Endpoint.Encode(cmd, payload)
	if err != nil {
		return err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	n, err := pkt.WriteTo(f.ReadWriter)
	f.Stats.Add(stats.BytesSent, uint32(n))
	return err
}

// Run reads and dispatches messages until the stream fails or ctx is
// done. Malformed frames are counted and skipped.
func (f *FIFO) Run(ctx context.Context) error {
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.readLoop(subCtx, dataCh, errCh)
	asm := comm.NewAssembler(f.Endpoint.Limits.MaxFrame, f.Stats)
	for {
		select {
		case data := <-dataCh:
			f.Stats.Add(stats.BytesReceived, uint32(len(data)))
			for _, b := range data {
				raw := asm.Feed(b)
				if raw == nil {
					continue
				}
				msg, err := f.Endpoint.Decode(raw)
				if err != nil {
					glog.V(2).Infof("host: % x: %v", raw, err)
					f.Stats.Inc(comm.CounterOf(err))
					continue
				}
				msg.Payload = append([]byte(nil), msg.Payload...)
				if h := f.Handler; h != nil {
					h.HandleMessage(ctx, msg)
				}
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *FIFO) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	buf := make([]byte, comm.PacketCapacity)
	for {
		n, err := f.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case dataCh <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

package pipeline

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/dispatch"
	"github.com/robotalks/panel.go/pkg/l0/input"
	"github.com/robotalks/panel.go/pkg/l0/output"
	"github.com/robotalks/panel.go/pkg/l0/stats"
	"github.com/robotalks/panel.go/pkg/l0/transport"
)

const testNode = 5

type testHost struct {
	t    *testing.T
	conn net.Conn
	ep   *comm.Endpoint
	msgs chan comm.Message
}

func newTestHost(t *testing.T, conn net.Conn, lim comm.Limits) *testHost {
	h := &testHost{t: t, conn: conn, ep: &comm.Endpoint{Node: testNode, Limits: lim}, msgs: make(chan comm.Message, 16)}
	go h.readLoop()
	return h
}

func (h *testHost) readLoop() {
	asm := comm.NewAssembler(h.ep.Limits.MaxFrame, nil)
	buf := make([]byte, 64)
	for {
		n, err := h.conn.Read(buf)
		if err != nil {
			close(h.msgs)
			return
		}
		for _, b := range buf[:n] {
			if raw := asm.Feed(b); raw != nil {
				if msg, err := h.ep.Decode(raw); err == nil {
					msg.Payload = append([]byte(nil), msg.Payload...)
					h.msgs <- msg
				}
			}
		}
	}
}

func (h *testHost) send(node uint16, cmd comm.Command, payload ...byte) {
	pkt, err := comm.EncodePacket(node, cmd, payload, h.ep.Limits)
	require.NoError(h.t, err)
	_, err = h.conn.Write(pkt.Bytes())
	require.NoError(h.t, err)
}

func (h *testHost) sendRaw(b ...byte) {
	_, err := h.conn.Write(b)
	require.NoError(h.t, err)
}

func (h *testHost) expect(cmd comm.Command) comm.Message {
	select {
	case msg, ok := <-h.msgs:
		require.True(h.t, ok)
		require.Equal(h.t, cmd, msg.Command)
		return msg
	case <-time.After(2 * time.Second):
		h.t.Fatalf("no %s reply", cmd)
	}
	return comm.Message{}
}

type fixture struct {
	p      *Pipeline
	host   *testHost
	panel  *output.Panel
	leds   *output.Recorder
	cancel context.CancelFunc
	done   chan error
}

func startPipeline(t *testing.T, configure ...func(*Options)) *fixture {
	hostConn, devConn := net.Pipe()
	link := transport.NewLink(64)
	link.Attach(devConn)

	reg := stats.NewRegistry()
	panel := output.NewPanel(nil, reg)
	leds := output.NewRecorder("leds")
	require.NoError(t, panel.Configure(1, output.DeviceGenericLED, leds))

	opts := DefaultOptions()
	opts.Node = testNode
	for _, fn := range configure {
		fn(&opts)
	}
	p, err := New(opts, link, panel, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{p: p, panel: panel, leds: leds, cancel: cancel, done: make(chan error, 1)}
	go func() { f.done <- p.Run(ctx) }()
	f.host = newTestHost(t, hostConn, opts.Limits)
	t.Cleanup(func() {
		cancel()
		hostConn.Close()
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Error("pipeline not stopped")
		}
	})
	return f
}

func counterValue(t *testing.T, h *testHost, c stats.Counter) uint32 {
	h.send(testNode, comm.CmdErrorStatus, byte(c))
	msg := h.expect(comm.CmdErrorStatus)
	require.Len(t, msg.Payload, 5)
	require.Equal(t, byte(c), msg.Payload[0])
	return uint32(msg.Payload[1])<<24 | uint32(msg.Payload[2])<<16 | uint32(msg.Payload[3])<<8 | uint32(msg.Payload[4])
}

func TestEcho(t *testing.T) {
	f := startPipeline(t)
	f.host.send(testNode, comm.CmdEcho, 1, 2, 3)
	msg := f.host.expect(comm.CmdEcho)
	require.Equal(t, uint16(testNode), msg.Node)
	require.Equal(t, []byte{1, 2, 3}, msg.Payload)

	f.host.send(testNode, comm.CmdEcho, 0, 0, 0)
	require.Equal(t, []byte{0, 0, 0}, f.host.expect(comm.CmdEcho).Payload)
}

func TestFaultAccounting(t *testing.T) {
	f := startPipeline(t)
	// checksum flipped
	f.host.sendRaw(0x01, 0x07, 0xa3, 0x03, 0x01, 0x02, 0x03, 0xa1, 0x00)
	// addressed to another node
	f.host.send(testNode+1, comm.CmdEcho, 1)
	// empty frame
	f.host.sendRaw(0x00)
	// unknown command
	f.host.send(testNode, comm.CmdConfig, 1)

	require.Equal(t, uint32(1), counterValue(t, f.host, stats.Checksum))
	require.Equal(t, uint32(1), counterValue(t, f.host, stats.WrongNode))
	require.Equal(t, uint32(1), counterValue(t, f.host, stats.MsgMalformed))
	require.Equal(t, uint32(1), counterValue(t, f.host, stats.UnknownCmd))
	require.NotZero(t, counterValue(t, f.host, stats.BytesReceived))
}

func TestOutputAndInput(t *testing.T) {
	f := startPipeline(t)
	f.host.send(testNode, comm.CmdLEDOut, 1, 4, 0x0f)
	f.host.send(testNode, comm.CmdPWM, 16)
	f.host.send(testNode, comm.CmdEcho)
	f.host.expect(comm.CmdEcho)
	require.Equal(t, byte(0x0f), f.leds.LED(4))
	require.Equal(t, uint16(256), f.panel.Brightness())

	require.NoError(t, f.p.Publish(context.Background(), input.KeyEvent(1, 2, true)))
	require.Equal(t, []byte{0x23}, f.host.expect(comm.CmdKey).Payload)
	require.NoError(t, f.p.Publish(context.Background(), input.ADCEvent(2, 0x1234)))
	require.Equal(t, []byte{2, 0x12, 0x34}, f.host.expect(comm.CmdAD).Payload)
}

func TestTaskStatus(t *testing.T) {
	f := startPipeline(t, func(opts *Options) {
		opts.Limits = comm.Limits{MaxPayload: dispatch.TaskStatusLen, MaxFrame: comm.FrameFor(dispatch.TaskStatusLen)}
	})
	f.host.send(testNode, comm.CmdTaskStatus, byte(len(StageNames)))
	idle := f.host.expect(comm.CmdTaskStatus)
	require.Len(t, idle.Payload, 13)
	require.Equal(t, byte(len(StageNames)), idle.Payload[0])

	f.host.send(testNode, comm.CmdTaskStatus, byte(len(StageNames)+1))
	require.Equal(t, []byte{0xff}, f.host.expect(comm.CmdTaskStatus).Payload)
}

func TestTaskStatusOverflow(t *testing.T) {
	f := startPipeline(t)
	f.host.send(testNode, comm.CmdTaskStatus, 0)
	// the response does not fit the default payload limit
	f.host.send(testNode, comm.CmdEcho)
	f.host.expect(comm.CmdEcho)
	require.Equal(t, uint32(1), counterValue(t, f.host, stats.BufferOverflow))
}

func TestOversizeEvent(t *testing.T) {
	f := startPipeline(t)
	require.NoError(t, f.p.Publish(context.Background(), comm.NewEvent(comm.CmdDisplay, make([]byte, 11)...)))
	require.Eventually(t, func() bool {
		return f.p.Stats().Get(stats.BufferOverflow) == 1
	}, time.Second, time.Millisecond)
}

type stalledTransport struct{}

func (stalledTransport) Read(p []byte) (int, error)  { return 0, nil }
func (stalledTransport) WriteAvailable() int         { return 0 }
func (stalledTransport) Write(p []byte) (int, error) { return 0, transport.ErrNotReady }
func (stalledTransport) Flush() error                { return transport.ErrNotReady }
func (stalledTransport) Ready() bool                 { return false }

func TestBackpressure(t *testing.T) {
	opts := DefaultOptions()
	opts.EventQueueSize = 2
	opts.PacketQueueSize = 2
	reg := stats.NewRegistry()
	p, err := New(opts, stalledTransport{}, nil, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < opts.EventQueueSize; i++ {
		require.NoError(t, p.Publish(ctx, input.EncoderEvent(1, input.DirectionCW)))
	}
	require.Equal(t, ErrQueueFull, p.Publish(ctx, input.EncoderEvent(1, input.DirectionCCW)))
	require.Equal(t, uint32(1), reg.Get(stats.QueueSend))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	// the transmitter holds one packet waiting for the link, the rest
	// fill the packet queue until the formatter has to drop.
	require.Eventually(t, func() bool {
		p.Publish(ctx, input.EncoderEvent(1, input.DirectionCW))
		return reg.Get(stats.TransmitQueueSend) > 0
	}, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline not stopped")
	}
}

type testIndicator struct {
	lock    sync.Mutex
	changes []bool
}

func (i *testIndicator) SetIndicator(on bool) {
	i.lock.Lock()
	defer i.lock.Unlock()
	if n := len(i.changes); n == 0 || i.changes[n-1] != on {
		i.changes = append(i.changes, on)
	}
}

func (i *testIndicator) count() int {
	i.lock.Lock()
	defer i.lock.Unlock()
	return len(i.changes)
}

func TestStatusBlink(t *testing.T) {
	opts := DefaultOptions()
	opts.Status = StatusTiming{BlinkOn: time.Millisecond, BlinkOff: time.Millisecond, Pause: 20 * time.Millisecond, Poll: time.Millisecond}
	reg := stats.NewRegistry()
	reg.SetError(stats.ErrorPanic)
	p, err := New(opts, stalledTransport{}, nil, reg)
	require.NoError(t, err)
	ind := &testIndicator{}
	p.SetIndicator(ind)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	blinks := int(stats.ErrorPanic)
	require.Eventually(t, func() bool { return ind.count() >= blinks*2 }, 2*time.Second, time.Millisecond)
	ind.lock.Lock()
	require.Equal(t, []bool{true, false}, ind.changes[:2])
	ind.lock.Unlock()
}

func TestNewValidation(t *testing.T) {
	opts := DefaultOptions()
	_, err := New(opts, nil, nil, nil)
	require.Error(t, err)
	opts.Node = comm.MaxNodeID + 1
	_, err = New(opts, stalledTransport{}, nil, nil)
	require.Error(t, err)
	opts = DefaultOptions()
	opts.Limits.MaxFrame = 8
	_, err = New(opts, stalledTransport{}, nil, nil)
	require.Error(t, err)

	p, err := New(DefaultOptions(), stalledTransport{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, p.Stages(), len(StageNames))
	require.Equal(t, len(StageNames), p.Metrics().Len())
	require.NotNil(t, p.Stats())
}

package host

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// Errors.
var (
	ErrNoReply     = errors.New("no reply")
	ErrTimeout     = errors.New("reply timeout")
	ErrInvalidTask = errors.New("invalid task index")
	ErrShortReply  = errors.New("short reply")
)

// DefaultTimeout is the default wait for a reply.
const DefaultTimeout = time.Second

// RepliesTo tells if the node answers cmd.
func RepliesTo(cmd comm.Command) bool {
	switch cmd {
	case comm.CmdEcho, comm.CmdErrorStatus, comm.CmdTaskStatus:
		return true
	}
	return false
}

// Result is the result of a command using Do.
type Result struct {
	Err     error
	Payload []byte
}

// Request represents a pending command waiting for reply.
type Request struct {
	cmd      comm.Command
	resultCh chan Result
	client   *Client
	next     *Request
}

// Command returns the request command.
func (r *Request) Command() comm.Command {
	return r.cmd
}

// ResultChan returns the chan to retrieve result.
func (r *Request) ResultChan() <-chan Result {
	return r.resultCh
}

// Wait waits for the result. A request given up on timeout or
// cancellation no longer takes a reply.
func (r *Request) Wait(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var err error
	select {
	case res := <-r.resultCh:
		return res.Payload, res.Err
	case <-timer.C:
		err = ErrTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}
	if r.client != nil {
		r.client.abandon(r)
	}
	return nil, err
}

// Client provides host side operations over a FIFO.
type Client struct {
	Timeout time.Duration

	fifo     *FIFO
	eventCh  chan comm.Message
	reqsHead *Request
	reqsTail *Request
	reqsLock sync.Mutex
}

// NewClient creates client and wraps the fifo.
func NewClient(fifo *FIFO) *Client {
	c := &Client{
		Timeout: DefaultTimeout,
		fifo:    fifo,
		eventCh: make(chan comm.Message, 16),
	}
	c.fifo.Handler = c
	return c
}

// FIFO gets wrapped FIFO.
func (c *Client) FIFO() *FIFO {
	return c.fifo
}

// EventChan retrieves unsolicited messages: key, ADC and encoder events.
func (c *Client) EventChan() <-chan comm.Message {
	return c.eventCh
}

// Send sends a command without waiting for a reply.
func (c *Client) Send(cmd comm.Command, payload ...byte) error {
	return c.fifo.Send(cmd, payload)
}

// Do sends a command answered by the node and returns the Request.
// Commands without reply complete when sent.
func (c *Client) Do(cmd comm.Command, payload ...byte) *Request {
	req := &Request{cmd: cmd, resultCh: make(chan Result, 1)}
	if !RepliesTo(cmd) {
		req.resultCh <- Result{Err: c.fifo.Send(cmd, payload)}
		return req
	}

	c.reqsLock.Lock()
	defer c.reqsLock.Unlock()
	if err := c.fifo.Send(cmd, payload); err != nil {
		req.resultCh <- Result{Err: err}
		return req
	}
	if c.reqsHead == nil {
		c.reqsHead = req
	} else {
		c.reqsTail.next = req
	}
	c.reqsTail = req
	req.client = c
	return req
}

// abandon unlinks req from the pending list if still there.
func (c *Client) abandon(req *Request) {
	c.reqsLock.Lock()
	defer c.reqsLock.Unlock()
	var prev *Request
	for curr := c.reqsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != req {
			continue
		}
		if prev == nil {
			c.reqsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.reqsTail == curr {
			c.reqsTail = prev
		}
		curr.next = nil
		return
	}
}

// Call sends a command and waits for its reply.
func (c *Client) Call(ctx context.Context, cmd comm.Command, payload ...byte) ([]byte, error) {
	return c.Do(cmd, payload...).Wait(ctx, c.Timeout)
}

// HandleMessage implements MessageHandler. Replies arrive in request
// order, so pending requests sent before the matched one lost their
// reply.
func (c *Client) HandleMessage(ctx context.Context, msg comm.Message) {
	if !RepliesTo(msg.Command) {
		select {
		case c.eventCh <- msg:
		default:
			glog.Warningf("host: event dropped: %s", msg)
		}
		return
	}
	c.reqsLock.Lock()
	head := c.reqsHead
	curr := c.reqsHead
	for ; curr != nil; curr = curr.next {
		if curr.cmd == msg.Command {
			c.reqsHead = curr.next
			if c.reqsHead == nil {
				c.reqsTail = nil
			}
			curr.next = nil
			break
		}
	}
	c.reqsLock.Unlock()
	if curr == nil {
		glog.V(1).Infof("host: unexpected reply %s", msg)
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	curr.resultCh <- Result{Payload: msg.Payload}
}

// Run wraps FIFO.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.fifo.Run(ctx)
}

// Echo sends payload and returns the echoed bytes.
func (c *Client) Echo(ctx context.Context, payload ...byte) ([]byte, error) {
	return c.Call(ctx, comm.CmdEcho, payload...)
}

// Counter queries a statistics counter.
func (c *Client) Counter(ctx context.Context, counter stats.Counter) (uint32, error) {
	data, err := c.Call(ctx, comm.CmdErrorStatus, byte(counter))
	if err != nil {
		return 0, err
	}
	if len(data) < 5 {
		return 0, ErrShortReply
	}
	if data[0] != byte(counter) {
		return 0, fmt.Errorf("counter %d: unknown to node", counter)
	}
	return binary.BigEndian.Uint32(data[1:]), nil
}

// TaskRecord is the runtime record of a node stage.
type TaskRecord struct {
	Index     byte
	RunTime   uint32
	Percent   uint32
	HighWater uint32
}

// TaskStatus queries the record of a node stage.
func (c *Client) TaskStatus(ctx context.Context, index byte) (TaskRecord, error) {
	data, err := c.Call(ctx, comm.CmdTaskStatus, index)
	if err != nil {
		return TaskRecord{}, err
	}
	if len(data) == 1 && data[0] == 0xff {
		return TaskRecord{}, ErrInvalidTask
	}
	if len(data) < 13 {
		return TaskRecord{}, ErrShortReply
	}
	return TaskRecord{
		Index:     data[0],
		RunTime:   binary.BigEndian.Uint32(data[1:]),
		Percent:   binary.BigEndian.Uint32(data[5:]),
		HighWater: binary.BigEndian.Uint32(data[9:]),
	}, nil
}

// SetLED sets an LED of an output slot.
func (c *Client) SetLED(slot, index, state byte) error {
	return c.Send(comm.CmdLEDOut, slot, index, state)
}

// SetPWM sets the backlight brightness.
func (c *Client) SetPWM(level byte) error {
	return c.Send(comm.CmdPWM, level)
}

// Display shows up to 8 decimal digits on an output slot.
func (c *Client) Display(slot byte, digits string, dot byte) error {
	payload, err := DisplayPayload(slot, digits, dot)
	if err != nil {
		return err
	}
	return c.Send(comm.CmdDisplayControl, payload...)
}

// DisplayPayload packs digits as BCD, two per byte, high nibble first.
// Missing digits are blank (0xf).
func DisplayPayload(slot byte, digits string, dot byte) ([]byte, error) {
	if len(digits) > 8 {
		return nil, fmt.Errorf("display: %d digits, at most 8", len(digits))
	}
	nibbles := [8]byte{0xf, 0xf, 0xf, 0xf, 0xf, 0xf, 0xf, 0xf}
	for i, ch := range []byte(digits) {
		switch {
		case ch >= '0' && ch <= '9':
			nibbles[i] = ch - '0'
		case ch == ' ':
		default:
			return nil, fmt.Errorf("display: invalid digit %q", ch)
		}
	}
	payload := []byte{slot, 0, 0, 0, 0, dot}
	for i := 0; i < 4; i++ {
		payload[i+1] = nibbles[i*2]<<4 | nibbles[i*2+1]
	}
	return payload, nil
}

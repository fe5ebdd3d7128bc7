package host

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

const testNode = 5

func frame(node uint16, cmd comm.Command, payload ...byte) []byte {
	pkt, err := comm.EncodePacket(node, cmd, payload, comm.DefaultLimits)
	if err != nil {
		panic(err)
	}
	return pkt.Bytes()
}

type chanReadWriter struct {
	readCh  <-chan byte
	writeCh chan byte
}

func (c *chanReadWriter) Read(p []byte) (int, error) {
	p[0] = <-c.readCh
	return 1, nil
}

func (c *chanReadWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		c.writeCh <- b
	}
	return len(p), nil
}

type clientTestEnv struct {
	t        *testing.T
	readCh   chan byte
	writeCh  chan byte
	client   *Client
	requests []*Request
}

func newClientTestEnv(t *testing.T) *clientTestEnv {
	env := &clientTestEnv{
		t:       t,
		readCh:  make(chan byte, 1),
		writeCh: make(chan byte, 1),
	}
	env.client = NewClient(NewFIFO(&chanReadWriter{readCh: env.readCh, writeCh: env.writeCh}, testNode))
	return env
}

func (e *clientTestEnv) wrapFn(name string, fn func(string)) {
	e.t.Logf("START %s", name)
	fn(name)
	e.t.Logf("STOP %s", name)
}

func (e *clientTestEnv) run(fns ...func(string)) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go e.client.Run(ctx)
	for n, fn := range fns {
		e.wrapFn(fmt.Sprintf("step-%d", n), fn)
	}
}

func (e *clientTestEnv) sequential(fns ...func(string)) func(string) {
	return func(name string) {
		for n, fn := range fns {
			e.wrapFn(name+fmt.Sprintf(".%d", n), fn)
		}
	}
}

func (e *clientTestEnv) parallel(fns ...func(string)) func(string) {
	return func(name string) {
		var wg sync.WaitGroup
		for n, fn := range fns {
			wg.Add(1)
			go func(name string, fn func(string)) {
				defer wg.Done()
				e.wrapFn(name, fn)
			}(name+fmt.Sprintf(".%d", n), fn)
		}
		wg.Wait()
	}
}

func (e *clientTestEnv) expect(bs ...byte) func(string) {
	return func(name string) {
		for i, b := range bs {
			require.Equalf(e.t, b, <-e.writeCh, "%s.byte[%d] mismatch", name, i)
		}
	}
}

func (e *clientTestEnv) inject(bs ...byte) func(string) {
	return func(name string) {
		for _, b := range bs {
			e.readCh <- b
		}
	}
}

func (e *clientTestEnv) clientDo(cmd comm.Command, payload ...byte) func(string) {
	return func(name string) {
		e.requests = append(e.requests, e.client.Do(cmd, payload...))
	}
}

func (e *clientTestEnv) nextResult(name string) (r Result) {
	require.NotEmptyf(e.t, e.requests, "%s requests empty", name)
	req := e.requests[0]
	e.requests = e.requests[1:]
	select {
	case r = <-req.ResultChan():
	case <-time.After(500 * time.Millisecond):
		e.t.Fatalf("%s: timeout", name)
	}
	return
}

func (e *clientTestEnv) clientResult(payload ...byte) func(string) {
	return func(name string) {
		r := e.nextResult(name)
		require.NoErrorf(e.t, r.Err, "%s unexpected err", name)
		if len(payload) == 0 {
			require.Emptyf(e.t, r.Payload, "%s payload not empty", name)
		} else {
			require.Equalf(e.t, payload, r.Payload, "%s payload mismatch", name)
		}
	}
}

func (e *clientTestEnv) clientResultErr(err error) func(string) {
	return func(name string) {
		r := e.nextResult(name)
		require.Equalf(e.t, err, r.Err, "%s mismatch", name)
	}
}

func (e *clientTestEnv) clientWait(timeout time.Duration, err error) func(string) {
	return func(name string) {
		require.NotEmptyf(e.t, e.requests, "%s requests empty", name)
		req := e.requests[0]
		e.requests = e.requests[1:]
		_, actual := req.Wait(context.Background(), timeout)
		require.Equalf(e.t, err, actual, "%s mismatch", name)
	}
}

func (e *clientTestEnv) clientEvent(cmd comm.Command, payload ...byte) func(string) {
	return func(name string) {
		select {
		case msg := <-e.client.EventChan():
			require.Equalf(e.t, cmd, msg.Command, "%s command mismatch", name)
			require.Equalf(e.t, payload, msg.Payload, "%s payload mismatch", name)
		case <-time.After(500 * time.Millisecond):
			e.t.Fatalf("%s timeout", name)
		}
	}
}

func TestClient(t *testing.T) {
	testCases := []struct {
		name  string
		logic func(*clientTestEnv)
	}{
		{
			"echo",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(comm.CmdEcho, 1, 0, 2),
						env.expect(frame(testNode, comm.CmdEcho, 1, 0, 2)...),
					),
					env.inject(frame(testNode, comm.CmdEcho, 1, 0, 2)...),
					env.clientResult(1, 0, 2),
				)
			},
		},
		{
			"no reply",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.sequential(
							env.clientDo(comm.CmdEcho),
							env.clientDo(comm.CmdErrorStatus, 9),
						),
						env.expect(append(frame(testNode, comm.CmdEcho), frame(testNode, comm.CmdErrorStatus, 9)...)...),
					),
					env.inject(frame(testNode, comm.CmdErrorStatus, 9, 0, 0, 0, 1)...),
					env.clientResultErr(ErrNoReply),
					env.clientResult(9, 0, 0, 0, 1),
				)
			},
		},
		{
			"lost reply",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(comm.CmdEcho, 1),
						env.expect(frame(testNode, comm.CmdEcho, 1)...),
					),
					env.clientWait(20*time.Millisecond, ErrTimeout),
					env.parallel(
						env.clientDo(comm.CmdEcho, 2),
						env.expect(frame(testNode, comm.CmdEcho, 2)...),
					),
					env.inject(frame(testNode, comm.CmdEcho, 2)...),
					env.clientResult(2),
					func(name string) {
						env.client.reqsLock.Lock()
						defer env.client.reqsLock.Unlock()
						require.Nilf(env.t, env.client.reqsHead, "%s pending requests left", name)
						require.Nilf(env.t, env.client.reqsTail, "%s pending tail left", name)
					},
				)
			},
		},
		{
			"command without reply",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(comm.CmdLEDOut, 1, 2, 3),
						env.expect(frame(testNode, comm.CmdLEDOut, 1, 2, 3)...),
					),
					env.clientResult(),
				)
			},
		},
		{
			"event",
			func(env *clientTestEnv) {
				env.run(
					env.inject(frame(testNode, comm.CmdKey, 0x23)...),
					env.clientEvent(comm.CmdKey, 0x23),
				)
			},
		},
		{
			"event and command",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(comm.CmdEcho, 7),
						env.expect(frame(testNode, comm.CmdEcho, 7)...),
					),
					env.inject(frame(testNode, comm.CmdRotary, 0x10, 1)...),
					env.clientEvent(comm.CmdRotary, 0x10, 1),
					env.inject(frame(testNode, comm.CmdEcho, 7)...),
					env.clientResult(7),
				)
			},
		},
		{
			"corrupted frames skipped",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(comm.CmdEcho, 7),
						env.expect(frame(testNode, comm.CmdEcho, 7)...),
					),
					env.inject(0x05, 0x11, 0x00),
					env.inject(frame(testNode+1, comm.CmdEcho, 7)...),
					env.inject(frame(testNode, comm.CmdEcho, 7)...),
					env.clientResult(7),
					func(name string) {
						reg := env.client.FIFO().Stats
						require.Equal(env.t, uint32(1), reg.Get(stats.MsgMalformed))
						require.Equal(env.t, uint32(1), reg.Get(stats.WrongNode))
					},
				)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newClientTestEnv(t)
			tc.logic(env)
		})
	}
}

func TestRequestWaitTimeout(t *testing.T) {
	req := &Request{cmd: comm.CmdEcho, resultCh: make(chan Result, 1)}
	_, err := req.Wait(context.Background(), time.Millisecond)
	require.Equal(t, ErrTimeout, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = req.Wait(ctx, time.Second)
	require.Equal(t, context.Canceled, err)
}

func TestDisplayPayload(t *testing.T) {
	testCases := []struct {
		name   string
		digits string
		dot    byte
		expect []byte
		err    bool
	}{
		{"full", "12345678", 2, []byte{3, 0x12, 0x34, 0x56, 0x78, 2}, false},
		{"short", "42", 0, []byte{3, 0x42, 0xff, 0xff, 0xff, 0}, false},
		{"blank", "1 3", 0, []byte{3, 0x1f, 0x3f, 0xff, 0xff, 0}, false},
		{"too long", "123456789", 0, nil, true},
		{"letter", "1a", 0, nil, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := DisplayPayload(3, tc.digits, tc.dot)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, payload)
		})
	}
}

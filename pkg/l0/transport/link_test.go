package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRing(t *testing.T) {
	r := NewRing(4)
	require.Equal(t, 4, r.Free())
	require.Equal(t, 3, r.Write([]byte{1, 2, 3}))
	buf := make([]byte, 2)
	require.Equal(t, 2, r.Read(buf))
	require.Equal(t, []byte{1, 2}, buf)
	require.Equal(t, 3, r.Write([]byte{4, 5, 6, 7}))
	require.Equal(t, 0, r.Free())
	out := make([]byte, 8)
	require.Equal(t, 4, r.Read(out))
	require.Equal(t, []byte{3, 4, 5, 6}, out[:4])
	require.Zero(t, r.Len())
	r.Write([]byte{1})
	r.Reset()
	require.Zero(t, r.Read(out))
}

func TestLinkNotReady(t *testing.T) {
	l := NewLink(8)
	require.False(t, l.Ready())
	require.Zero(t, l.WriteAvailable())
	_, err := l.Write([]byte{1})
	require.Equal(t, ErrNotReady, err)
	require.Equal(t, ErrNotReady, l.Flush())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, l.Service(ctx))
}

func TestLinkClosed(t *testing.T) {
	l := NewLink(8)
	host, dev := net.Pipe()
	defer host.Close()
	l.Attach(dev)
	require.True(t, l.Ready())

	done := make(chan error, 1)
	go func() { done <- l.Service(context.Background()) }()
	require.NoError(t, l.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service not stopped")
	}

	require.False(t, l.Ready())
	_, err := l.Write([]byte{1})
	require.Equal(t, ErrClosed, err)
	require.Equal(t, ErrClosed, l.Flush())
	require.Equal(t, ErrClosed, l.Service(context.Background()))

	a, b := net.Pipe()
	defer b.Close()
	l.Attach(a)
	require.False(t, l.Ready())
	_, err = a.Write([]byte{1})
	require.Equal(t, io.ErrClosedPipe, err)
}

func TestLinkInjectOverrun(t *testing.T) {
	l := NewLink(4)
	require.Equal(t, 4, l.Inject([]byte{1, 2, 3, 4, 5, 6}))
	require.Equal(t, uint64(2), l.Overruns())
	require.Equal(t, 4, l.Pending())
	buf := make([]byte, 8)
	n, err := l.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, buf[:n])
	n, err = l.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLinkStream(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()
	l := NewLink(32)
	l.Attach(dev)
	require.True(t, l.Ready())
	require.Equal(t, 32, l.WriteAvailable())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Service(ctx) }()

	_, err := host.Write([]byte{1, 2, 3, 0})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Pending() == 4 }, time.Second, time.Millisecond)

	n, err := l.Write([]byte{9, 8, 7})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	flushed := make(chan error, 1)
	go func() { flushed <- l.Flush() }()
	buf := make([]byte, 3)
	_, err = io.ReadFull(host, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, buf)
	require.NoError(t, <-flushed)

	host.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("service not stopped")
	}
	require.False(t, l.Ready())
}

func TestLinkReattach(t *testing.T) {
	_, dev1 := net.Pipe()
	host2, dev2 := net.Pipe()
	defer host2.Close()
	l := NewLink(32)
	l.Attach(dev1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		for ctx.Err() == nil {
			l.Service(ctx)
		}
		done <- nil
	}()

	l.Attach(dev2)
	_, err := host2.Write([]byte{5})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Pending() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done
	require.NoError(t, l.Close())
	require.False(t, l.Ready())
}

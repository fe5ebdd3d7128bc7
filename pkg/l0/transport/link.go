package transport

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/framework"
)

// DefaultBufferSize is the default size of Link buffers.
const DefaultBufferSize = 256

const readChunk = 64

// Link adapts a blocking byte stream to Transport. The stream is
// attached when the host connects and may be replaced at any time.
type Link struct {
	rx *Ring
	tx *Ring

	lock     sync.Mutex
	stream   io.ReadWriteCloser
	attachCh chan struct{}

	writeLock sync.Mutex
	overruns  atomic.Uint64
	closed    atomic.Bool
}

// NewLink creates a Link with rx/tx buffers of bufSize bytes.
func NewLink(bufSize int) *Link {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Link{
		rx:       NewRing(bufSize),
		tx:       NewRing(bufSize),
		attachCh: make(chan struct{}, 1),
	}
}

// Attach connects a stream, closing the previous one. A closed Link
// closes s right away.
func (l *Link) Attach(s io.ReadWriteCloser) {
	if l.closed.Load() {
		s.Close()
		return
	}
	l.lock.Lock()
	prev := l.stream
	l.stream = s
	l.lock.Unlock()
	if prev != nil {
		prev.Close()
	}
	l.tx.Reset()
	l.wake()
	glog.V(1).Info("link attached")
}

func (l *Link) wake() {
	select {
	case l.attachCh <- struct{}{}:
	default:
	}
}

// Detach disconnects the current stream.
func (l *Link) Detach() {
	l.detach(nil)
}

func (l *Link) detach(s io.ReadWriteCloser) {
	l.lock.Lock()
	cur := l.stream
	if cur == nil || (s != nil && cur != s) {
		l.lock.Unlock()
		return
	}
	l.stream = nil
	l.lock.Unlock()
	cur.Close()
	l.tx.Reset()
	glog.V(1).Info("link detached")
}

func (l *Link) current() io.ReadWriteCloser {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.stream
}

// Ready implements Transport.
func (l *Link) Ready() bool {
	return l.current() != nil
}

// Read implements Transport.
func (l *Link) Read(p []byte) (int, error) {
	return l.rx.Read(p), nil
}

// WriteAvailable implements Transport.
func (l *Link) WriteAvailable() int {
	if !l.Ready() {
		return 0
	}
	return l.tx.Free()
}

// Write implements Transport.
func (l *Link) Write(p []byte) (int, error) {
	if l.closed.Load() {
		return 0, ErrClosed
	}
	if !l.Ready() {
		return 0, ErrNotReady
	}
	return l.tx.Write(p), nil
}

// Flush implements Transport.
func (l *Link) Flush() error {
	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	if l.closed.Load() {
		l.tx.Reset()
		return ErrClosed
	}
	s := l.current()
	if s == nil {
		l.tx.Reset()
		return ErrNotReady
	}
	var buf [readChunk]byte
	for {
		n := l.tx.Read(buf[:])
		if n == 0 {
			return nil
		}
		if _, err := s.Write(buf[:n]); err != nil {
			l.detach(s)
			return err
		}
	}
}

// Inject adds bytes to the receive buffer as if they arrived from the
// stream. Bytes which don't fit are dropped and counted as overruns.
func (l *Link) Inject(p []byte) int {
	n := l.rx.Write(p)
	if n < len(p) {
		l.overruns.Add(uint64(len(p) - n))
	}
	return n
}

// Pending returns the number of received bytes not read yet.
func (l *Link) Pending() int {
	return l.rx.Len()
}

// Overruns returns the number of received bytes dropped.
func (l *Link) Overruns() uint64 {
	return l.overruns.Load()
}

// Service implements Servicer. It waits for a stream and reads from it
// until the stream fails or ctx is done. It returns ErrClosed once the
// Link is closed.
func (l *Link) Service(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	s := l.current()
	for s == nil {
		select {
		case <-l.attachCh:
			if l.closed.Load() {
				return ErrClosed
			}
			s = l.current()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	err := framework.RunWithContextCancel(ctx, func() { s.Close() }, func() error {
		buf := make([]byte, readChunk)
		for {
			n, err := s.Read(buf)
			if n > 0 {
				l.Inject(buf[:n])
			}
			if err != nil {
				return err
			}
		}
	})
	l.detach(s)
	if err == io.EOF {
		return nil
	}
	return err
}

// Close detaches the stream and stops accepting new ones.
func (l *Link) Close() error {
	l.closed.Store(true)
	l.Detach()
	l.wake()
	return nil
}

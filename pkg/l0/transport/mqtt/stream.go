package mqtt

import (
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
)

// Topic names under a node.
const (
	TopicRx    = "rx"
	TopicTx    = "tx"
	TopicStats = "stats"
)

// NodeTopic returns the topic of a node.
func NodeTopic(node uint16, name string) string {
	return fmt.Sprintf("%d/%s", node, name)
}

// Stream is a byte stream over a pair of topics. Bytes published to the
// sub topic are read from the Stream, writes are published to the pub
// topic.
type Stream struct {
	conn     *Conn
	pubTopic string
	sub      *Subscription

	dataCh  chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

// NewStream subscribes subTopic and creates the Stream.
func NewStream(c *Conn, subTopic, pubTopic string) *Stream {
	s := &Stream{
		conn:     c,
		pubTopic: pubTopic,
		dataCh:   make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
	s.sub = c.Sub(subTopic, s.handleMsg)
	return s
}

// DeviceStream is the panel end: reads <node>/rx, writes <node>/tx.
func DeviceStream(c *Conn, node uint16) *Stream {
	return NewStream(c, NodeTopic(node, TopicRx), NodeTopic(node, TopicTx))
}

// HostStream is the host end: reads <node>/tx, writes <node>/rx.
func HostStream(c *Conn, node uint16) *Stream {
	return NewStream(c, NodeTopic(node, TopicTx), NodeTopic(node, TopicRx))
}

func (s *Stream) handleMsg(topic string, payload []byte) {
	data := append([]byte(nil), payload...)
	select {
	case s.dataCh <- data:
	case <-s.closed:
	default:
		glog.Warningf("mqtt: %s backlog full, %d bytes dropped", topic, len(data))
	}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case data := <-s.dataCh:
			s.pending = data
		case <-s.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	token := s.conn.Pub(s.pubTopic, append([]byte(nil), p...))
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (s *Stream) Close() (err error) {
	s.once.Do(func() {
		close(s.closed)
		err = s.sub.Close()
	})
	return
}

package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/l0/transport/mqtt"
)

// DefaultInterval is the default publish interval.
const DefaultInterval = 5 * time.Second

// ErrPublishTimeout is returned when the broker does not acknowledge
// a publish in time.
var ErrPublishTimeout = errors.New("publish timeout")

// Sink receives encoded snapshots.
type Sink interface {
	Publish(topic string, payload []byte) error
}

// MQTTSink publishes to a broker connection.
type MQTTSink struct {
	Conn    *mqtt.Conn
	QoS     byte
	Retain  bool
	Timeout time.Duration
}

// Publish implements Sink.
func (s *MQTTSink) Publish(topic string, payload []byte) error {
	token := s.Conn.PubWith(topic, payload, s.QoS, s.Retain)
	if s.Timeout > 0 {
		if !token.WaitTimeout(s.Timeout) {
			return ErrPublishTimeout
		}
	} else {
		token.Wait()
	}
	return token.Error()
}

// Publisher periodically publishes snapshots of a Source.
type Publisher struct {
	Source   *Source
	Sink     Sink
	Topic    string
	Interval time.Duration
}

// NewPublisher creates a Publisher on the stats topic of the node.
func NewPublisher(src *Source, sink Sink) *Publisher {
	return &Publisher{
		Source:   src,
		Sink:     sink,
		Topic:    mqtt.NodeTopic(src.Node, mqtt.TopicStats),
		Interval: DefaultInterval,
	}
}

// PublishOnce publishes the current snapshot.
func (p *Publisher) PublishOnce() error {
	data, err := Marshal(p.Source.Snapshot())
	if err != nil {
		return err
	}
	return p.Sink.Publish(p.Topic, data)
}

// Run publishes until ctx is done. Failures are logged and retried on
// the next tick.
func (p *Publisher) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.PublishOnce(); err != nil {
				glog.Warningf("telemetry: publish %s: %v", p.Topic, err)
			}
		}
	}
}

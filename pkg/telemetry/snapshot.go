// Package telemetry exports the statistics registry and stage metrics
// of a running node, as periodic protobuf snapshots and as a
// prometheus collector.
package telemetry

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// Source provides the data of a node.
type Source struct {
	Node    uint16
	Stats   *stats.Registry
	Metrics *framework.Metrics
}

// Snapshot captures the current state. Stages include the idle record.
func (s *Source) Snapshot() *Snapshot {
	reg := s.Stats.Snapshot()
	m := &Snapshot{
		Node:       uint32(s.Node),
		ErrorState: reg.ErrorState,
		ErrorType:  uint32(reg.ErrorType),
	}
	for i, v := range reg.Counters {
		m.Counters = append(m.Counters, &Counter{
			Index: uint32(i),
			Name:  stats.Counter(i).String(),
			Value: v,
		})
	}
	if s.Metrics == nil {
		return m
	}
	m.UptimeMs = s.Metrics.Uptime().Milliseconds()
	for i := 0; ; i++ {
		rec, ok := s.Metrics.Record(i)
		if !ok {
			break
		}
		m.Stages = append(m.Stages, &Stage{
			Index:      uint32(i),
			Name:       rec.Name,
			Idle:       rec.Idle,
			RunTimeUs:  rec.RunTime,
			Percent:    rec.Percent,
			HighWater:  rec.HighWater,
			Iterations: rec.Iterations,
		})
	}
	return m
}

// Marshal encodes a Snapshot.
func Marshal(m *Snapshot) ([]byte, error) {
	return proto.Marshal(m)
}

// Unmarshal decodes a Snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	m := &Snapshot{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

package telemetry

import (
	"github.com/golang/protobuf/proto"
)

// Snapshot is the published telemetry of one node.
type Snapshot struct {
	Node       uint32     `protobuf:"varint,1,opt,name=node,proto3" json:"node,omitempty"`
	UptimeMs   int64      `protobuf:"varint,2,opt,name=uptime_ms,proto3" json:"uptime_ms,omitempty"`
	ErrorState bool       `protobuf:"varint,3,opt,name=error_state,proto3" json:"error_state,omitempty"`
	ErrorType  uint32     `protobuf:"varint,4,opt,name=error_type,proto3" json:"error_type,omitempty"`
	Counters   []*Counter `protobuf:"bytes,5,rep,name=counters,proto3" json:"counters,omitempty"`
	Stages     []*Stage   `protobuf:"bytes,6,rep,name=stages,proto3" json:"stages,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Snapshot) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Snapshot) Reset() { *m = Snapshot{} }

// String implements proto.Message.
func (m *Snapshot) String() string { return proto.CompactTextString(m) }

// Counter is one statistics counter.
type Counter struct {
	Index uint32 `protobuf:"varint,1,opt,name=index,proto3" json:"index,omitempty"`
	Name  string `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Value uint32 `protobuf:"varint,3,opt,name=value,proto3" json:"value,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Counter) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Counter) Reset() { *m = Counter{} }

// String implements proto.Message.
func (m *Counter) String() string { return proto.CompactTextString(m) }

// Stage is the runtime record of a pipeline stage.
type Stage struct {
	Index      uint32 `protobuf:"varint,1,opt,name=index,proto3" json:"index,omitempty"`
	Name       string `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Idle       bool   `protobuf:"varint,3,opt,name=idle,proto3" json:"idle,omitempty"`
	RunTimeUs  uint32 `protobuf:"varint,4,opt,name=run_time_us,proto3" json:"run_time_us,omitempty"`
	Percent    uint32 `protobuf:"varint,5,opt,name=percent,proto3" json:"percent,omitempty"`
	HighWater  uint32 `protobuf:"varint,6,opt,name=high_water,proto3" json:"high_water,omitempty"`
	Iterations uint64 `protobuf:"varint,7,opt,name=iterations,proto3" json:"iterations,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Stage) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Stage) Reset() { *m = Stage{} }

// String implements proto.Message.
func (m *Stage) String() string { return proto.CompactTextString(m) }

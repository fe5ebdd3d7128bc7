package pipeline

import (
	"time"

	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/l0/comm"
)

// Stage names in registration order. The order is the task index
// reported by the TaskStatus command.
const (
	StagePump        = "pump"
	StageReceiver    = "receiver"
	StageDecoder     = "decoder"
	StageFormatter   = "formatter"
	StageTransmitter = "transmitter"
	StageStatus      = "status"
)

// StageNames lists all stages in order.
var StageNames = []string{
	StagePump,
	StageReceiver,
	StageDecoder,
	StageFormatter,
	StageTransmitter,
	StageStatus,
}

var stagePriorities = map[string]int{
	StagePump:        framework.PrLvTransport,
	StageReceiver:    framework.PrLvTransport,
	StageDecoder:     framework.PrLvDecode,
	StageFormatter:   framework.PrLvProcess,
	StageTransmitter: framework.PrLvProcess,
	StageStatus:      framework.PrLvStatus,
}

// StatusTiming controls the status indicator.
type StatusTiming struct {
	BlinkOn  time.Duration
	BlinkOff time.Duration
	Pause    time.Duration
	Poll     time.Duration
}

// Options configures a Pipeline.
type Options struct {
	Node   uint16
	Limits comm.Limits

	ByteQueueSize   int
	EventQueueSize  int
	PacketQueueSize int

	ByteSendTimeout   time.Duration
	EventSendTimeout  time.Duration
	PacketSendTimeout time.Duration
	ReadyPoll         time.Duration
	Yield             time.Duration

	// Affinity maps stage names to CPUs. Missing stages are unpinned.
	Affinity map[string]int

	Status StatusTiming
}

// DefaultOptions returns the firmware defaults.
func DefaultOptions() Options {
	return Options{
		Limits:            comm.DefaultLimits,
		ByteQueueSize:     64,
		EventQueueSize:    16,
		PacketQueueSize:   8,
		ByteSendTimeout:   5 * time.Millisecond,
		EventSendTimeout:  5 * time.Millisecond,
		PacketSendTimeout: time.Millisecond,
		ReadyPoll:         5 * time.Millisecond,
		Yield:             time.Millisecond,
		Status: StatusTiming{
			BlinkOn:  150 * time.Millisecond,
			BlinkOff: 150 * time.Millisecond,
			Pause:    2 * time.Second,
			Poll:     100 * time.Millisecond,
		},
	}
}

func (o *Options) cpu(stage string) int {
	if cpu, ok := o.Affinity[stage]; ok {
		return cpu
	}
	return framework.NoAffinity
}

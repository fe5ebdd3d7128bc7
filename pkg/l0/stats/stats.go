// Package stats keeps the process wide fault and traffic counters.
//
// A Registry is created once at start-up and handed to every stage.
// All mutations are single atomic operations, so stages running on
// different cores may update it concurrently.
package stats

import (
	"fmt"
	"sync/atomic"
)

// Counter indexes a statistics counter. The numbering is visible on the
// wire through the counter query command and must stay stable.
type Counter int

// Counters.
const (
	QueueSend Counter = iota
	QueueReceive
	TransmitQueueSend
	DisplayOut
	LEDOut
	Watchdog
	MsgMalformed
	CobsDecode
	ReceiveBufferOverflow
	Checksum
	BufferOverflow
	UnknownCmd
	BytesSent
	BytesReceived
	LockTimeout
	WrongNode
	OutputControllerID
	OutputDriver

	// NumCounters is the size of the counter table.
	NumCounters
)

var counterNames = [NumCounters]string{
	QueueSend:             "queue_send_error",
	QueueReceive:          "queue_receive_error",
	TransmitQueueSend:     "transmit_queue_send_error",
	DisplayOut:            "display_out_error",
	LEDOut:                "led_out_error",
	Watchdog:              "watchdog_error",
	MsgMalformed:          "msg_malformed_error",
	CobsDecode:            "cobs_decode_error",
	ReceiveBufferOverflow: "receive_buffer_overflow_error",
	Checksum:              "checksum_error",
	BufferOverflow:        "buffer_overflow_error",
	UnknownCmd:            "unknown_cmd_error",
	BytesSent:             "bytes_sent",
	BytesReceived:         "bytes_received",
	LockTimeout:           "lock_timeout_error",
	WrongNode:             "wrong_node_error",
	OutputControllerID:    "output_controller_id_error",
	OutputDriver:          "output_driver_error",
}

// IsValid checks the counter is inside the table.
func (c Counter) IsValid() bool {
	return c >= 0 && c < NumCounters
}

// String implements fmt.Stringer.
func (c Counter) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("counter(%d)", int(c))
	}
	return counterNames[c]
}

// IsTraffic tells byte counters apart from fault counters.
func (c Counter) IsTraffic() bool {
	return c == BytesSent || c == BytesReceived
}

// ErrorType is the kind of the current fatal error, if any.
type ErrorType uint32

// Error types. The value is also the blink count of the status indicator.
const (
	ErrorNone ErrorType = iota
	ErrorWatchdogTimeout
	ErrorStageStart
	ErrorPanic
	ErrorSchedulerFailed
	ErrorResourceAllocation
)

var errorTypeNames = [...]string{
	ErrorNone:               "none",
	ErrorWatchdogTimeout:    "watchdog-timeout",
	ErrorStageStart:         "stage-start",
	ErrorPanic:              "panic",
	ErrorSchedulerFailed:    "scheduler-failed",
	ErrorResourceAllocation: "resource-allocation",
}

// String implements fmt.Stringer.
func (t ErrorType) String() string {
	if int(t) < len(errorTypeNames) {
		return errorTypeNames[t]
	}
	return fmt.Sprintf("error(%d)", uint32(t))
}

// errorFlag marks the error state inside the packed error word.
const errorFlag uint32 = 1 << 31

// Registry holds the counters. All methods are safe on a nil Registry,
// which discards updates and reads zeros.
type Registry struct {
	counters [NumCounters]atomic.Uint32
	// state flag and ErrorType packed so both change together.
	errorWord atomic.Uint32
}

// Snapshot is a point-in-time copy of a Registry.
type Snapshot struct {
	Counters   [NumCounters]uint32
	ErrorState bool
	ErrorType  ErrorType
}

// NewRegistry creates a zeroed Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Inc increments a counter by one.
func (r *Registry) Inc(c Counter) {
	r.Add(c, 1)
}

// Add adds v to a counter. Counters wrap around like their
// 32-bit firmware counterparts.
func (r *Registry) Add(c Counter, v uint32) {
	if r == nil || !c.IsValid() {
		return
	}
	r.counters[c].Add(v)
}

// Set overwrites a counter.
func (r *Registry) Set(c Counter, v uint32) {
	if r == nil || !c.IsValid() {
		return
	}
	r.counters[c].Store(v)
}

// Get reads a counter.
func (r *Registry) Get(c Counter) uint32 {
	if r == nil || !c.IsValid() {
		return 0
	}
	return r.counters[c].Load()
}

// Lookup reads a counter by its wire index.
func (r *Registry) Lookup(index int) (uint32, bool) {
	c := Counter(index)
	if !c.IsValid() {
		return 0, false
	}
	return r.Get(c), true
}

// Reset zeroes all counters. The error state is untouched.
func (r *Registry) Reset() {
	if r == nil {
		return
	}
	for i := range r.counters {
		r.counters[i].Store(0)
	}
}

// SetError enters the error state with the given type.
func (r *Registry) SetError(t ErrorType) {
	if r == nil {
		return
	}
	r.errorWord.Store(uint32(t)&^errorFlag | errorFlag)
}

// ClearError leaves the error state.
func (r *Registry) ClearError() {
	if r == nil {
		return
	}
	r.errorWord.Store(0)
}

// ErrorState reports whether the error state is set and its type.
func (r *Registry) ErrorState() (bool, ErrorType) {
	if r == nil {
		return false, ErrorNone
	}
	w := r.errorWord.Load()
	return w&errorFlag != 0, ErrorType(w &^ errorFlag)
}

// Snapshot copies the registry. Counters are read one by one, so the
// copy is not a consistent cut across concurrent updates.
func (r *Registry) Snapshot() (s Snapshot) {
	if r == nil {
		return
	}
	for i := range r.counters {
		s.Counters[i] = r.counters[i].Load()
	}
	s.ErrorState, s.ErrorType = r.ErrorState()
	return
}

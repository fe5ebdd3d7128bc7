package comm

import (
	"errors"

	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// ProtocolError is a protocol level fault. Counter names the statistics
// counter the fault is accounted to.
type ProtocolError struct {
	Counter stats.Counter
	Reason  string
}

// Error implements error.
func (e *ProtocolError) Error() string {
	return e.Reason
}

var (
	// ErrMalformed indicates the message length doesn't match its header.
	ErrMalformed = &ProtocolError{Counter: stats.MsgMalformed, Reason: "malformed message"}
	// ErrPayloadOverflow indicates the declared payload length exceeds the limit.
	ErrPayloadOverflow = &ProtocolError{Counter: stats.BufferOverflow, Reason: "payload length overflow"}
	// ErrChecksum indicates the checksum doesn't match.
	ErrChecksum = &ProtocolError{Counter: stats.Checksum, Reason: "checksum mismatch"}
	// ErrWrongNode indicates the message is addressed to another node.
	ErrWrongNode = &ProtocolError{Counter: stats.WrongNode, Reason: "addressed to another node"}
	// ErrPayloadTooLarge indicates an outbound payload exceeds the limit.
	ErrPayloadTooLarge = &ProtocolError{Counter: stats.BufferOverflow, Reason: "payload too large"}
	// ErrPacketTooLarge indicates an encoded message doesn't fit a Packet.
	ErrPacketTooLarge = &ProtocolError{Counter: stats.BufferOverflow, Reason: "packet too large"}
	// ErrInvalidNode indicates a node id wider than 11 bits.
	ErrInvalidNode = errors.New("invalid node id")
)

// CounterOf returns the counter an error is accounted to.
// Errors other than ProtocolError count as malformed messages.
func CounterOf(err error) stats.Counter {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr.Counter
	}
	return stats.MsgMalformed
}

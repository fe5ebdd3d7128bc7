package comm

import (
	"fmt"

	"github.com/robotalks/panel.go/pkg/cobs"
)

// Wire layout constants.
const (
	// HeaderSize is the size of node/command/length header.
	HeaderSize = 3
	// ChecksumSize is the size of the trailing checksum.
	ChecksumSize = 1
	// Overhead is the number of non-payload bytes in a message.
	Overhead = HeaderSize + ChecksumSize
	// Marker terminates every encoded frame.
	Marker byte = 0x00
	// MaxNodeID is the largest 11-bit node identity.
	MaxNodeID = 0x7ff
)

// Message is a decoded, checksum validated message.
type Message struct {
	Node    uint16
	Command Command
	Payload []byte
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return fmt.Sprintf("node=%d cmd=%s payload=% x", m.Node, m.Command, m.Payload)
}

// Bytes returns the raw message layout before stuffing.
func (m Message) Bytes() []byte {
	b := make([]byte, len(m.Payload)+Overhead)
	n := m.put(b)
	return b[:n]
}

func (m Message) put(b []byte) int {
	node := m.Node << 5
	b[0] = byte(node >> 8)
	b[1] = byte(node&0xe0) | byte(m.Command&CommandMask)
	b[2] = byte(len(m.Payload))
	n := HeaderSize + copy(b[HeaderSize:], m.Payload)
	b[n] = Checksum(b[:n])
	return n + ChecksumSize
}

// Checksum calculates the XOR of all bytes.
func Checksum(b []byte) (sum byte) {
	for _, v := range b {
		sum ^= v
	}
	return
}

// ParseMessage validates raw message bytes without checking the
// destination node. The returned payload aliases raw.
func ParseMessage(raw []byte, maxPayload int) (msg Message, err error) {
	if len(raw) < Overhead {
		return msg, ErrMalformed
	}
	l := int(raw[2])
	if len(raw) != l+Overhead {
		return msg, ErrMalformed
	}
	if l > maxPayload {
		return msg, ErrPayloadOverflow
	}
	end := HeaderSize + l
	if Checksum(raw[:end]) != raw[end] {
		return msg, ErrChecksum
	}
	msg.Node = uint16(raw[0])<<3 | uint16(raw[1]>>5)
	msg.Command = Command(raw[1] & CommandMask)
	msg.Payload = raw[HeaderSize:end]
	return
}

// Limits bounds the sizes handled by an Endpoint.
type Limits struct {
	// MaxPayload is the maximum payload length.
	MaxPayload int
	// MaxFrame is the maximum length of an encoded frame including marker.
	MaxFrame int
}

// DefaultLimits are the limits of the panel firmware.
var DefaultLimits = Limits{MaxPayload: 10, MaxFrame: 16}

// FrameFor returns the worst case encoded frame size for payload size n.
func FrameFor(n int) int {
	return cobs.MaxEncodedLen(n+Overhead) + 1
}

// Validate checks the limits are consistent.
func (l Limits) Validate() error {
	if l.MaxPayload < 0 || l.MaxPayload > 0xff {
		return fmt.Errorf("max payload %d out of range", l.MaxPayload)
	}
	if l.MaxFrame < FrameFor(l.MaxPayload) {
		return fmt.Errorf("max frame %d can't hold payload of %d bytes", l.MaxFrame, l.MaxPayload)
	}
	if l.MaxFrame > PacketCapacity {
		return fmt.Errorf("max frame %d exceeds packet capacity %d", l.MaxFrame, PacketCapacity)
	}
	return nil
}

// Endpoint is one side of the link identified by node.
type Endpoint struct {
	Node   uint16
	Limits Limits
}

// NewEndpoint creates an Endpoint with DefaultLimits.
func NewEndpoint(node uint16) *Endpoint {
	return &Endpoint{Node: node & MaxNodeID, Limits: DefaultLimits}
}

// Decode validates raw bytes and checks the message is addressed to
// this endpoint.
func (e *Endpoint) Decode(raw []byte) (Message, error) {
	msg, err := ParseMessage(raw, e.Limits.MaxPayload)
	if err == nil && msg.Node != e.Node {
		err = ErrWrongNode
	}
	return msg, err
}

// Encode builds a wire ready packet from this endpoint.
func (e *Endpoint) Encode(cmd Command, payload []byte) (Packet, error) {
	return EncodePacket(e.Node, cmd, payload, e.Limits)
}

// DecodeMessage decodes raw bytes addressed to node using DefaultLimits.
func DecodeMessage(raw []byte, node uint16) (Message, error) {
	return (&Endpoint{Node: node, Limits: DefaultLimits}).Decode(raw)
}

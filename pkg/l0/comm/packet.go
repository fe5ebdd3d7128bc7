package comm

import (
	"io"

	"github.com/robotalks/panel.go/pkg/cobs"
)

// PacketCapacity is the storage size of a Packet.
const PacketCapacity = 64

// Packet is an encoded message including the trailing marker.
// It is a value type and is passed through queues by copy.
type Packet struct {
	Len  uint8
	Data [PacketCapacity]byte
}

// EncodePacket encodes a message into a wire ready packet.
// Oversized input is rejected, never truncated.
func EncodePacket(node uint16, cmd Command, payload []byte, lim Limits) (pkt Packet, err error) {
	if node > MaxNodeID {
		return pkt, ErrInvalidNode
	}
	if len(payload) > lim.MaxPayload || len(payload) > 0xff {
		return pkt, ErrPayloadTooLarge
	}
	if frame := FrameFor(len(payload)); frame > lim.MaxFrame || frame > PacketCapacity {
		return pkt, ErrPacketTooLarge
	}
	var raw [PacketCapacity]byte
	n := Message{Node: node, Command: cmd, Payload: payload}.put(raw[:])
	enc, err := cobs.Encode(pkt.Data[:PacketCapacity-1], raw[:n])
	if err != nil {
		return pkt, ErrPacketTooLarge
	}
	pkt.Data[enc] = Marker
	pkt.Len = uint8(enc + 1)
	return
}

// Bytes returns the wire bytes.
func (p *Packet) Bytes() []byte {
	return p.Data[:p.Len]
}

// WriteTo writes the wire bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

package comm

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/cobs"
)

func TestEncodePacket(t *testing.T) {
	testCases := []struct {
		name    string
		node    uint16
		cmd     Command
		payload []byte
		expect  []byte
	}{
		{"short payload", 5, 3, []byte{1, 2, 3}, []byte{0x01, 0x07, 0xa3, 0x03, 0x01, 0x02, 0x03, 0xa0, 0x00}},
		{"empty payload", 0, CmdEcho, nil, []byte{0x01, 0x02, 0x14, 0x02, 0x14, 0x00}},
		{"zero payload", 1, 1, []byte{0, 0, 0}, []byte{0x01, 0x03, 0x21, 0x03, 0x01, 0x01, 0x02, 0x22, 0x00}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pkt, err := EncodePacket(tc.node, tc.cmd, tc.payload, DefaultLimits)
			require.NoError(t, err)
			require.Equal(t, tc.expect, pkt.Bytes())
			var buf bytes.Buffer
			n, err := pkt.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, int64(len(tc.expect)), n)
			require.Equal(t, tc.expect, buf.Bytes())
		})
	}
}

func TestEncodePacketLimits(t *testing.T) {
	pkt, err := EncodePacket(1, CmdEcho, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, DefaultLimits)
	require.NoError(t, err)
	require.Equal(t, uint8(16), pkt.Len)

	_, err = EncodePacket(1, CmdEcho, make([]byte, 11), DefaultLimits)
	require.Equal(t, ErrPayloadTooLarge, err)

	_, err = EncodePacket(1, CmdEcho, make([]byte, 10), Limits{MaxPayload: 10, MaxFrame: 15})
	require.Equal(t, ErrPacketTooLarge, err)

	_, err = EncodePacket(MaxNodeID+1, CmdEcho, nil, DefaultLimits)
	require.Equal(t, ErrInvalidNode, err)
}

func TestPacketRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	lim := Limits{MaxPayload: 58, MaxFrame: PacketCapacity}
	e := &Endpoint{Node: 0x2aa, Limits: lim}
	for i := 0; i < 500; i++ {
		payload := make([]byte, rnd.Intn(lim.MaxPayload+1))
		for j := range payload {
			if rnd.Intn(3) > 0 {
				payload[j] = byte(rnd.Intn(256))
			}
		}
		cmd := Command(rnd.Intn(32))
		pkt, err := e.Encode(cmd, payload)
		require.NoError(t, err)
		wire := pkt.Bytes()
		require.Equal(t, Marker, wire[len(wire)-1])
		require.NotContains(t, string(wire[:len(wire)-1]), "\x00")

		raw := make([]byte, PacketCapacity)
		n, err := cobs.Decode(raw, wire[:len(wire)-1])
		require.NoError(t, err)
		msg, err := e.Decode(raw[:n])
		require.NoError(t, err)
		require.Equal(t, cmd, msg.Command)
		require.Equal(t, payload, append([]byte{}, msg.Payload...))
	}
}

func TestNewEvent(t *testing.T) {
	src := []byte{1, 2}
	ev := NewEvent(CmdEcho, src...)
	src[0] = 9
	require.Equal(t, Event{Command: CmdEcho, Payload: []byte{1, 2}}, ev)
}

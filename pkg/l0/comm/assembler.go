package comm

import (
	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/cobs"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// Assembler accumulates received bytes into frames delimited by Marker
// and returns the unstuffed message bytes of each complete frame.
type Assembler struct {
	buf     []byte
	cursor  int
	decoded []byte
	discard bool
	stats   *stats.Registry
}

// NewAssembler creates an Assembler for frames up to maxFrame bytes
// including the marker.
func NewAssembler(maxFrame int, reg *stats.Registry) *Assembler {
	if maxFrame < 2 {
		maxFrame = 2
	}
	return &Assembler{
		buf:     make([]byte, maxFrame-1),
		decoded: make([]byte, maxFrame-1),
		stats:   reg,
	}
}

// Feed consumes one byte. It returns the raw message bytes when b
// completes a frame, otherwise nil. The returned slice is only valid
// until the next call.
func (a *Assembler) Feed(b byte) []byte {
	if b != Marker {
		if a.discard {
			return nil
		}
		if a.cursor >= len(a.buf) {
			glog.V(2).Infof("assembler: frame exceeds %d bytes, dropped", len(a.buf))
			a.stats.Inc(stats.ReceiveBufferOverflow)
			a.cursor, a.discard = 0, true
			return nil
		}
		a.buf[a.cursor] = b
		a.cursor++
		return nil
	}
	if a.discard {
		a.discard = false
		return nil
	}
	if a.cursor == 0 {
		a.stats.Inc(stats.MsgMalformed)
		return nil
	}
	n, err := cobs.Decode(a.decoded, a.buf[:a.cursor])
	a.cursor = 0
	if err != nil || n == 0 {
		a.stats.Inc(stats.CobsDecode)
		return nil
	}
	return a.decoded[:n]
}

// Pending returns the number of buffered bytes.
func (a *Assembler) Pending() int {
	return a.cursor
}

// Reset drops any partial frame.
func (a *Assembler) Reset() {
	a.cursor, a.discard = 0, false
}

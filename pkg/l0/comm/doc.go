// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between the panel firmware and the host
// over a byte oriented serial link (USB CDC or a plain UART).
//
// Each message is laid out as
//
//	[node<<5 >> 8][(node<<5)&0xE0 | command&0x1F][len][payload...][xor]
//
// where node is the 11-bit node identity, command the 5-bit operation,
// and xor the XOR of all preceding bytes. The message is then COBS
// encoded and terminated by a single 0x00 marker.
//
// There is no acknowledgement, retransmission or sequence number. Lost
// or corrupted frames are only visible through the statistics counters
// which the host can poll with the ErrorStatus command.

// Package cobs implements Consistent Overhead Byte Stuffing.
//
// Encoded output never contains a zero byte, so a single 0x00 can be
// appended by the caller as frame delimiter. Both directions write into
// caller supplied buffers and fail with ErrShortBuffer instead of growing
// or overrunning them.
package cobs

import "errors"

// ErrShortBuffer indicates the destination buffer can't hold the result.
var ErrShortBuffer = errors.New("cobs: short buffer")

// maxBlock is the maximum number of literal bytes in one block.
const maxBlock = 254

// MaxEncodedLen returns the worst case encoded length of n input bytes.
func MaxEncodedLen(n int) int {
	return n + n/maxBlock + 1
}

// Encode encodes src into dst and returns the number of bytes written.
// The delimiter is not written.
func Encode(dst, src []byte) (int, error) {
	if len(dst) == 0 {
		return 0, ErrShortBuffer
	}
	codeAt, out := 0, 1
	code := byte(1)
	for i, b := range src {
		if b != 0 {
			if out >= len(dst) {
				return 0, ErrShortBuffer
			}
			dst[out] = b
			out++
			code++
		}
		if b == 0 || code == 0xff {
			dst[codeAt] = code
			code, codeAt = 1, out
			if b == 0 || i+1 < len(src) {
				if out >= len(dst) {
					return 0, ErrShortBuffer
				}
				out++
			}
		}
	}
	// a block closed by the length limit at the very end needs no
	// trailing code byte.
	if codeAt < out {
		dst[codeAt] = code
	}
	return out, nil
}

// Decode decodes src into dst and returns the number of bytes written.
// Decoding stops at a zero code byte or at the end of src, whichever
// comes first; a truncated block yields the bytes available.
func Decode(dst, src []byte) (int, error) {
	n, block := 0, 0
	code := byte(0xff)
	for i := 0; i < len(src); {
		if block > 0 {
			if n >= len(dst) {
				return n, ErrShortBuffer
			}
			dst[n] = src[i]
			n, i, block = n+1, i+1, block-1
			continue
		}
		if code != 0xff {
			if n >= len(dst) {
				return n, ErrShortBuffer
			}
			dst[n] = 0
			n++
		}
		code = src[i]
		i++
		if code == 0 {
			break
		}
		block = int(code) - 1
	}
	return n, nil
}

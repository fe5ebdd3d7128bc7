// Package transport connects the pipeline to the byte link to the host.
package transport

import (
	"context"
	"errors"
)

// Errors returned by transports.
var (
	ErrNotReady = errors.New("transport not ready")
	ErrClosed   = errors.New("transport closed")
)

// Transport is the byte link as seen by the pipeline stages.
type Transport interface {
	// Read copies available received bytes into p without blocking.
	// It returns 0 when nothing is available.
	Read(p []byte) (int, error)
	// WriteAvailable returns the number of bytes Write accepts now.
	WriteAvailable() int
	// Write buffers up to WriteAvailable bytes of p.
	Write(p []byte) (int, error)
	// Flush pushes buffered bytes to the link.
	Flush() error
	// Ready tells if the host end is connected.
	Ready() bool
}

// Servicer is implemented by transports needing a pump.
// Service returns when the link is torn down or ctx is done.
type Servicer interface {
	Service(ctx context.Context) error
}

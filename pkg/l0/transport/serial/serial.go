// Package serial opens a tty device as the host link.
package serial

import (
	"fmt"
	"os"
	"sync"
	"syscall"

	"golang.org/x/term"
)

// Port is an opened serial device in raw mode.
type Port struct {
	*os.File

	lock  sync.Mutex
	state *term.State
}

// Open opens the device at path. Terminals are switched to raw mode
// and restored on Close.
func Open(path string) (*Port, error) {
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}
	p := &Port{File: f}
	if fd := int(f.Fd()); term.IsTerminal(fd) {
		if p.state, err = term.MakeRaw(fd); err != nil {
			f.Close()
			return nil, fmt.Errorf("raw mode %s: %w", path, err)
		}
	}
	return p, nil
}

// Raw tells if the device was switched to raw mode.
func (p *Port) Raw() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state != nil
}

// Close restores the terminal state and closes the device.
func (p *Port) Close() error {
	p.lock.Lock()
	state := p.state
	p.state = nil
	p.lock.Unlock()
	if state != nil {
		term.Restore(int(p.File.Fd()), state)
	}
	return p.File.Close()
}

package transport

import "sync"

// Ring is a fixed size byte FIFO.
type Ring struct {
	lock sync.Mutex
	buf  []byte
	head int
	size int
}

// NewRing creates a Ring holding capacity bytes.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Write stores as many bytes of p as fit and returns the count.
func (r *Ring) Write(p []byte) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := 0
	for n < len(p) && r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = p[n]
		r.size++
		n++
	}
	return n
}

// Read moves up to len(p) bytes into p and returns the count.
func (r *Ring) Read(p []byte) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := 0
	for n < len(p) && r.size > 0 {
		p[n] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.size--
		n++
	}
	return n
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.size
}

// Free returns the available room.
func (r *Ring) Free() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.buf) - r.size
}

// Reset drops all buffered bytes.
func (r *Ring) Reset() {
	r.lock.Lock()
	r.head, r.size = 0, 0
	r.lock.Unlock()
}

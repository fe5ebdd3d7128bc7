package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Prioritized is implemented by runners carrying a priority label.
type Prioritized interface {
	Priority() int
}

// Pinned is implemented by runners bound to a CPU.
// A negative CPU means no affinity.
type Pinned interface {
	CPU() int
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefine priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvTransport is the priority level for transport servicing.
	PrLvTransport = PrLvHigh
	// PrLvDecode is the priority level for inbound decoding.
	PrLvDecode = PrLvHigh + 1
	// PrLvProcess is the priority level for queue processing stages.
	PrLvProcess = PrLvNormal
	// PrLvStatus is the priority level for status reporting.
	PrLvStatus = PrLvLow
)

// NoAffinity indicates a runner may be scheduled on any CPU.
const NoAffinity = -1

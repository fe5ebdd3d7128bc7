package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

type stageRunnable struct {
	Runnable
	name     string
	priority int
	cpu      int
}

func (r *stageRunnable) Name() string  { return r.name }
func (r *stageRunnable) Priority() int { return r.priority }
func (r *stageRunnable) CPU() int      { return r.cpu }

// StageRun wraps a Runnable with a name, a priority label and a CPU
// affinity. Use NoAffinity to leave it unpinned.
func StageRun(name string, priority, cpu int, runnable Runnable) Runnable {
	return &stageRunnable{Runnable: runnable, name: name, priority: priority, cpu: cpu}
}

// PanicError is reported when a Runnable panics.
type PanicError struct {
	Name  string
	Value interface{}
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("Runner[%s] panic: %v", e.Name, e.Value)
}

// Runner runs multiple Runnables and collect errors.
type Runner struct {
	Context context.Context
	Runners []Runnable

	// OnPanic is invoked when a Runnable panics. If nil the panic
	// is not recovered.
	OnPanic func(name string, value interface{})
	// OnPinFailure is invoked when CPU affinity can't be applied.
	// The Runnable keeps running unpinned.
	OnPinFailure func(name string, cpu int, err error)

	errCh  chan error
	exitCh chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		errCh:   make(chan error, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals handles CtrlC and SIGTERM from the system.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go spawns a Runnable with default context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	return r.GoWith(r.Context, runners...)
}

// GoWith spawns a Runnable with a specified context.
func (r *Runner) GoWith(ctx context.Context, runners ...Runnable) *Runner {
	for _, runner := range runners {
		var name string
		if named, ok := runner.(Named); ok {
			name = named.Name()
		} else {
			name = strconv.Itoa(len(r.Runners))
		}
		cpu := NoAffinity
		if pinned, ok := runner.(Pinned); ok {
			cpu = pinned.CPU()
		}
		r.Runners = append(r.Runners, runner)
		glog.V(4).Infof("start Runner[%s]", name)
		go func(runner Runnable, name string, cpu int) {
			if cpu >= 0 {
				if err := pinToCPU(cpu); err != nil {
					glog.Warningf("Runner[%s] pin to cpu %d failed: %v", name, cpu, err)
					if r.OnPinFailure != nil {
						r.OnPinFailure(name, cpu, err)
					}
				}
			}
			glog.V(4).Infof("Runner[%s] started", name)
			r.errCh <- r.run(ctx, runner, name)
			glog.V(4).Infof("Runner[%s] stopped", name)
		}(runner, name, cpu)
	}
	return r
}

func (r *Runner) run(ctx context.Context, runner Runnable, name string) (err error) {
	if r.OnPanic != nil {
		defer func() {
			if v := recover(); v != nil {
				glog.Errorf("Runner[%s] panic: %v", name, v)
				r.OnPanic(name, v)
				err = &PanicError{Name: name, Value: v}
			}
		}()
	}
	return runner.Run(ctx)
}

// Wait waits until all Runnables stops and aggregate errors.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case err := <-r.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs a func with doesn't accept a context.
// cancel is called only when the context is canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}

// RunWithContext is simplified form with no cancel callback.
func RunWithContext(ctx context.Context, fn func() error) error {
	return RunWithContextCancel(ctx, nil, fn)
}

// RunWithContextCloser is a convinient wrapper for RunWithContextCancel and
// ensures closer.Close is either called on cancel or exit of fn.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}

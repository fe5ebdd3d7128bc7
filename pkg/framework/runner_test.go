package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerWait(t *testing.T) {
	errFail := errors.New("fail")
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx)
	r.Go(
		NamedRun("ok", RunFunc(func(context.Context) error { return nil })),
		NamedRun("fail", RunFunc(func(context.Context) error { return errFail })),
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	cancel()
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errFail))
	var agg *AggregatedError
	require.True(t, errors.As(err, &agg))
	require.Len(t, agg.Errors, 1)
}

func TestRunnerPanic(t *testing.T) {
	r := NewRunner()
	var panicked string
	r.OnPanic = func(name string, v interface{}) {
		panicked = name
	}
	r.Go(StageRun("boom", PrLvProcess, NoAffinity, RunFunc(func(context.Context) error {
		panic("oops")
	})))
	err := r.Wait()
	var perr *PanicError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "boom", perr.Name)
	require.Equal(t, "oops", perr.Value)
	require.Equal(t, "boom", panicked)
}

func TestStageRun(t *testing.T) {
	s := StageRun("decoder", PrLvDecode, 1, RunFunc(func(context.Context) error { return nil }))
	require.Equal(t, "decoder", s.(Named).Name())
	require.Equal(t, PrLvDecode, s.(Prioritized).Priority())
	require.Equal(t, 1, s.(Pinned).CPU())
}

func TestRunnerPinned(t *testing.T) {
	r := NewRunner()
	r.OnPinFailure = func(name string, cpu int, err error) {}
	done := make(chan struct{})
	r.Go(StageRun("pinned", PrLvProcess, 0, RunFunc(func(context.Context) error {
		close(done)
		return nil
	})))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pinned runner not started")
	}
	require.NoError(t, r.Wait())
}

func TestRunWithContextCloser(t *testing.T) {
	c := &testCloser{ch: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, c, func() error {
		<-c.ch
		return errors.New("closed")
	})
	require.Equal(t, context.Canceled, err)
	require.True(t, c.closed)
}

type testCloser struct {
	ch     chan struct{}
	closed bool
}

func (c *testCloser) Close() error {
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())

	errA, errB := errors.New("decoder: a"), errors.New("transmitter: b")
	errs.Add(errA)
	require.Equal(t, "decoder: a", errs.Aggregate().Error())
	errs.Add(nil, errB)
	err := errs.Aggregate()
	require.Equal(t, "stages failed: decoder: a; transmitter: b", err.Error())
	require.True(t, errors.Is(err, errB))
}

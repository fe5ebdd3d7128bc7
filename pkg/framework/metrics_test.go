package framework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStageMetrics(t *testing.T) {
	m := NewMetrics()
	s := m.Stage("decoder", PrLvDecode, 1)
	require.Equal(t, 1, m.Len())
	require.Same(t, s, m.At(0))
	require.Nil(t, m.At(1))
	require.Nil(t, m.At(-1))

	s.Track(time.Now().Add(-2 * time.Millisecond))
	s.Mark(3)
	s.Mark(1)
	require.Equal(t, uint64(1), s.Iterations())
	require.Equal(t, 3, s.HighWater())
	require.True(t, s.Busy() >= 2*time.Millisecond)

	rec, ok := m.Record(0)
	require.True(t, ok)
	require.Equal(t, "decoder", rec.Name)
	require.False(t, rec.Idle)
	require.True(t, rec.RunTime >= 2000)
	require.Equal(t, uint32(100), rec.Percent)
	require.Equal(t, uint32(3), rec.HighWater)

	idle, ok := m.Record(1)
	require.True(t, ok)
	require.True(t, idle.Idle)
	require.True(t, idle.Percent <= 100)
	require.NotZero(t, idle.HighWater)

	_, ok = m.Record(2)
	require.False(t, ok)
}

func TestPercent(t *testing.T) {
	testCases := []struct {
		name   string
		d      time.Duration
		total  time.Duration
		expect uint32
	}{
		{"no uptime", time.Second, 0, 0},
		{"half", time.Second, 2 * time.Second, 50},
		{"rounds down", time.Second, 3 * time.Second, 33},
		{"all", time.Second, time.Second, 100},
		{"busy before start", 3 * time.Second, time.Second, 100},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, percent(tc.d, tc.total))
		})
	}
}

func TestNilStageMetrics(t *testing.T) {
	var s *StageMetrics
	s.Track(time.Now())
	s.Mark(10)
	require.Zero(t, s.Iterations())
	require.Zero(t, s.HighWater())
	require.Equal(t, NoAffinity, s.CPU())
	require.Empty(t, s.Name())
}

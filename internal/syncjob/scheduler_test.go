package syncjob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signalRunner struct {
	ran chan struct{}
}

func (r *signalRunner) Run(context.Context) (*Stats, error) {
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return &Stats{}, nil
}

func TestNewDailyScheduler_Validation(t *testing.T) {
	_, err := NewDailyScheduler(&signalRunner{}, 24, "UTC")
	assert.Error(t, err)

	_, err = NewDailyScheduler(&signalRunner{}, 4, "Not/AZone")
	assert.Error(t, err)

	_, err = NewDailyScheduler(&signalRunner{}, 4, "America/Sao_Paulo")
	assert.NoError(t, err)
}

func TestNextRun(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	s, err := NewDailyScheduler(&signalRunner{}, 4, "America/Sao_Paulo")
	require.NoError(t, err)

	// Before the hour: fires today.
	now := time.Date(2026, 3, 10, 2, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 10, 4, 0, 0, 0, loc), s.nextRun(now))

	// After the hour: fires tomorrow.
	now = time.Date(2026, 3, 10, 4, 0, 1, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 11, 4, 0, 0, 0, loc), s.nextRun(now))

	// Exactly at the hour: fires tomorrow (strictly after now).
	now = time.Date(2026, 3, 10, 4, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 11, 4, 0, 0, 0, loc), s.nextRun(now))
}

func TestNextRun_ConvertsCallerTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	s, err := NewDailyScheduler(&signalRunner{}, 4, "America/Sao_Paulo")
	require.NoError(t, err)

	// 06:30 UTC is 03:30 in Sao Paulo (UTC-3): fires the same local day.
	now := time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 4, 0, 0, 0, loc).Unix(), s.nextRun(now).Unix())
}

func TestStart_FiresAndKeepsRunning(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	runner := &signalRunner{ran: make(chan struct{}, 1)}
	clock := func() time.Time {
		return time.Date(2026, 3, 10, 3, 59, 59, int(990*time.Millisecond), loc)
	}
	s, err := NewDailyScheduler(runner, 4, "UTC", WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanExpiredTokens(context.Context) (int64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return 0, c.err
	}
	return 2, nil
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	cleaner := &countingCleaner{}
	var purged atomic.Int64

	s := NewSweeper(5*time.Millisecond, cleaner, func(n int64) { purged.Add(n) }, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()

	assert.GreaterOrEqual(t, purged.Load(), int64(6))
}

func TestSweeper_ErrorsDoNotStopTheLoop(t *testing.T) {
	cleaner := &countingCleaner{err: errors.New("store down")}
	called := false

	s := NewSweeper(5*time.Millisecond, cleaner, func(int64) { called = true }, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()

	assert.False(t, called)
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	s := NewSweeper(0, &countingCleaner{}, nil, zerolog.Nop())
	assert.Equal(t, defaultSweepInterval, s.interval)
}

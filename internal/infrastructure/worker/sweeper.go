package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultSweepInterval = time.Hour

// TokenCleaner clears expired bearer tokens and reports how many it cleared.
type TokenCleaner interface {
	CleanExpiredTokens(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired tokens so stale values do not linger
// in the credential store.
type Sweeper struct {
	cleaner  TokenCleaner
	interval time.Duration
	onPurge  func(n int64)
	log      zerolog.Logger

	wg sync.WaitGroup
}

// NewSweeper creates a Sweeper running every interval.
// If interval <= 0, defaultSweepInterval is used. onPurge may be nil.
func NewSweeper(interval time.Duration, cleaner TokenCleaner, onPurge func(n int64), log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		cleaner:  cleaner,
		interval: interval,
		onPurge:  onPurge,
		log:      log,
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Wait blocks until the loop started by Start has returned.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.cleaner.CleanExpiredTokens(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("expired token sweep failed")
		}
		return
	}
	if s.onPurge != nil {
		s.onPurge(n)
	}
	s.log.Debug().Int64("cleared", n).Dur("interval", s.interval).Msg("expired token sweep done")
}

package runsheet

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Ticker drives the coordinator heartbeat. Ticks run sequentially on one
// goroutine, so a slow tick delays the next rather than overlapping it.
type Ticker struct {
	svc      *Service
	interval time.Duration
	observe  func(time.Duration)
	log      zerolog.Logger
}

// NewTicker creates the heartbeat driver. observe, when non-nil, receives
// the duration of every tick.
func NewTicker(svc *Service, interval time.Duration, observe func(time.Duration), log zerolog.Logger) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{svc: svc, interval: interval, observe: observe, log: log}
}

// Run ticks until ctx is canceled. Call in its own goroutine. Per-tick
// errors are logged and the loop keeps going.
func (t *Ticker) Run(ctx context.Context) {
	t.log.Debug().Dur("interval", t.interval).Msg("ticker started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Debug().Msg("ticker stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if err := t.svc.Tick(ctx); err != nil {
				t.log.Error().Err(err).Msg("tick failed")
			}
			if t.observe != nil {
				t.observe(time.Since(start))
			}
		}
	}
}

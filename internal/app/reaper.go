package app

import (
	"context"
	"log"
	"time"
)

// DeadlineReaper guarantees Submit eventually runs for every InProgress
// attempt whose deadline has passed, independent of client liveness. The timer
// runs server-side: client-reported time is never trusted for scoring.
type DeadlineReaper struct {
	service  *AttemptService
	interval time.Duration
}

func NewDeadlineReaper(service *AttemptService, interval time.Duration) *DeadlineReaper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &DeadlineReaper{service: service, interval: interval}
}

// Run sweeps until the context is canceled. Submit failures (e.g. the ledger
// being unavailable) leave the attempt InProgress, so the next sweep retries.
func (r *DeadlineReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass; exported so tests and shutdown paths can force one.
func (r *DeadlineReaper) Sweep(ctx context.Context) {
	submitted, err := r.service.SweepOverdue(ctx)
	if err != nil {
		log.Printf("deadline sweep: %v", err)
	}
	if submitted > 0 {
		log.Printf("deadline sweep: auto-submitted %d attempt(s)", submitted)
	}
}

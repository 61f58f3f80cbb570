package update

import (
	"context"
	"time"

	"github.com/raulk/clock"

	"github.com/adamancini/updraft/internal/settings"
)

const (
	// DefaultCheckInterval is used when neither the store nor the
	// scheduler names an interval.
	DefaultCheckInterval = 24 * time.Hour
	// MinCheckInterval is the shortest interval honored.
	MinCheckInterval = time.Hour
	// DefaultPollQuantum is how often a periodic scheduler wakes to
	// re-read its settings.
	DefaultPollQuantum = 5 * time.Minute
)

// Strategy drives checks on a background goroutine. Run calls ready once
// it has started and returns when ctx is done or its work is finished.
type Strategy interface {
	Run(ctx context.Context, ready func()) error
}

// OneShot runs a single manual check that ignores the skip list.
type OneShot struct {
	Checker *Checker
}

// Run implements Strategy.
func (s OneShot) Run(ctx context.Context, ready func()) error {
	ready()
	_, err := s.Checker.Check(ctx, CheckOptions{Manual: true, Skip: ManualSkipOverride{}})
	return err
}

// Periodic checks whenever the configured interval has elapsed since the
// last recorded check. Failed checks are logged and the loop goes on.
type Periodic struct {
	Checker     *Checker
	Interval    time.Duration // Used when the store has no UpdateInterval
	PollQuantum time.Duration
	Clock       clock.Clock
}

// Run implements Strategy. It returns nil once ctx is done.
func (p *Periodic) Run(ctx context.Context, ready func()) error {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	quantum := p.PollQuantum
	if quantum <= 0 {
		quantum = DefaultPollQuantum
	}
	store := p.Checker.Store()

	ready()
	for {
		if ctx.Err() != nil {
			return nil
		}

		if p.due(store, clk.Now()) {
			_, err := p.Checker.Check(ctx, CheckOptions{Skip: HonorSkipList{Store: store}})
			if err != nil && !IsKind(err, KindCancelled) {
				log.Warnw("periodic update check failed", "error", err)
			}
		}

		timer := clk.Timer(quantum)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// CheckInterval returns the interval in effect, read fresh from the store.
func (p *Periodic) CheckInterval() time.Duration {
	interval := p.Interval
	seconds, err := settings.ReadInt64(p.Checker.Store(), settings.KeyUpdateInterval, 0)
	if err != nil {
		log.Warnw("invalid update interval in settings", "error", err)
	} else if seconds > 0 {
		interval = time.Duration(seconds) * time.Second
	}

	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if interval < MinCheckInterval {
		interval = MinCheckInterval
	}
	return interval
}

func (p *Periodic) due(store settings.Store, now time.Time) bool {
	enabled, err := settings.ReadBool(store, settings.KeyCheckForUpdates, false)
	if err != nil {
		log.Warnw("invalid check-for-updates setting", "error", err)
		return false
	}
	if !enabled {
		return false
	}

	last, err := settings.ReadTime(store, settings.KeyLastCheckTime)
	if err != nil {
		// unreadable timestamps are rewritten by the next check
		log.Warnw("invalid last check time", "error", err)
		return true
	}
	return !now.Before(last.Add(p.CheckInterval()))
}

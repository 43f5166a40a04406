package store

import (
	"log/slog"
	"time"
)

const defaultSweepInterval = time.Hour

// Sweeper periodically evicts expired sessions. It has an explicit
// lifecycle so tests can trigger a sweep deterministically through
// Store.EvictExpired instead of waiting on the timer.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewSweeper creates a Sweeper for the store. A non-positive interval
// falls back to hourly.
func NewSweeper(store *Store, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (sw *Sweeper) Start() {
	go sw.run()
}

// Stop halts the loop and waits for it to exit.
func (sw *Sweeper) Stop() {
	close(sw.stop)
	<-sw.done
}

func (sw *Sweeper) run() {
	defer close(sw.done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := sw.store.EvictExpired(); n > 0 {
				sw.log.Info("evicted expired sessions", "count", n)
			}
		case <-sw.stop:
			return
		}
	}
}

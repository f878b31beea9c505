package amp

import (
	"sync"
	"time"
)

// ProgressTracker tracks reception progress per transfer and invokes the
// progress callback at most once per interval for each of them.
type ProgressTracker struct {
	mu sync.Mutex

	transfers map[string]*transferProgress

	callback       func(hash, filename string, held, total int, rate float64)
	updateInterval time.Duration
	now            func() time.Time
}

type transferProgress struct {
	filename   string
	held       int
	total      int
	startTime  time.Time
	lastUpdate time.Time
	lastHeld   int
}

// TransferStats is a snapshot of one transfer's progress.
type TransferStats struct {
	Hash     string
	Filename string
	Held     int
	Total    int
	Rate     float64
	Duration time.Duration
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(callback func(hash, filename string, held, total int, rate float64), interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 100 * time.Millisecond // Default: update every 100ms
	}

	return &ProgressTracker{
		transfers:      make(map[string]*transferProgress),
		callback:       callback,
		updateInterval: interval,
		now:            time.Now,
	}
}

// Observe records a file update and invokes the callback if enough time has
// passed since the last one for that transfer.
func (pt *ProgressTracker) Observe(event FileUpdateEvent) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	now := pt.now()
	tp, ok := pt.transfers[event.Hash]
	if !ok {
		tp = &transferProgress{startTime: now}
		pt.transfers[event.Hash] = tp
	}
	tp.filename = event.Filename
	tp.held = len(event.BlocksSeen)
	tp.total = event.BlockCount

	if ok && now.Sub(tp.lastUpdate) < pt.updateInterval {
		return // Too soon for an update
	}

	var rate float64
	if elapsed := now.Sub(tp.lastUpdate).Seconds(); ok && elapsed > 0 {
		rate = float64(tp.held-tp.lastHeld) / elapsed
	}

	if pt.callback != nil {
		pt.callback(event.Hash, tp.filename, tp.held, tp.total, rate)
	}

	tp.lastUpdate = now
	tp.lastHeld = tp.held
}

// Complete reports the final state of a transfer, stops tracking it and
// returns how long it took.
func (pt *ProgressTracker) Complete(hash string) time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	tp, ok := pt.transfers[hash]
	if !ok {
		return 0
	}
	delete(pt.transfers, hash)

	if pt.callback != nil {
		pt.callback(hash, tp.filename, tp.held, tp.total, 0)
	}
	return pt.now().Sub(tp.startTime)
}

// GetStats returns current progress statistics for one transfer.
func (pt *ProgressTracker) GetStats(hash string) (TransferStats, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	tp, ok := pt.transfers[hash]
	if !ok {
		return TransferStats{}, false
	}
	stats := TransferStats{
		Hash:     hash,
		Filename: tp.filename,
		Held:     tp.held,
		Total:    tp.total,
		Duration: pt.now().Sub(tp.startTime),
	}
	if stats.Duration.Seconds() > 0 {
		stats.Rate = float64(tp.held) / stats.Duration.Seconds()
	}
	return stats, true
}

package errors

import (
	"sync"
	"time"
)

// rateLimiter keeps one reporter from flooding its channel with the same
// error: each call site is reported at most once per silent window.
type rateLimiter struct {
	lock   sync.Mutex
	silent time.Duration
	now    func() time.Time
	buffer map[string]*errorStats
}

func newRateLimiter(silent time.Duration) *rateLimiter {
	return &rateLimiter{
		silent: silent,
		now:    time.Now,
		buffer: map[string]*errorStats{},
	}
}

type errorStats struct {
	totalOccurCount int
	// occurrences swallowed since the last report
	occurCountSinceLastReport int
	lastReportTime            *time.Time
}

func (in *errorStats) Copy() *errorStats {
	return &errorStats{
		totalOccurCount:           in.totalOccurCount,
		occurCountSinceLastReport: in.occurCountSinceLastReport,
		lastReportTime:            in.lastReportTime,
	}
}

// StackBasedRateLimited records one occurrence for the call site and tells
// whether it must be swallowed. The returned stats are a snapshot taken
// before the occurrence was recorded.
func (b *rateLimiter) StackBasedRateLimited(site string) (bool, *errorStats) {
	b.lock.Lock()
	defer b.lock.Unlock()
	stats := b.buffer[site]
	if stats == nil {
		stats = &errorStats{}
		b.buffer[site] = stats
	}
	cp := stats.Copy()
	now := b.now()
	stats.totalOccurCount++
	if stats.lastReportTime != nil && now.Sub(*stats.lastReportTime) < b.silent {
		stats.occurCountSinceLastReport++
		return true, cp
	}
	stats.occurCountSinceLastReport = 0
	stats.lastReportTime = &now
	return false, cp
}

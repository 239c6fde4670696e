package watch

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/penwyp/ivt-split/internal/data/cache"
	"github.com/penwyp/ivt-split/internal/util"
)

// Stats counts what the watcher did with the reports it saw
type Stats struct {
	seen      int64
	skipped   int64
	processed int64
	failures  int64
	mu        sync.Mutex
	reasons   []ReasonDetail
}

// ReasonDetail records why a report was (re)processed
type ReasonDetail struct {
	FilePath string
	Reason   cache.MissReason
}

func NewStats() *Stats {
	return &Stats{
		reasons: make([]ReasonDetail, 0),
	}
}

func (s *Stats) IncrementSeen() {
	atomic.AddInt64(&s.seen, 1)
}

// IncrementSkipped counts a report already recorded in the ledger
func (s *Stats) IncrementSkipped() {
	atomic.AddInt64(&s.skipped, 1)
}

// IncrementProcessed counts a successful split and remembers why it ran
func (s *Stats) IncrementProcessed(filePath string, reason cache.MissReason) {
	atomic.AddInt64(&s.processed, 1)

	s.mu.Lock()
	s.reasons = append(s.reasons, ReasonDetail{FilePath: filePath, Reason: reason})
	s.mu.Unlock()
}

func (s *Stats) IncrementFailure() {
	atomic.AddInt64(&s.failures, 1)
}

// GetStats returns the current counters
func (s *Stats) GetStats() (seen, skipped, processed, failures int64) {
	return atomic.LoadInt64(&s.seen),
		atomic.LoadInt64(&s.skipped),
		atomic.LoadInt64(&s.processed),
		atomic.LoadInt64(&s.failures)
}

// ReasonCounts groups processed reports by ledger miss reason
func (s *Stats) ReasonCounts() map[cache.MissReason]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[cache.MissReason]int)
	for _, detail := range s.reasons {
		counts[detail.Reason]++
	}
	return counts
}

// PrintFinalStats logs the totals and why reports were processed
func (s *Stats) PrintFinalStats() {
	seen, skipped, processed, failures := s.GetStats()

	util.LogInfof("Watch statistics: seen %d reports, processed %d, skipped %d already processed, %d failures",
		seen, processed, skipped, failures)

	counts := s.ReasonCounts()
	if len(counts) == 0 {
		return
	}
	reasons := make([]cache.MissReason, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	util.LogDebug("Processing reason summary:")
	for _, reason := range reasons {
		util.LogDebugf("  %s: %d reports", reason, counts[reason])
	}
}

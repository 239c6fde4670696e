package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/penwyp/ivt-split/internal/analyzer"
	"github.com/penwyp/ivt-split/internal/data/cache"
	"github.com/penwyp/ivt-split/internal/data/scanner"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/util"
)

// DefaultSettle is how long a report must stay unchanged before it is split
const DefaultSettle = time.Second

// Processor splits one report
type Processor func(ctx context.Context, reportPath string) (*analyzer.Result, error)

type Options struct {
	Dir     string
	Ledger  cache.Ledger
	Process Processor
	// Settle is the quiet period after the last write; DefaultSettle when zero
	Settle time.Duration
}

// Service splits every report already in a directory and every report that
// shows up later, one at a time, skipping reports the ledger has seen.
type Service struct {
	dir     string
	ledger  cache.Ledger
	process Processor
	settle  time.Duration
	stats   *Stats
	pending map[string]time.Time
}

func New(opts Options) (*Service, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, apperrors.NewConfigError("watch directory does not exist", err).WithContext("path", opts.Dir)
	}
	if !info.IsDir() {
		return nil, apperrors.NewConfigError("watch path is not a directory", nil).WithContext("path", opts.Dir)
	}
	if opts.Ledger == nil || opts.Process == nil {
		return nil, errors.New("watch service needs a ledger and a processor")
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	return &Service{
		dir:     opts.Dir,
		ledger:  opts.Ledger,
		process: opts.Process,
		settle:  settle,
		stats:   NewStats(),
		pending: make(map[string]time.Time),
	}, nil
}

func (s *Service) Stats() *Stats {
	return s.stats
}

// Run blocks until ctx is done. Cancellation is a normal stop and returns nil.
func (s *Service) Run(ctx context.Context) error {
	// Watch before scanning so nothing created in between is missed
	watcher, err := NewFileWatcher(s.dir)
	if err != nil {
		return apperrors.NewStorageError("failed to watch directory", err).WithContext("path", s.dir)
	}
	defer watcher.Close()
	defer s.stats.PrintFinalStats()

	files, err := scanner.NewFileScanner(s.dir).Scan()
	if err != nil {
		return apperrors.NewStorageError("failed to scan directory", err).WithContext("path", s.dir)
	}
	util.LogInfof("Watching %s, %d existing reports", s.dir, len(files))

	for _, file := range files {
		if ctx.Err() != nil {
			return nil
		}
		s.handle(ctx, file)
	}

	ticker := time.NewTicker(s.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			util.LogInfo("Stopping watcher")
			return nil

		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			s.track(event, time.Now())

		case now := <-ticker.C:
			for _, path := range s.due(now) {
				if ctx.Err() != nil {
					return nil
				}
				s.handle(ctx, path)
			}
		}
	}
}

// track records a touch, or forgets a report that went away
func (s *Service) track(event FileEvent, now time.Time) {
	if event.Touched() {
		if _, ok := s.pending[event.Path]; !ok {
			util.LogDebugf("Report activity: %s (%s)", event.Path, event.Operation)
		}
		s.pending[event.Path] = now
		return
	}
	delete(s.pending, event.Path)
}

// due returns reports that have been quiet for the settle period, oldest first
func (s *Service) due(now time.Time) []string {
	var ready []string
	for path, last := range s.pending {
		if now.Sub(last) >= s.settle {
			ready = append(ready, path)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return s.pending[ready[i]].Before(s.pending[ready[j]])
	})
	for _, path := range ready {
		delete(s.pending, path)
	}
	return ready
}

// handle splits one report unless the ledger already has its content.
// Failures are logged and do not stop the watcher.
func (s *Service) handle(ctx context.Context, path string) {
	s.stats.IncrementSeen()

	if !util.FileExists(path) {
		util.LogDebugf("Report disappeared before processing: %s", path)
		return
	}

	lookup := s.ledger.Lookup(path)
	if lookup.Processed {
		s.stats.IncrementSkipped()
		util.LogDebugf("Skipping %s, already processed in run %s", path, lookup.Entry.RunID)
		return
	}

	result, err := s.process(ctx, path)
	if err != nil {
		s.stats.IncrementFailure()
		util.LogErrorf("Failed to split %s: %v", filepath.Base(path), err)
		return
	}

	s.stats.IncrementProcessed(path, lookup.MissReason)
	if err := s.ledger.Record(path, result.RunID, result.FilesCreated); err != nil {
		util.LogWarn(fmt.Sprintf("Failed to record %s in ledger: %v", path, err))
	}
}

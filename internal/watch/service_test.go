package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/penwyp/ivt-split/internal/analyzer"
	"github.com/penwyp/ivt-split/internal/core/model"
	"github.com/penwyp/ivt-split/internal/data/cache"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activityReport = "Publisher ID,Impressions,Cost (USD),Invalid Impressions,Invalid Impression Cost (USD)\n" +
	"adconductor_1,10,1.0,1,0.01\n" +
	"adconductor_2,20,2.0,2,0.02\n"

type recorder struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
}

func (r *recorder) process(_ context.Context, path string) (*analyzer.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	if r.fail[filepath.Base(path)] {
		return nil, errors.New("boom")
	}
	return &analyzer.Result{RunID: "run-" + filepath.Base(path), FilesCreated: 1}, nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newLedger(t *testing.T) *cache.FileLedger {
	t.Helper()
	ledger, err := cache.NewFileLedger(filepath.Join(t.TempDir(), cache.DefaultLedgerName))
	require.NoError(t, err)
	return ledger
}

func startService(t *testing.T, svc *Service) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	return func() {
		stop()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watch service did not stop")
		}
	}
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	rec := &recorder{}

	_, err := New(Options{Dir: filepath.Join(dir, "missing"), Ledger: newLedger(t), Process: rec.process})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = New(Options{Dir: file, Ledger: newLedger(t), Process: rec.process})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = New(Options{Dir: dir, Process: rec.process})
	assert.Error(t, err)

	svc, err := New(Options{Dir: dir, Ledger: newLedger(t), Process: rec.process})
	require.NoError(t, err)
	assert.Equal(t, DefaultSettle, svc.settle)
}

func TestService_ProcessesExistingReportsOnce(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(activityReport), 0644))
	}
	ledger := newLedger(t)
	rec := &recorder{}

	svc, err := New(Options{Dir: dir, Ledger: ledger, Process: rec.process, Settle: 20 * time.Millisecond})
	require.NoError(t, err)
	stop := startService(t, svc)
	require.Eventually(t, func() bool { return len(rec.seen()) == 2 }, 5*time.Second, 10*time.Millisecond)
	stop()

	assert.Equal(t, []string{"a.csv", "b.csv"}, rec.seen())
	assert.Len(t, ledger.Entries(), 2)

	// A second watcher over the same ledger skips both
	svc, err = New(Options{Dir: dir, Ledger: ledger, Process: rec.process, Settle: 20 * time.Millisecond})
	require.NoError(t, err)
	stop = startService(t, svc)
	require.Eventually(t, func() bool {
		seen, _, _, _ := svc.Stats().GetStats()
		return seen == 2
	}, 5*time.Second, 10*time.Millisecond)
	stop()

	assert.Len(t, rec.seen(), 2)
	_, skipped, processed, _ := svc.Stats().GetStats()
	assert.Equal(t, int64(2), skipped)
	assert.Zero(t, processed)
}

func TestService_ProcessesNewReports(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{fail: map[string]bool{"broken.csv": true}}

	svc, err := New(Options{Dir: dir, Ledger: newLedger(t), Process: rec.process, Settle: 20 * time.Millisecond})
	require.NoError(t, err)
	stop := startService(t, svc)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("x"), 0644))
	require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 5*time.Second, 10*time.Millisecond)

	// A failure does not stop the watcher
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.csv"), []byte(activityReport), 0644))
	require.Eventually(t, func() bool { return len(rec.seen()) == 2 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"broken.csv", "fresh.csv"}, rec.seen())
	_, _, processed, failures := svc.Stats().GetStats()
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(1), failures)
	assert.Equal(t, map[cache.MissReason]int{cache.MissReasonNotFound: 1}, svc.Stats().ReasonCounts())
}

func TestService_WithAnalyzer(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week.csv"), []byte(activityReport), 0644))

	var format model.Format
	for _, f := range model.BuiltinFormats() {
		if f.Name == model.FormatIVTActivity {
			format = f
		}
	}
	limit := 100.0
	done := make(chan struct{}, 1)
	process := func(ctx context.Context, path string) (*analyzer.Result, error) {
		defer func() { done <- struct{}{} }()
		return analyzer.New(&analyzer.Config{
			ReportPath: path,
			OutputRoot: filepath.Join(out, analyzer.InputBase(path)),
			Format:     format,
			Limit:      &limit,
			Summary:    true,
		}).Run(ctx)
	}

	svc, err := New(Options{Dir: dir, Ledger: newLedger(t), Process: process, Settle: 20 * time.Millisecond})
	require.NoError(t, err)
	stop := startService(t, svc)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("report was not processed")
	}
	stop()

	data, err := os.ReadFile(filepath.Join(out, "week", "adconductor_week.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "total,3,0.03\n")
	assert.FileExists(t, filepath.Join(out, "week", "SUM_week.csv"))
}

func TestService_TrackAndDue(t *testing.T) {
	svc := &Service{settle: time.Second, pending: make(map[string]time.Time)}
	base := time.Now()

	svc.track(FileEvent{Path: "a.csv", Operation: fsnotify.Create}, base)
	svc.track(FileEvent{Path: "b.csv", Operation: fsnotify.Write}, base.Add(100*time.Millisecond))
	svc.track(FileEvent{Path: "c.csv", Operation: fsnotify.Create}, base)
	svc.track(FileEvent{Path: "c.csv", Operation: fsnotify.Remove}, base)

	assert.Empty(t, svc.due(base.Add(500*time.Millisecond)))

	// Another write restarts the quiet period
	svc.track(FileEvent{Path: "a.csv", Operation: fsnotify.Write}, base.Add(600*time.Millisecond))

	assert.Equal(t, []string{"b.csv"}, svc.due(base.Add(1200*time.Millisecond)))
	assert.Equal(t, []string{"a.csv"}, svc.due(base.Add(2*time.Second)))
	assert.Empty(t, svc.pending)
}

package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/penwyp/ivt-split/internal/data/cache"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "incoming")
	out := filepath.Join(dir, "out")
	writeFile(t, filepath.Join(in, "existing.csv"), activityReport)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "watch", in, "100", "--out-dir", out, "--settle", "50ms")
		errCh <- err
	}()

	existing := filepath.Join(out, "existing", "adconductor_existing.csv")
	require.Eventually(t, func() bool {
		_, err := os.Stat(existing)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	writeFile(t, filepath.Join(in, "later.csv"), activityReport)
	later := filepath.Join(out, "later", "spent_more_then_100.0_USD", "pubmatic_later.csv")
	require.Eventually(t, func() bool {
		_, err := os.Stat(later)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	ledger, err := cache.NewFileLedger(filepath.Join(in, cache.DefaultLedgerName))
	require.NoError(t, err)
	assert.Len(t, ledger.Entries(), 2)
	assert.True(t, ledger.Lookup(filepath.Join(in, "existing.csv")).Processed)
}

func TestWatchCommand_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := execute(t, context.Background(), "watch", missing, "100")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitConfig, apperrors.ExitCode(err))
	assert.NoDirExists(t, missing)
}

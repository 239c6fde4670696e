package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/penwyp/ivt-split/internal/presentation/formatter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	dir := t.TempDir()
	report := writeFile(t, filepath.Join(dir, "in", "report.csv"), ivtReport)
	out := filepath.Join(dir, "out")

	stdout, err := execute(t, context.Background(), "split", report, out, "--output", "json")
	require.NoError(t, err)

	var run formatter.RunReport
	require.NoError(t, sonic.Unmarshal([]byte(stdout), &run))
	assert.Equal(t, 2, run.FilesCreated)
	assert.Equal(t, "ivt", run.Format)
	assert.Nil(t, run.Limit)
	assert.Empty(t, run.SummaryPath)

	assert.Equal(t,
		"total,3,0.03\n\nPublisher ID,Invalid Impressions,Invalid Impression Cost (USD)\nadconductor_1,1,0.01\nadconductor_2,2,0.02\n",
		readFile(t, filepath.Join(out, "adconductor_report.csv")))
	assert.FileExists(t, filepath.Join(out, "gumgum_report.csv"))
	assert.NoFileExists(t, filepath.Join(out, "SUM_report.csv"))
}

func TestSplitCommand_TableOutput(t *testing.T) {
	dir := t.TempDir()
	report := writeFile(t, filepath.Join(dir, "report.csv"), ivtReport)

	stdout, err := execute(t, context.Background(), "split", report, filepath.Join(dir, "out"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Input:   "+report+" (ivt)")
	assert.Contains(t, stdout, "adconductor")
	assert.Contains(t, stdout, "2 files")
	assert.NotContains(t, stdout, "Limit:")
}

package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/penwyp/ivt-split/internal/analyzer"
	"github.com/penwyp/ivt-split/internal/core/model"
	"github.com/penwyp/ivt-split/internal/data/cache"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/util"
	"github.com/penwyp/ivt-split/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchFormat        string
	watchOutDir        string
	watchLedger        string
	watchSettle        time.Duration
	watchSummaryPolicy string
	watchOutput        string
	watchReset         bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir> <spend-limit-usd>",
	Short: "Route every report that appears in a directory",
	Long: `Runs 'route' for each report already in dir and for each .csv or .xlsx
report created there later. Reports whose content was already split are
remembered in a ledger file and skipped, also across restarts. Stop with
Ctrl-C.`,
	Args: exactArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFormat, "format", model.FormatIVTActivity,
		"Report layout (see 'ivt-split formats')")
	watchCmd.Flags().StringVar(&watchOutDir, "out-dir", "",
		"Directory that receives one output root per report (default current directory)")
	watchCmd.Flags().StringVar(&watchLedger, "ledger", "",
		"Processed-report ledger (default <dir>/"+cache.DefaultLedgerName+")")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle,
		"Quiet period after the last write before a new report is split")
	watchCmd.Flags().StringVar(&watchSummaryPolicy, "summary-policy", "",
		"Existing summary handling (append, truncate; default from config)")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "none",
		"Run report output per report (table, json, none)")
	watchCmd.Flags().BoolVarP(&watchReset, "reset", "r", false,
		"Forget processed reports before watching")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := expandPath(args[0])
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return apperrors.NewConfigError("watch directory does not exist", err).WithContext("path", dir)
	}
	format, err := appConfig.Format(watchFormat)
	if err != nil {
		return err
	}
	limit, err := parseLimit(args[1])
	if err != nil {
		return err
	}
	policy, err := summaryPolicy(watchSummaryPolicy)
	if err != nil {
		return err
	}

	outDir := watchOutDir
	if outDir == "" {
		outDir = "."
	}
	outDir = expandPath(outDir)
	if err := ensureDir(outDir); err != nil {
		return apperrors.NewConfigError("failed to create output directory", err).WithContext("path", outDir)
	}

	ledgerPath := watchLedger
	if ledgerPath == "" {
		ledgerPath = filepath.Join(dir, cache.DefaultLedgerName)
	}
	ledger, err := cache.NewFileLedger(expandPath(ledgerPath))
	if err != nil {
		return apperrors.NewConfigError("failed to open ledger", err)
	}
	if watchReset {
		if err := ledger.Clear(); err != nil {
			return err
		}
		util.LogInfo("Ledger cleared")
	}

	process := func(ctx context.Context, reportPath string) (*analyzer.Result, error) {
		a := analyzer.New(&analyzer.Config{
			ReportPath:    reportPath,
			OutputRoot:    filepath.Join(outDir, analyzer.InputBase(reportPath)),
			Format:        format,
			Limit:         &limit,
			Summary:       true,
			SummaryPolicy: policy,
		})
		result, err := a.Run(ctx)
		if err != nil {
			return nil, err
		}
		if err := printReport(cmd.OutOrStdout(), watchOutput, result); err != nil {
			util.LogWarnf("Failed to print run report: %v", err)
		}
		return result, nil
	}

	svc, err := watch.New(watch.Options{
		Dir:     dir,
		Ledger:  ledger,
		Process: process,
		Settle:  watchSettle,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return svc.Run(ctx)
}

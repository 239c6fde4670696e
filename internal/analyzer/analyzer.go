package analyzer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/penwyp/ivt-split/internal/core/model"
	"github.com/penwyp/ivt-split/internal/core/router"
	"github.com/penwyp/ivt-split/internal/data/aggregator"
	"github.com/penwyp/ivt-split/internal/data/parser"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/presentation/formatter"
	"github.com/penwyp/ivt-split/internal/util"
)

type Config struct {
	ReportPath string
	OutputRoot string
	Format     model.Format
	Sheet      string // xlsx only, first sheet when empty
	// Limit enables overflow routing when set
	Limit         *float64
	Summary       bool
	SummaryPolicy formatter.SummaryPolicy
}

// GroupResult is what happened to one SSP group
type GroupResult struct {
	Key         string
	Destination router.Destination
	Path        string
	Overwrote   bool
	Totals      aggregator.Totals
	Rows        int
}

// Result describes a finished run
type Result struct {
	RunID        string
	Input        string
	Format       string
	Root         string
	Limit        *float64
	SummaryPath  string
	Groups       []GroupResult
	FilesCreated int
	Duration     time.Duration
}

type Analyzer struct {
	config *Config
	parser *parser.Parser
}

// InputBase returns the report file name without directory and extension.
// It names the per-SSP files, the summary and the default output root.
func InputBase(reportPath string) string {
	name := filepath.Base(reportPath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func New(config *Config) *Analyzer {
	if config.SummaryPolicy == "" {
		config.SummaryPolicy = formatter.SummaryAppend
	}
	if config.OutputRoot == "" {
		config.OutputRoot = InputBase(config.ReportPath)
	}

	return &Analyzer{
		config: config,
		parser: parser.NewParser().WithSheet(config.Sheet),
	}
}

// Run splits the report. Every row is read and aggregated before the first
// file is written, so a malformed report leaves no output behind.
// ctx is checked between groups only.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := util.GetLogger().With(
		util.Field{Key: "run_id", Value: runID},
		util.Field{Key: "input", Value: filepath.Base(a.config.ReportPath)},
	)

	if err := a.validate(); err != nil {
		return nil, err
	}

	logger.Infof("Splitting %s (format %s) into %s", a.config.ReportPath, a.config.Format.Name, a.config.OutputRoot)

	// Phase 1: Read report
	parseStart := time.Now()
	report, err := a.parser.ParseFile(a.config.ReportPath)
	if err != nil {
		return nil, err
	}
	if err := a.checkHeader(report.Header, logger); err != nil {
		return nil, err
	}
	parseDuration := time.Since(parseStart)
	logger.Debugf("Phase 1 - Report read duration: %v, rows: %d", parseDuration, len(report.Rows))

	// Phase 2: Aggregate
	aggStart := time.Now()
	table, err := aggregator.Aggregate(report.Rows, a.config.Format)
	if err != nil {
		return nil, err
	}
	aggDuration := time.Since(aggStart)
	logger.Debugf("Phase 2 - Aggregation duration: %v, groups: %d", aggDuration, table.Len())

	// Phase 3: Write
	writeStart := time.Now()
	result := &Result{
		RunID:  runID,
		Input:  a.config.ReportPath,
		Format: a.config.Format.Name,
		Root:   a.config.OutputRoot,
		Limit:  a.config.Limit,
		Groups: make([]GroupResult, 0, table.Len()),
	}
	err = a.write(ctx, table, result, logger)
	writeDuration := time.Since(writeStart)
	logger.Debugf("Phase 3 - Write duration: %v, files: %d", writeDuration, result.FilesCreated)

	result.Duration = time.Since(startTime)
	logger.Debugf("Total duration: %v (read:%v aggregate:%v write:%v)",
		result.Duration, parseDuration, aggDuration, writeDuration)

	if err != nil {
		return result, err
	}
	logger.Infof("Finished, created files: %d", result.FilesCreated)
	return result, nil
}

func (a *Analyzer) validate() error {
	if a.config.ReportPath == "" {
		return apperrors.NewConfigError("no report file given", nil)
	}
	if !util.FileExists(a.config.ReportPath) {
		return apperrors.NewConfigError("report file does not exist", nil).
			WithContext("path", a.config.ReportPath)
	}
	if _, err := a.config.Format.Layout(); err != nil {
		return apperrors.NewConfigError("invalid report format", err).
			WithContext("format", a.config.Format.Name)
	}
	if a.config.Limit != nil {
		if err := ValidateLimit(*a.config.Limit); err != nil {
			return err
		}
	}
	if _, err := formatter.ParseSummaryPolicy(string(a.config.SummaryPolicy)); err != nil {
		return apperrors.NewConfigError("invalid summary policy", err)
	}
	return nil
}

// ValidateLimit rejects spend limits that cannot name a folder or compare
// meaningfully
func ValidateLimit(limit float64) error {
	if math.IsNaN(limit) || math.IsInf(limit, 0) || limit < 0 {
		return apperrors.NewConfigError("spend limit must be a finite non-negative number", nil).
			WithContext("limit", limit)
	}
	return nil
}

// checkHeader fails on a header with the wrong width. Differing labels are
// only logged since the header line is discarded.
func (a *Analyzer) checkHeader(header []string, logger util.LoggerInterface) error {
	columns := a.config.Format.Columns
	if len(header) != len(columns) {
		return apperrors.NewParsingError(
			fmt.Sprintf("expected %d columns, got %d", len(columns), len(header)), nil).
			WithContext("line", 1).
			WithContext("format", a.config.Format.Name)
	}
	for i, label := range header {
		if strings.TrimSpace(label) != columns[i] {
			logger.Warnf("Header column %d is %q, format %s expects %q", i+1, label, a.config.Format.Name, columns[i])
		}
	}
	return nil
}

// checkSummaryCollision fails when a group file would land on the summary
// path. Case is ignored since the output root may be case-insensitive.
func (a *Analyzer) checkSummaryCollision(table *aggregator.Table) error {
	if !a.config.Summary {
		return nil
	}
	for _, group := range table.Groups() {
		if !strings.EqualFold(group.Key, formatter.SummaryGroupKey) {
			continue
		}
		if a.config.Limit != nil && router.Route(group.Totals.Cost, *a.config.Limit) == router.Overflow {
			continue
		}
		return apperrors.NewParsingError("SSP name collides with the summary file", nil).
			WithContext("ssp", group.Key).
			WithContext("line", group.Rows[0].Line).
			WithContext("summary", formatter.SummaryFileName(InputBase(a.config.ReportPath)))
	}
	return nil
}

// ensureRoot creates the output root and checks that files can be created in it
func (a *Analyzer) ensureRoot() error {
	root := a.config.OutputRoot
	if err := os.MkdirAll(root, 0755); err != nil {
		return apperrors.NewConfigError("failed to create output folder", err).WithContext("path", root)
	}
	if err := util.CheckWritableDir(root); err != nil {
		return apperrors.NewConfigError("output folder is not usable", err).WithContext("path", root)
	}
	return nil
}

func (a *Analyzer) write(ctx context.Context, table *aggregator.Table, result *Result, logger util.LoggerInterface) (err error) {
	if err := a.checkSummaryCollision(table); err != nil {
		return err
	}
	if err := a.ensureRoot(); err != nil {
		return err
	}

	writer, err := formatter.NewGroupWriter(a.config.Format)
	if err != nil {
		return err
	}

	resolver := router.NewPassthroughResolver(a.config.OutputRoot)
	if a.config.Limit != nil {
		resolver = router.NewResolver(a.config.OutputRoot, *a.config.Limit)
	}

	base := InputBase(a.config.ReportPath)

	var summary *formatter.SummarySession
	if a.config.Summary {
		summary = formatter.NewSummary(a.config.OutputRoot, base, a.config.SummaryPolicy)
		defer func() {
			if closeErr := summary.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if summary.Lines() > 0 {
				result.SummaryPath = summary.Path()
				logger.Debugf("Summary %s: %d lines", summary.Path(), summary.Lines())
			}
		}()
	}

	for _, group := range table.Groups() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("run stopped after %d of %d files: %w", result.FilesCreated, table.Len(), ctxErr)
		}

		dest, dir, err := resolver.Resolve(group.Totals.Cost)
		if err != nil {
			return apperrors.NewStorageError("failed to prepare output folder", err).WithContext("ssp", group.Key)
		}

		written, err := writer.Write(dir, base, group)
		if err != nil {
			return err
		}
		if written.Overwrote {
			logger.Infof("Overwriting %q", written.Path)
		} else {
			logger.Infof("Creating %q", written.Path)
		}

		if summary != nil {
			if err := summary.Add(group); err != nil {
				return err
			}
		}

		result.FilesCreated++
		result.Groups = append(result.Groups, GroupResult{
			Key:         group.Key,
			Destination: dest,
			Path:        written.Path,
			Overwrote:   written.Overwrote,
			Totals:      group.Totals,
			Rows:        len(group.Rows),
		})
	}
	return nil
}

// Report converts the result for the run-report formatters
func (r *Result) Report() *formatter.RunReport {
	report := &formatter.RunReport{
		RunID:        r.RunID,
		Input:        r.Input,
		Format:       r.Format,
		Root:         r.Root,
		Limit:        r.Limit,
		SummaryPath:  r.SummaryPath,
		FilesCreated: r.FilesCreated,
		Duration:     r.Duration,
		Groups:       make([]formatter.GroupRow, 0, len(r.Groups)),
	}
	for _, g := range r.Groups {
		report.Groups = append(report.Groups, formatter.GroupRow{
			SSP:         g.Key,
			Destination: g.Destination.String(),
			Path:        g.Path,
			Overwrote:   g.Overwrote,
			Rows:        g.Rows,
			Count:       g.Totals.Count,
			Cost:        g.Totals.Cost,
		})
	}
	return report
}

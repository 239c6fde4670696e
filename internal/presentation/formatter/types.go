package formatter

import (
	"fmt"
	"io"
	"time"
)

// GroupRow describes one written per-SSP file in a run report
type GroupRow struct {
	SSP         string  `json:"ssp"`
	Destination string  `json:"destination"`
	Path        string  `json:"path"`
	Overwrote   bool    `json:"overwrote"`
	Rows        int     `json:"rows"`
	Count       int64   `json:"count"`
	Cost        float64 `json:"cost"`
}

// RunReport is what a split run did, printed after the files are written
type RunReport struct {
	RunID        string        `json:"run_id"`
	Input        string        `json:"input"`
	Format       string        `json:"format"`
	Root         string        `json:"root"`
	Limit        *float64      `json:"limit,omitempty"`
	SummaryPath  string        `json:"summary_path,omitempty"`
	FilesCreated int           `json:"files_created"`
	Duration     time.Duration `json:"duration_ns"`
	Groups       []GroupRow    `json:"groups"`
}

// Formatter prints a run report
type Formatter interface {
	Format(report *RunReport) error
}

// Output kinds accepted by NewFormatter
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputNone  = "none"
)

// NewFormatter returns the run-report formatter for kind, writing to w
func NewFormatter(kind string, w io.Writer) (Formatter, error) {
	switch kind {
	case OutputTable, "":
		return NewTableFormatter(w), nil
	case OutputJSON:
		return NewJSONFormatter(w), nil
	case OutputNone:
		return NopFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output %q, expected table, json or none", kind)
	}
}

// NopFormatter prints nothing
type NopFormatter struct{}

func (NopFormatter) Format(*RunReport) error { return nil }

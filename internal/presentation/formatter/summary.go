package formatter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/penwyp/ivt-split/internal/core/model"
	"github.com/penwyp/ivt-split/internal/data/aggregator"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/util"
)

// SummaryPolicy decides what happens to an existing summary file
type SummaryPolicy string

const (
	// SummaryAppend keeps earlier lines, so re-running over the same
	// output root adds the groups again
	SummaryAppend SummaryPolicy = "append"
	// SummaryTruncate starts the summary over on every run
	SummaryTruncate SummaryPolicy = "truncate"
)

func ParseSummaryPolicy(s string) (SummaryPolicy, error) {
	switch SummaryPolicy(s) {
	case "", SummaryAppend:
		return SummaryAppend, nil
	case SummaryTruncate:
		return SummaryTruncate, nil
	default:
		return "", fmt.Errorf("unknown summary policy %q, expected append or truncate", s)
	}
}

// SummaryGroupKey is the SSP name whose group file would share the summary's
// path in the output root
const SummaryGroupKey = "SUM"

// SummaryFileName returns the combined summary name for an input base name
func SummaryFileName(inputBase string) string {
	return GroupFileName(SummaryGroupKey, inputBase)
}

var summaryHeader = []string{model.SummarySSPName, model.SummaryInvalidImps, model.SummaryInvalidImpsCost}

// SummarySession adds one line per group to <root>/SUM_<inputBase>.csv.
// The file is opened by the first Add, so a run without groups leaves it
// untouched.
type SummarySession struct {
	path   string
	policy SummaryPolicy
	file   *os.File
	csv    *csv.Writer
	lines  int
	closed bool
}

// NewSummary prepares a session under policy. The header is written only
// when the file is empty once opened.
func NewSummary(root, inputBase string, policy SummaryPolicy) *SummarySession {
	return &SummarySession{
		path:   filepath.Join(root, SummaryFileName(inputBase)),
		policy: policy,
	}
}

func (s *SummarySession) open() error {
	flags := os.O_CREATE | os.O_WRONLY
	if s.policy == SummaryTruncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	file, err := os.OpenFile(s.path, flags, 0644)
	if err != nil {
		return apperrors.NewStorageError("failed to open summary file", err).WithContext("path", s.path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return apperrors.NewStorageError("failed to stat summary file", err).WithContext("path", s.path)
	}

	s.file = file
	s.csv = csv.NewWriter(file)
	if info.Size() == 0 {
		return s.write(summaryHeader)
	}
	util.LogDebugf("Appending to existing summary %s (%d bytes)", s.path, info.Size())
	return nil
}

// Path returns the summary file location
func (s *SummarySession) Path() string {
	return s.path
}

// Lines returns how many group lines this session wrote
func (s *SummarySession) Lines() int {
	return s.lines
}

// Add writes the group's totals line
func (s *SummarySession) Add(g *aggregator.Group) error {
	if s.closed {
		return apperrors.NewStorageError("summary session is closed", nil).WithContext("path", s.path)
	}
	if s.file == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if err := s.write([]string{g.Key, strconv.FormatInt(g.Totals.Count, 10), util.FormatAmount(g.Totals.Cost)}); err != nil {
		return err
	}
	s.lines++
	return nil
}

func (s *SummarySession) write(record []string) error {
	if err := s.csv.Write(record); err != nil {
		return apperrors.NewStorageError("failed to write summary file", err).WithContext("path", s.path)
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return apperrors.NewStorageError("failed to write summary file", err).WithContext("path", s.path)
	}
	return nil
}

// Close releases the file. Calling it twice is a no-op.
func (s *SummarySession) Close() error {
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return apperrors.NewStorageError("failed to close summary file", err).WithContext("path", s.path)
	}
	return nil
}

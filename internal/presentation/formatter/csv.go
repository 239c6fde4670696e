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

// GroupFileName returns the per-SSP file name for an input base name
func GroupFileName(key, inputBase string) string {
	return fmt.Sprintf("%s_%s.csv", key, inputBase)
}

// WriteResult tells where a group file went and whether it replaced one
type WriteResult struct {
	Path      string
	Overwrote bool
}

// GroupWriter writes one CSV file per SSP: the totals line, an empty line,
// the header of the re-emitted columns and the original rows.
type GroupWriter struct {
	layout model.Layout
	header []string
}

func NewGroupWriter(format model.Format) (*GroupWriter, error) {
	layout, err := format.Layout()
	if err != nil {
		return nil, apperrors.NewConfigError("invalid report format", err).WithContext("format", format.Name)
	}
	return &GroupWriter{
		layout: layout,
		header: append([]string(nil), format.Output...),
	}, nil
}

// Write creates or truncates <dir>/<key>_<inputBase>.csv with the group's content
func (w *GroupWriter) Write(dir, inputBase string, g *aggregator.Group) (*WriteResult, error) {
	path := filepath.Join(dir, GroupFileName(g.Key, inputBase))
	result := &WriteResult{Path: path, Overwrote: util.FileExists(path)}

	file, err := os.Create(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create group file", err).WithContext("path", path)
	}

	cw := csv.NewWriter(file)
	records := make([][]string, 0, len(g.Rows)+3)
	records = append(records,
		[]string{model.TotalLabel, strconv.FormatInt(g.Totals.Count, 10), util.FormatAmount(g.Totals.Cost)},
		[]string{},
		w.header,
	)
	for _, row := range g.Rows {
		records = append(records, w.layout.Project(row))
	}

	if err := cw.WriteAll(records); err != nil {
		file.Close()
		return nil, apperrors.NewStorageError("failed to write group file", err).WithContext("path", path)
	}
	if err := file.Close(); err != nil {
		return nil, apperrors.NewStorageError("failed to close group file", err).WithContext("path", path)
	}

	return result, nil
}

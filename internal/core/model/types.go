package model

import "fmt"

// Row is one data record of an IVT report, kept exactly as read.
type Row struct {
	Line   int      // 1-based line (CSV) or sheet row (XLSX) where the record starts
	Fields []string // Raw cell values in source column order
}

// Format declares the column layout of one report variant: which columns
// the input has, which of them carry the identifier and the aggregated
// metrics, and which are re-emitted into the per-SSP files.
type Format struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Columns     []string `yaml:"columns" json:"columns" validate:"required,min=3,unique,dive,required"`
	ID          string   `yaml:"id" json:"id" validate:"required"`
	Count       string   `yaml:"count" json:"count" validate:"required"`
	Cost        string   `yaml:"cost" json:"cost" validate:"required"`
	Output      []string `yaml:"output" json:"output" validate:"required,min=1,dive,required"`
}

// ColumnIndex returns the position of the named column.
func (f Format) ColumnIndex(name string) (int, error) {
	for i, c := range f.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("format %q has no column %q", f.Name, name)
}

// Layout resolves column names to positions once, so per-row work is
// plain indexing.
func (f Format) Layout() (Layout, error) {
	var l Layout
	var err error
	if l.ID, err = f.ColumnIndex(f.ID); err != nil {
		return Layout{}, err
	}
	if l.Count, err = f.ColumnIndex(f.Count); err != nil {
		return Layout{}, err
	}
	if l.Cost, err = f.ColumnIndex(f.Cost); err != nil {
		return Layout{}, err
	}
	l.Output = make([]int, len(f.Output))
	for i, name := range f.Output {
		if l.Output[i], err = f.ColumnIndex(name); err != nil {
			return Layout{}, err
		}
	}
	l.Width = len(f.Columns)
	return l, nil
}

// Layout holds resolved column positions of a Format.
type Layout struct {
	Width  int
	ID     int
	Count  int
	Cost   int
	Output []int
}

// Project returns the output columns of a row, in Output order.
func (l Layout) Project(row Row) []string {
	out := make([]string, len(l.Output))
	for i, idx := range l.Output {
		out[i] = row.Fields[idx]
	}
	return out
}

// BuiltinFormats returns the report variants known without a config file.
func BuiltinFormats() []Format {
	return []Format{
		{
			Name:        FormatIVT,
			Description: "Publisher ID with invalid impressions and their cost",
			Columns:     []string{ColumnPublisherID, ColumnInvalidImpressions, ColumnInvalidCost},
			ID:          ColumnPublisherID,
			Count:       ColumnInvalidImpressions,
			Cost:        ColumnInvalidCost,
			Output:      []string{ColumnPublisherID, ColumnInvalidImpressions, ColumnInvalidCost},
		},
		{
			Name:        FormatIVTActivity,
			Description: "Publisher ID with total and invalid activity, only the invalid pair is re-emitted",
			Columns: []string{
				ColumnPublisherID, ColumnImpressions, ColumnCost,
				ColumnInvalidImpressions, ColumnInvalidCost,
			},
			ID:     ColumnPublisherID,
			Count:  ColumnInvalidImpressions,
			Cost:   ColumnInvalidCost,
			Output: []string{ColumnPublisherID, ColumnInvalidImpressions, ColumnInvalidCost},
		},
	}
}

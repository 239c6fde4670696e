package aggregator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/penwyp/ivt-split/internal/core/model"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/util"
)

// keySeparator splits the SSP name from the rest of a publisher id.
const keySeparator = "_"

// Totals holds the accumulated metrics of one SSP.
type Totals struct {
	Count int64   `json:"count"`
	Cost  float64 `json:"cost"`
}

// Add accumulates another pair of metrics.
func (t *Totals) Add(count int64, cost float64) {
	t.Count += count
	t.Cost += cost
}

// Group is one SSP with its totals and the original rows in input order.
type Group struct {
	Key    string
	Totals Totals
	Rows   []model.Row
}

// Table maps SSP names to groups and remembers first-seen key order.
type Table struct {
	groups map[string]*Group
	keys   []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{groups: make(map[string]*Group)}
}

// GetOrInsert returns the group for key, inserting a zero group first if needed.
func (t *Table) GetOrInsert(key string) *Group {
	if g, ok := t.groups[key]; ok {
		return g
	}
	g := &Group{Key: key}
	t.groups[key] = g
	t.keys = append(t.keys, key)
	return g
}

// Groups returns groups in first-seen order.
func (t *Table) Groups() []*Group {
	out := make([]*Group, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.groups[k])
	}
	return out
}

// Len returns the number of groups.
func (t *Table) Len() int {
	return len(t.keys)
}

// ExtractSSP extracts the SSP name from a publisher id.
// For example: "adconductor_1000764754" -> "adconductor",
// "gumgum_1287181553_12980" -> "gumgum", "rubicon" -> "rubicon".
func ExtractSSP(publisherID string) string {
	key, _, _ := strings.Cut(publisherID, keySeparator)
	return key
}

// Aggregate groups rows by SSP and sums their count and cost columns.
// The first malformed field aborts the whole aggregation.
func Aggregate(rows []model.Row, format model.Format) (*Table, error) {
	layout, err := format.Layout()
	if err != nil {
		return nil, apperrors.NewConfigError("invalid report format", err)
	}

	table := NewTable()
	for _, row := range rows {
		if len(row.Fields) != layout.Width {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("expected %d columns, got %d", layout.Width, len(row.Fields)), nil).
				WithContext("line", row.Line)
		}

		id := row.Fields[layout.ID]
		key := ExtractSSP(id)
		if key == "" {
			return nil, apperrors.NewParsingError("empty SSP name in publisher id", nil).
				WithContext("line", row.Line).
				WithContext("value", id)
		}
		if !validKey(key) {
			return nil, apperrors.NewParsingError("SSP name cannot be used as a file name", nil).
				WithContext("line", row.Line).
				WithContext("value", id)
		}

		count, err := parseCount(row.Fields[layout.Count])
		if err != nil {
			return nil, apperrors.NewParsingError("invalid count value", err).
				WithContext("line", row.Line).
				WithContext("column", format.Count)
		}
		cost, err := parseCost(row.Fields[layout.Cost])
		if err != nil {
			return nil, apperrors.NewParsingError("invalid cost value", err).
				WithContext("line", row.Line).
				WithContext("column", format.Cost)
		}

		group := table.GetOrInsert(key)
		group.Rows = append(group.Rows, row)
		group.Totals.Add(count, cost)
	}

	util.LogDebug(fmt.Sprintf("Aggregated %d rows into %d SSP groups", len(rows), table.Len()))
	return table, nil
}

// validKey rejects names that would place the group file outside its folder
func validKey(key string) bool {
	return key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

func parseCount(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func parseCost(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

package aggregator

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/penwyp/ivt-split/internal/core/model"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ivtFormat() model.Format {
	return model.BuiltinFormats()[0]
}

func activityFormat() model.Format {
	return model.BuiltinFormats()[1]
}

func rows(records ...[]string) []model.Row {
	out := make([]model.Row, len(records))
	for i, r := range records {
		out[i] = model.Row{Line: i + 2, Fields: r}
	}
	return out
}

func TestExtractSSP(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"adconductor_1000764754", "adconductor"},
		{"gumgum_1287181553_12980", "gumgum"},
		{"rubicon", "rubicon"},
		{"_leading", ""},
		{"trailing_", "trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSSP(tt.input))
		})
	}
}

func TestAggregateSumsPerSSP(t *testing.T) {
	input := rows(
		[]string{"adconductor_1", "1", "0.01"},
		[]string{"gumgum_5_7", "10", "1.25"},
		[]string{"adconductor_2", "2", "0.02"},
		[]string{"gumgum_6", "5", "0.75"},
	)

	table, err := Aggregate(input, ivtFormat())
	require.NoError(t, err)

	assert.Equal(t, []string{"adconductor", "gumgum"}, keys(table))
	assert.Equal(t, 2, table.Len())

	ad := findGroup(table, "adconductor")
	require.NotNil(t, ad)
	assert.Equal(t, int64(3), ad.Totals.Count)
	assert.InDelta(t, 0.03, ad.Totals.Cost, 1e-9)

	gg := findGroup(table, "gumgum")
	require.NotNil(t, gg)
	assert.Equal(t, int64(15), gg.Totals.Count)
	assert.InDelta(t, 2.0, gg.Totals.Cost, 1e-9)

	assert.Nil(t, findGroup(table, "missing"))
}

func TestAggregateKeepsRowOrderAndValues(t *testing.T) {
	input := rows(
		[]string{"a_3", "3", "0.300"},
		[]string{"b_1", "1", "1"},
		[]string{"a_1", "1", "0.1"},
		[]string{"a_2", "2", "0.20"},
	)

	table, err := Aggregate(input, ivtFormat())
	require.NoError(t, err)

	want := []model.Row{input[0], input[2], input[3]}
	if diff := cmp.Diff(want, findGroup(table, "a").Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateDoesNotRoundDuringAccumulation(t *testing.T) {
	input := rows(
		[]string{"x_1", "1", "0.004"},
		[]string{"x_2", "1", "0.004"},
	)

	table, err := Aggregate(input, ivtFormat())
	require.NoError(t, err)

	// Rounding each row to 2dp would give 0.00
	assert.InDelta(t, 0.008, findGroup(table, "x").Totals.Cost, 1e-12)
}

func TestAggregateActivityFormatUsesInvalidPair(t *testing.T) {
	input := rows(
		[]string{"pubmatic_1", "1000", "12.5", "4", "0.5"},
		[]string{"pubmatic_2", "2000", "20", "6", "0.25"},
	)

	table, err := Aggregate(input, activityFormat())
	require.NoError(t, err)

	g := findGroup(table, "pubmatic")
	assert.Equal(t, Totals{Count: 10, Cost: 0.75}, g.Totals)
}

func TestAggregateTrimsNumericWhitespace(t *testing.T) {
	table, err := Aggregate(rows([]string{"a_1", " 7 ", " 1.5"}), ivtFormat())
	require.NoError(t, err)
	assert.Equal(t, int64(7), findGroup(table, "a").Totals.Count)
}

func TestAggregateErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     []model.Row
		errType   apperrors.ErrorType
		errSubstr string
	}{
		{
			name:      "non numeric cost",
			input:     rows([]string{"a_1", "1", "0.01"}, []string{"b_1", "1", "n/a"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "invalid cost value",
		},
		{
			name:      "fractional count",
			input:     rows([]string{"a_1", "1.5", "0.01"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "invalid count value",
		},
		{
			name:      "wrong column count",
			input:     rows([]string{"a_1", "1"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "expected 3 columns, got 2",
		},
		{
			name:      "empty publisher id",
			input:     rows([]string{"", "1", "0.01"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "empty SSP name",
		},
		{
			name:      "parent directory name",
			input:     rows([]string{"a_1", "1", "0.01"}, []string{"../escaped_1", "1", "0.01"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "cannot be used as a file name (line=3 value=../escaped_1)",
		},
		{
			name:      "dot name",
			input:     rows([]string{"._1", "1", "0.01"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "cannot be used as a file name",
		},
		{
			name:      "slash in name",
			input:     rows([]string{"a/b_1", "1", "0.01"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "cannot be used as a file name",
		},
		{
			name:      "backslash in name",
			input:     rows([]string{`a\b_1`, "1", "0.01"}),
			errType:   apperrors.ErrTypeParsing,
			errSubstr: "cannot be used as a file name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Aggregate(tt.input, ivtFormat())
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, apperrors.IsType(err, tt.errType), "unexpected error type: %v", err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestAggregateErrorNamesLine(t *testing.T) {
	_, err := Aggregate(rows([]string{"a_1", "1", "0.01"}, []string{"b_1", "1", "bad"}), ivtFormat())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line=3")
}

func TestAggregateInvalidFormat(t *testing.T) {
	f := ivtFormat()
	f.Cost = "nope"

	_, err := Aggregate(rows([]string{"a_1", "1", "0.01"}), f)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestTableGetOrInsert(t *testing.T) {
	table := NewTable()
	g1 := table.GetOrInsert("k")
	g1.Totals.Add(2, 1.5)
	g2 := table.GetOrInsert("k")

	assert.Same(t, g1, g2)
	assert.Equal(t, Totals{Count: 2, Cost: 1.5}, g2.Totals)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"k"}, keys(table))
}

func TestAggregateSumMatchesArithmeticSum(t *testing.T) {
	var input []model.Row
	var wantCount int64
	var wantCost float64
	for i := 0; i < 200; i++ {
		count := int64(i % 7)
		cost := float64(i%13) * 0.37
		wantCount += count
		wantCost += cost
		input = append(input, model.Row{
			Line:   i + 2,
			Fields: []string{fmt.Sprintf("ssp_%d", i), fmt.Sprintf("%d", count), fmt.Sprintf("%v", cost)},
		})
	}

	table, err := Aggregate(input, ivtFormat())
	require.NoError(t, err)
	g := findGroup(table, "ssp")
	assert.Equal(t, wantCount, g.Totals.Count)
	assert.True(t, math.Abs(wantCost-g.Totals.Cost) < 1e-9)
	assert.Len(t, g.Rows, 200)
}

func findGroup(table *Table, key string) *Group {
	for _, g := range table.Groups() {
		if g.Key == key {
			return g
		}
	}
	return nil
}

func keys(table *Table) []string {
	var out []string
	for _, g := range table.Groups() {
		out = append(out, g.Key)
	}
	return out
}

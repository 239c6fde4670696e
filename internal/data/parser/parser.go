package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/penwyp/ivt-split/internal/core/model"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/util"
	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Report is the parsed content of one IVT report file.
type Report struct {
	Path   string
	Header []string
	Rows   []model.Row
}

// Parser reads IVT reports. CSV is the native format; .xlsx workbooks are
// read from their first sheet.
type Parser struct {
	sheet string
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// WithSheet selects a named sheet for .xlsx inputs instead of the first one.
func (p *Parser) WithSheet(name string) *Parser {
	p.sheet = name
	return p
}

// IsReportFile reports whether path has an extension the parser can read.
func IsReportFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ParseFile reads the whole report at path into memory. The header line is
// returned separately and never appears in Rows.
func (p *Parser) ParseFile(path string) (*Report, error) {
	start := time.Now()
	util.LogDebug(fmt.Sprintf("Start parsing report: %s", path))

	var (
		report *Report
		err    error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		report, err = p.parseWorkbook(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to read report", err).WithContext("path", path)
		}
		report, err = p.Parse(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}

	report.Path = path
	util.LogDebug(fmt.Sprintf("Parsed report %s: %d rows in %v", path, len(report.Rows), time.Since(start)))
	return report, nil
}

// Parse reads a CSV report from r.
func (p *Parser) Parse(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read report", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	// Column count is checked against the declared format, not here
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewParsingError("report is empty, expected a header line", nil)
	}
	if err != nil {
		return nil, apperrors.NewParsingError("malformed header line", err)
	}

	report := &Report{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("malformed report line", err)
		}
		line, _ := reader.FieldPos(0)
		report.Rows = append(report.Rows, model.Row{Line: line, Fields: record})
	}
	return report, nil
}

func (p *Parser) parseWorkbook(path string) (*Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheet := p.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewParsingError("workbook has no sheets", nil).WithContext("path", path)
		}
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read sheet", err).
			WithContext("path", path).
			WithContext("sheet", sheet)
	}
	if len(records) == 0 {
		return nil, apperrors.NewParsingError("report is empty, expected a header line", nil).WithContext("path", path)
	}

	report := &Report{Header: records[0]}
	width := len(records[0])
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		// GetRows drops trailing empty cells
		for len(record) < width {
			record = append(record, "")
		}
		report.Rows = append(report.Rows, model.Row{Line: i + 2, Fields: record})
	}
	return report, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

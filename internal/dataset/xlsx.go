package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/demandcast/backend/internal/models"
)

// ParseXLSX reads the first sheet of an uploaded workbook. Cells arrive as
// their displayed text, so the same row assembly as CSV applies.
func ParseXLSX(r io.Reader) (*Parsed, []string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	pos, missing := mapHeaders(rows[0])
	if len(missing) > 0 {
		return nil, nil, &SchemaError{Missing: missing}
	}
	_, hasSales := pos["Sales Name"]

	var errs []string
	var records []models.TransactionRecord
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		get := func(name string) string {
			p, ok := pos[name]
			if !ok || p >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[p])
		}
		record, err := buildRecord(get, rowNum)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		records = append(records, record)
	}
	return &Parsed{Records: records, HasSales: hasSales}, errs, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

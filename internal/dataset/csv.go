package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/demandcast/backend/internal/models"
)

// ParseCSV reads one uploaded CSV. The first row is the header; mapping is
// case/space/punctuation-insensitive and accepts the synonym spellings.
func ParseCSV(r io.Reader) (*Parsed, []string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	pos, missing := mapHeaders(headers)
	if len(missing) > 0 {
		return nil, nil, &SchemaError{Missing: missing}
	}
	_, hasSales := pos["Sales Name"]

	var errs []string
	var records []models.TransactionRecord
	rowNum := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		get := func(name string) string {
			p, ok := pos[name]
			if !ok || p >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[p])
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

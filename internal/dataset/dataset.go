package dataset

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/utils"
)

// Parsed is the outcome of one ingestion: the records plus what the header
// mapping discovered about the optional salesperson dimension.
type Parsed struct {
	Records  []models.TransactionRecord
	HasSales bool
}

// SchemaError reports the required columns an upload is missing. It is fatal
// and synchronous: no job is ever spawned for such a file.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

type column struct {
	name     string
	synonyms []string
	required bool
}

// Synonyms are matched against normalized headers. The Indonesian spellings
// cover the exports this started from.
var columns = []column{
	{name: "Date", synonyms: []string{"date", "transaction date", "invoice date", "tanggal"}, required: true},
	{name: "Customer Name", synonyms: []string{"customer name", "customer", "client name", "client", "nama customer"}, required: true},
	{name: "Item Name", synonyms: []string{"item name", "item", "product name", "product", "nama barang"}, required: true},
	{name: "Quantity", synonyms: []string{"quantity", "qty", "jumlah"}, required: true},
	{name: "Amount", synonyms: []string{"amount", "total amount", "total", "nilai"}, required: true},
	{name: "Currency", synonyms: []string{"currency", "mata uang"}, required: true},
	{name: "City", synonyms: []string{"city", "kota"}, required: true},
	{name: "Document Number", synonyms: []string{"document number", "document no", "doc number", "invoice number", "invoice no", "no dokumen"}, required: true},
	{name: "Sales Name", synonyms: []string{"sales name", "salesperson", "sales person", "sales rep", "sales", "nama sales"}, required: false},
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "﻿", "")
	h = strings.ToLower(strings.TrimSpace(h))
	for _, sep := range []string{"_", "-", ".", "/"} {
		h = strings.ReplaceAll(h, sep, " ")
	}
	return strings.Join(strings.Fields(h), " ")
}

// mapHeaders resolves each canonical column to its position in the header
// row and lists the required ones that could not be found.
func mapHeaders(headers []string) (map[string]int, []string) {
	idx := map[string]int{}
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, taken := idx[key]; !taken {
			idx[key] = i
		}
	}

	pos := map[string]int{}
	var missing []string
	for _, col := range columns {
		found := -1
		for _, syn := range col.synonyms {
			if p, ok := idx[syn]; ok {
				found = p
				break
			}
		}
		if found >= 0 {
			pos[col.name] = found
		} else if col.required {
			missing = append(missing, col.name)
		}
	}
	return pos, missing
}

func parseNumber(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.ParseFloat(s, 64)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty numeric value")
	}
	return decimal.NewFromString(s)
}

// buildRecord assembles one record from a positional getter. The date must
// parse here even though it stays raw text on the record: a file that sneaks
// a bad date past upload would otherwise fail a job much later.
func buildRecord(get func(name string) string, rowNum int) (models.TransactionRecord, error) {
	dateRaw := get("Date")
	if _, err := utils.ParseDate(dateRaw); err != nil {
		return models.TransactionRecord{}, fmt.Errorf("row %d: %v", rowNum, err)
	}
	qty, err := parseNumber(get("Quantity"))
	if err != nil {
		return models.TransactionRecord{}, fmt.Errorf("row %d: Quantity: %v", rowNum, err)
	}
	amount, err := parseAmount(get("Amount"))
	if err != nil {
		return models.TransactionRecord{}, fmt.Errorf("row %d: Amount: %v", rowNum, err)
	}

	return models.TransactionRecord{
		Date:           strings.TrimSpace(dateRaw),
		SalesName:      get("Sales Name"),
		CustomerName:   get("Customer Name"),
		ItemName:       get("Item Name"),
		Quantity:       qty,
		Amount:         amount,
		Currency:       get("Currency"),
		City:           get("City"),
		DocumentNumber: get("Document Number"),
	}, nil
}

// Parse dispatches on the upload's extension. Row-level problems come back
// as the string slice; a missing required column or an unreadable file is
// the error.
func Parse(filename string, r io.Reader) (*Parsed, []string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, nil, fmt.Errorf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename))
	}
}

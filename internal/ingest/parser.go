// Package ingest parses uploaded trial balance files (CSV or XLSX) into
// ingestion rows. Format is chosen by the caller from the file extension;
// there is no content sniffing.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/service"
)

// Required header columns. Remaining known columns are optional.
var requiredColumns = []string{"company_code", "gl_account", "prev_amount", "curr_amount"}

// ParseCSV reads a comma-separated trial balance with a header row.
func ParseCSV(r io.Reader) ([]service.IngestRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "could not parse CSV")
	}
	return rowsFromRecords(records)
}

// ParseXLSX reads the first sheet of an Excel workbook with a header row.
func ParseXLSX(r io.Reader) ([]service.IngestRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "could not open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "could not read sheet")
	}
	return rowsFromRecords(records)
}

func rowsFromRecords(records [][]string) ([]service.IngestRow, error) {
	if len(records) < 2 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "file needs a header row and at least one data row")
	}

	idx, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]service.IngestRow, 0, len(records)-1)
	for n, record := range records[1:] {
		row, err := rowFromRecord(record, idx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation,
				fmt.Sprintf("row %d", n+2))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerIndex maps normalized column names to their positions.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[normalizeColumn(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, apperrors.Newf(apperrors.ErrCodeValidation, "missing required column %q", col)
		}
	}
	return idx, nil
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	// Accept the FS-grouping spellings seen in upstream exports.
	if name == "fs_grouping" {
		name = "fs_group"
	}
	return name
}

func rowFromRecord(record []string, idx map[string]int) (service.IngestRow, error) {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	prev, err := parseAmount(cell("prev_amount"))
	if err != nil {
		return service.IngestRow{}, fmt.Errorf("prev_amount: %w", err)
	}
	curr, err := parseAmount(cell("curr_amount"))
	if err != nil {
		return service.IngestRow{}, fmt.Errorf("curr_amount: %w", err)
	}

	return service.IngestRow{
		CompanyCode:   cell("company_code"),
		GLAccount:     cell("gl_account"),
		GLDescription: cell("gl_description"),
		DocNo:         cell("doc_no"),
		PostingDate:   cell("posting_date"),
		PrevAmount:    prev,
		CurrAmount:    curr,
		Currency:      cell("currency"),
		CostCenter:    cell("cost_center"),
		ProfitCenter:  cell("profit_center"),
		LineText:      cell("text"),
		Reference:     cell("reference"),
		FSGroup:       cell("fs_group"),
	}, nil
}

// parseAmount accepts plain numbers plus the thousand-separator formatting
// spreadsheet exports tend to carry. Empty cells are zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

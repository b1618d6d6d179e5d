package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/model"
)

// GenericCSVParser parses date,description,amount[,reference] CSVs
// with a header row. Dates are ISO (2006-01-02); amounts are signed,
// negative for money out.
type GenericCSVParser struct{}

const (
	genericDateFormat = "2006-01-02"
	genericColDate    = 0
	genericColDesc    = 1
	genericColAmount  = 2
	genericColRef     = 3
)

// Format returns the parser name.
func (p *GenericCSVParser) Format() string { return "generic" }

// Parse reads a generic CSV and returns imported transactions.
func (p *GenericCSVParser) Parse(r io.Reader) ([]model.ImportedTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var txns []model.ImportedTransaction
	for i, rec := range records[1:] {
		txn, err := parseGenericRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func parseGenericRow(rec []string) (model.ImportedTransaction, error) {
	if len(rec) < 3 {
		return model.ImportedTransaction{}, fmt.Errorf("expected at least 3 fields, got %d", len(rec))
	}

	date, err := time.Parse(genericDateFormat, rec[genericColDate])
	if err != nil {
		return model.ImportedTransaction{}, fmt.Errorf("parsing date %q: %w", rec[genericColDate], err)
	}

	amount, err := decimal.NewFromString(rec[genericColAmount])
	if err != nil {
		return model.ImportedTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[genericColAmount], err)
	}

	var ref string
	if len(rec) > genericColRef {
		ref = rec[genericColRef]
	}

	return model.ImportedTransaction{
		Date:        date,
		Description: rec[genericColDesc],
		Amount:      amount,
		Reference:   ref,
	}, nil
}

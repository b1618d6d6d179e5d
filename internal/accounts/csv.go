package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tallyhq/tally/internal/model"
)

const (
	numFields   = 5
	colNumber   = 0
	colName     = 1
	colType     = 2
	colSubtype  = 3
	colIsSystem = 4
)

// ReadAccountRows parses a bulk-import CSV
// (account_number,name,type,subtype,is_system) into AccountRows.
func ReadAccountRows(r io.Reader) ([]AccountRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var rows []AccountRow
	for i, rec := range records[1:] {
		row, err := unmarshalAccountRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func unmarshalAccountRow(record []string) (AccountRow, error) {
	if len(record) != numFields {
		return AccountRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	accountType := model.AccountType(record[colType])
	if !model.ValidAccountType(accountType) {
		return AccountRow{}, fmt.Errorf("invalid account type %q", record[colType])
	}

	isSystem := false
	if record[colIsSystem] != "" {
		var err error
		isSystem, err = strconv.ParseBool(record[colIsSystem])
		if err != nil {
			return AccountRow{}, fmt.Errorf("parsing is_system %q: %w", record[colIsSystem], err)
		}
	}

	return AccountRow{
		AccountNumber: record[colNumber],
		Name:          record[colName],
		Type:          accountType,
		Subtype:       record[colSubtype],
		IsSystem:      isSystem,
	}, nil
}

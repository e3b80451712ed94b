package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes a header line and one formatted line per row. Action
// columns and nil rows are skipped.
func WriteCSV(w io.Writer, cols []Column, rows []any) error {
	var exported []Column
	for _, col := range cols {
		if !col.IsAction && col.Field != "" {
			exported = append(exported, col)
		}
	}

	cw := csv.NewWriter(w)

	header := make([]string, len(exported))
	for i, col := range exported {
		header[i] = col.Header
		if header[i] == "" {
			header[i] = col.Field
		}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(exported))
	for n, row := range rows {
		if isNilRow(row) {
			continue
		}
		for i, col := range exported {
			record[i] = CellValue(col, row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", n, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

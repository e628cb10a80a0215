package core

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes the Columns header followed by one row per record, in order.
// Fields are quoted per RFC 4180 and records end with CRLF.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, rec := range records {
		if err := cw.Write(Flatten(rec).Values()); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

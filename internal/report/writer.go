package report

import (
	"encoding/csv"
	"os"

	"github.com/go-errors/errors"
)

// WriteCSV writes the header and every row to path through a quoting CSV
// encoder. Rows are assembled fully in memory first, so a pipeline failure
// never leaves a partial report behind.
func WriteCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, 0)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, 0)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteCSV writes a header row followed by every row of t, without an index column.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)

	err := writer.Write(t.Columns)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		for j := range record {
			record[j] = FormatValue(row[j])
		}
		err = writer.Write(record)
		if err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// stageFile creates a temporary file next to path, it is moved into place
// with commitFile once it has been fully written.
func stageFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	return os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
}

func commitFile(tmp, path string) error {
	err := os.Chmod(tmp, 0644)
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeCSVStaged(path string, t Table) (string, error) {
	f, err := stageFile(path)
	if err != nil {
		return "", err
	}
	err = WriteCSV(f, t)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

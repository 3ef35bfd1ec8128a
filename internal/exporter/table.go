package exporter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"nadlan-export/internal/scrapers/nadlan"
)

// Table is a set of records laid out in rows and columns. Cells a record has no
// value for are nil.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable lays out records in order, the columns are the union of their keys
// in the order they were first seen.
func NewTable(records []nadlan.Record) Table {
	index := map[string]int{}
	var columns []string
	for _, record := range records {
		for _, key := range record.Keys() {
			if _, seen := index[key]; seen {
				continue
			}
			index[key] = len(columns)
			columns = append(columns, key)
		}
	}

	rows := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(columns))
		for _, key := range record.Keys() {
			row[index[key]], _ = record.Get(key)
		}
		rows[i] = row
	}

	return Table{Columns: columns, Rows: rows}
}

// Head returns a table with at most the first n rows.
func (t Table) Head(n int) Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

const dealTimeLayout = "2006-01-02 15:04:05"

// FormatValue renders a cell the way it is written to text outputs.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		layout := dealTimeLayout
		if v.Nanosecond() != 0 {
			layout += ".000000"
		}
		// naive times parse as UTC, any other zone keeps its offset
		if v.Location() != time.UTC {
			layout += "-07:00"
		}
		return v.Format(layout)
	case map[string]any, []any, nadlan.Record:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}

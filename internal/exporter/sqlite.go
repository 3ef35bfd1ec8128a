package exporter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteTable = "deals"

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnAffinity picks INTEGER or REAL when every non-null cell of a column
// is such a number, TEXT otherwise.
func columnAffinity(t Table, column int) string {
	affinity := ""
	for _, row := range t.Rows {
		var kind string
		switch v := row[column].(type) {
		case nil:
			continue
		case int, int64:
			kind = "INTEGER"
		case float64:
			kind = "REAL"
		case json.Number:
			if _, err := v.Int64(); err == nil {
				kind = "INTEGER"
			} else if _, err := v.Float64(); err == nil {
				kind = "REAL"
			} else {
				return "TEXT"
			}
		default:
			return "TEXT"
		}

		switch {
		case affinity == "":
			affinity = kind
		case affinity != kind:
			affinity = "REAL"
		}
	}
	if affinity == "" {
		return "TEXT"
	}
	return affinity
}

func sqliteValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case int, int64, float64:
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return FormatValue(v)
	}
}

// WriteTable replaces the deals table of db with the contents of t.
func WriteTable(ctx context.Context, db *sql.DB, t Table) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "drop table if exists "+quoteIdent(sqliteTable))
	if err != nil {
		return fmt.Errorf("drop table: %w", err)
	}

	if len(t.Columns) == 0 {
		return tx.Commit()
	}

	definitions := make([]string, len(t.Columns))
	placeholders := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		definitions[i] = fmt.Sprintf("%s %s", quoteIdent(column), columnAffinity(t, i))
		placeholders[i] = "?"
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		"create table %s (%s)",
		quoteIdent(sqliteTable),
		strings.Join(definitions, ", "),
	))
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"insert into %s values (%s)",
		quoteIdent(sqliteTable),
		strings.Join(placeholders, ", "),
	))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for i, row := range t.Rows {
		for j := range args {
			args[j] = sqliteValue(row[j])
		}
		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func writeSQLiteStaged(ctx context.Context, path string, t Table) (string, error) {
	f, err := stageFile(path)
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	f.Close()

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	err = WriteTable(ctx, db, t)
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

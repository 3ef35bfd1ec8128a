// Package exporter collects deals from a nadlan.DealIterator and writes them
// out as a table.
package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"nadlan-export/internal/components/telemetry"
	"nadlan-export/internal/scrapers/nadlan"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	report_export_run     = "export.run"
	report_export_rows    = "export.rows"
	report_export_write   = "export.write"
	report_export_preview = "export.preview"
)

const DefaultPreviewRows = 3

type Options struct {
	// CSVPath is required.
	CSVPath string
	// SQLitePath additionally writes the table to a sqlite database when set.
	SQLitePath string
	// Preview receives the first PreviewRows rows rendered as a table when set.
	Preview     io.Writer
	PreviewRows int
	Telemetry   telemetry.API
}

type Summary struct {
	Rows    int
	Columns int
	Pages   int
	Skipped int
}

// Collect drains deals and returns their records in fetch order.
func Collect(ctx context.Context, deals *nadlan.DealIterator) ([]nadlan.Record, error) {
	var records []nadlan.Record
	for deals.Next(ctx) {
		records = append(records, deals.Deal().Record())
	}
	if err := deals.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// RenderPreview writes the first n rows of t to w.
func RenderPreview(w io.Writer, t Table, n int) {
	head := t.Head(n)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	header := make(table.Row, len(head.Columns))
	for i, column := range head.Columns {
		header[i] = column
	}
	tw.AppendHeader(header)

	for _, row := range head.Rows {
		cells := make(table.Row, len(row))
		for i, value := range row {
			cells[i] = FormatValue(value)
		}
		tw.AppendRow(cells)
	}

	tw.SetStyle(table.StyleRounded)
	tw.Render()
}

// Run fetches every deal from deals and writes them to the configured outputs.
// Nothing is written unless every deal was fetched and every output was
// fully written.
func Run(ctx context.Context, deals *nadlan.DealIterator, opts Options) (Summary, error) {
	if opts.CSVPath == "" {
		return Summary{}, errors.New("exporter: no csv path given")
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	tel = telemetry.NewScopedAPI("exporter", tel)
	previewRows := opts.PreviewRows
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}

	tel.ReportDebug(report_export_run, "start", opts.CSVPath)

	records, err := Collect(ctx, deals)
	if err != nil {
		tel.ReportBroken(report_export_run, err, deals.Pages())
		return Summary{}, fmt.Errorf("collect deals: %w", err)
	}

	t := NewTable(records)
	tel.ReportCount(report_export_rows, int64(len(t.Rows)))

	csvTmp, err := writeCSVStaged(opts.CSVPath, t)
	if err != nil {
		tel.ReportBroken(report_export_write, err, opts.CSVPath)
		return Summary{}, fmt.Errorf("write csv: %w", err)
	}

	var sqliteTmp string
	if opts.SQLitePath != "" {
		sqliteTmp, err = writeSQLiteStaged(ctx, opts.SQLitePath, t)
		if err != nil {
			os.Remove(csvTmp)
			tel.ReportBroken(report_export_write, err, opts.SQLitePath)
			return Summary{}, fmt.Errorf("write sqlite: %w", err)
		}
	}

	err = commitFile(csvTmp, opts.CSVPath)
	if err != nil {
		os.Remove(csvTmp)
		if sqliteTmp != "" {
			os.Remove(sqliteTmp)
		}
		return Summary{}, fmt.Errorf("write csv: %w", err)
	}
	if sqliteTmp != "" {
		err = commitFile(sqliteTmp, opts.SQLitePath)
		if err != nil {
			os.Remove(sqliteTmp)
			return Summary{}, fmt.Errorf("write sqlite: %w", err)
		}
	}

	// the head rows always land in the debug log, Preview gets a copy
	var preview bytes.Buffer
	RenderPreview(&preview, t, previewRows)
	tel.ReportDebug(report_export_preview, "\n"+preview.String())
	if opts.Preview != nil {
		_, err = opts.Preview.Write(preview.Bytes())
		if err != nil {
			tel.ReportWarning(report_export_preview, err)
		}
	}

	tel.ReportDebug(report_export_run, "done", len(t.Rows), deals.Pages())
	return Summary{
		Rows:    len(t.Rows),
		Columns: len(t.Columns),
		Pages:   deals.Pages(),
		Skipped: deals.Skipped(),
	}, nil
}

package exporter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nadlan-export/internal/components/telemetry"
	"nadlan-export/internal/scrapers/nadlan"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type pagedFetcher struct {
	pages [][]nadlan.Record
	err   error
}

func (f pagedFetcher) FetchDeals(ctx context.Context, query nadlan.DealsQuery, page int) (nadlan.PageResponse, error) {
	if f.err != nil {
		return nadlan.PageResponse{}, f.err
	}
	return nadlan.PageResponse{
		AllResults: f.pages[page],
		IsLastPage: page == len(f.pages)-1,
	}, nil
}

func deal(i int, extra ...any) nadlan.Record {
	pairs := append([]any{
		"DEALDATETIME", fmt.Sprintf("2023-05-%02dT00:00:00", i+1),
		"GUSH", fmt.Sprintf("6638-%d-1", i),
		"DEALAMOUNT", fmt.Sprintf("%d,000", i+1),
	}, extra...)
	return nadlan.NewRecord(pairs...)
}

func iterator(fetcher nadlan.DealsFetcher) *nadlan.DealIterator {
	return nadlan.NewDealIterator(fetcher, nadlan.QueryByNeighborhood("65210992"), nadlan.PagerOptions{MaxPages: 10})
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunWritesEveryRecord(t *testing.T) {
	fetcher := pagedFetcher{pages: [][]nadlan.Record{
		{deal(0), deal(1, "FLOORNO", "3")},
		{deal(2, "ROOMS", json.Number("4.5")), deal(3), deal(4)},
	}}
	path := filepath.Join(t.TempDir(), "out", "deals.csv")
	var preview bytes.Buffer
	recorder := &telemetry.Recorder{}

	summary, err := Run(context.Background(), iterator(fetcher), Options{
		CSVPath:   path,
		Preview:   &preview,
		Telemetry: recorder,
	})
	require.NoError(t, err)

	expectedColumns := []string{
		"DEALDATETIME", "GUSH", "DEALAMOUNT",
		"block", "parcel", "lot", "price", "deal_time",
		"FLOORNO", "ROOMS",
	}
	require.Equal(t, Summary{Rows: 5, Columns: len(expectedColumns), Pages: 2}, summary)

	rows := readCSV(t, path)
	require.Len(t, rows, 6)
	if diff := cmp.Diff(expectedColumns, rows[0]); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]string{
		"2023-05-02T00:00:00", "6638-1-1", "2,000",
		"6638", "1", "1", "2000", "2023-05-02 00:00:00",
		"3", "",
	}, rows[2]); diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, "4.5", rows[3][9])
	require.Equal(t, "", rows[3][8])

	// header plus 3 rows
	require.Contains(t, preview.String(), "2023-05-01 00:00:00")
	require.Contains(t, preview.String(), "6638-2-1")
	require.NotContains(t, preview.String(), "6638-3-1")

	// the same rows are logged
	logged := recorder.Find("debug", report_export_preview)
	require.Len(t, logged, 1)
	require.Equal(t, []any{"\n" + preview.String()}, logged[0].Params)
}

func TestRunLogsPreviewWithoutWriter(t *testing.T) {
	recorder := &telemetry.Recorder{}
	fetcher := pagedFetcher{pages: [][]nadlan.Record{{deal(0), deal(1)}}}

	_, err := Run(context.Background(), iterator(fetcher), Options{
		CSVPath:   filepath.Join(t.TempDir(), "deals.csv"),
		Telemetry: recorder,
	})
	require.NoError(t, err)

	logged := recorder.Find("debug", report_export_preview)
	require.Len(t, logged, 1)
	require.Contains(t, logged[0].Params[0], "6638-1-1")
}

func TestRunWritesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deals.csv")

	_, err := Run(context.Background(), iterator(pagedFetcher{err: errors.New("boom")}), Options{
		CSVPath: path,
	})
	require.EqualError(t, err, "collect deals: boom")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunWritesNothingOnMalformed(t *testing.T) {
	dir := t.TempDir()
	broken := nadlan.NewRecord("GUSH", "123-45", "DEALAMOUNT", "1", "DEALDATETIME", "2023-01-01")
	fetcher := pagedFetcher{pages: [][]nadlan.Record{{deal(0), broken}}}

	_, err := Run(context.Background(), iterator(fetcher), Options{
		CSVPath: filepath.Join(dir, "deals.csv"),
	})
	var malformed *nadlan.MalformedRecordError
	require.ErrorAs(t, err, &malformed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunRequiresCSVPath(t *testing.T) {
	_, err := Run(context.Background(), iterator(pagedFetcher{}), Options{})
	require.Error(t, err)
}

func TestRunWritesSQLite(t *testing.T) {
	dir := t.TempDir()
	fetcher := pagedFetcher{pages: [][]nadlan.Record{
		{deal(0, "ROOMS", json.Number("3")), deal(1, "ROOMS", json.Number("4.5"))},
	}}
	dbPath := filepath.Join(dir, "deals.db")

	summary, err := Run(context.Background(), iterator(fetcher), Options{
		CSVPath:    filepath.Join(dir, "deals.csv"),
		SQLitePath: dbPath,
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Rows)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`select count(*) from deals`).Scan(&count))
	require.Equal(t, 2, count)

	var price int64
	var dealTime string
	var rooms float64
	require.NoError(t, db.QueryRow(
		`select price, deal_time, ROOMS from deals where GUSH = ?`, "6638-1-1",
	).Scan(&price, &dealTime, &rooms))
	require.Equal(t, int64(2000), price)
	require.Equal(t, "2023-05-02 00:00:00", dealTime)
	require.Equal(t, 4.5, rooms)
}

func TestWriteTableReplacesTable(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	first := NewTable([]nadlan.Record{nadlan.NewRecord("a", "1"), nadlan.NewRecord("a", "2")})
	require.NoError(t, WriteTable(ctx, db, first))

	second := NewTable([]nadlan.Record{nadlan.NewRecord(`we"ird`, true)})
	require.NoError(t, WriteTable(ctx, db, second))

	var value string
	require.NoError(t, db.QueryRow(`select "we""ird" from deals`).Scan(&value))
	require.Equal(t, "True", value)
}

func TestNewTable(t *testing.T) {
	table := NewTable([]nadlan.Record{
		nadlan.NewRecord("a", 1, "b", 2),
		nadlan.NewRecord("c", 3, "a", 4),
		nadlan.NewRecord(),
	})
	require.Equal(t, []string{"a", "b", "c"}, table.Columns)
	if diff := cmp.Diff([][]any{
		{1, 2, nil},
		{4, nil, 3},
		{nil, nil, nil},
	}, table.Rows); diff != "" {
		t.Fatal(diff)
	}

	require.Len(t, table.Head(2).Rows, 2)
	require.Len(t, table.Head(10).Rows, 3)
	require.Empty(t, table.Head(-1).Rows)
}

func TestFormatValue(t *testing.T) {
	testCases := []struct {
		value    any
		expected string
	}{
		{nil, ""},
		{"שלום", "שלום"},
		{json.Number("12.50"), "12.50"},
		{true, "True"},
		{false, "False"},
		{int64(1500000), "1500000"},
		{2.5, "2.5"},
		{time.Date(2023, 5, 1, 13, 4, 5, 0, time.UTC), "2023-05-01 13:04:05"},
		{time.Date(2023, 5, 1, 13, 4, 5, 500000000, time.UTC), "2023-05-01 13:04:05.500000"},
		{time.Date(2023, 5, 1, 13, 4, 5, 0, time.FixedZone("", 3*60*60)), "2023-05-01 13:04:05+03:00"},
		{map[string]any{"b": json.Number("1"), "a": "x"}, `{"a":"x","b":1}`},
		{[]any{"x", nil}, `["x",null]`},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, FormatValue(test.value), fmt.Sprintf("%#v", test.value))
	}
}

func TestWriteCSVQuoting(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable([]nadlan.Record{
		nadlan.NewRecord("address", `Ha"Rimon, 5`, "note", "line\nbreak"),
	})
	require.NoError(t, WriteCSV(&buf, table))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"address", "note"},
		{`Ha"Rimon, 5`, "line\nbreak"},
	}, rows)
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"nadlan-export/internal/exporter"
	"nadlan-export/internal/scrapers/nadlan"
	"nadlan-export/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// entries scoring below this are left out of --match results
const matchThreshold = 0.7

var (
	lookupMatch string
	lookupCity  string
)

func init() {
	for _, cmd := range []*cobra.Command{citiesCmd, neighborhoodsCmd, neighborhoodKeysCmd, streetsCmd} {
		cmd.Flags().StringVar(&lookupMatch, "match", "", "Only print entries resembling this name, best match first.")
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{neighborhoodsCmd, streetsCmd} {
		cmd.Flags().StringVar(&lookupCity, "city", "", "The city name to list entries of.")
		cmd.MarkFlagRequired("city")
	}
}

func writeRecords(w io.Writer, records []nadlan.Record, match string) {
	var scores []float64
	if match != "" {
		matches := nadlan.RankRecords(records, match, matchThreshold)
		records = make([]nadlan.Record, len(matches))
		scores = make([]float64, len(matches))
		for i, m := range matches {
			records[i] = m.Record
			scores[i] = m.Score
		}
	}

	t := exporter.NewTable(records)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	header := table.Row{}
	if scores != nil {
		header = append(header, "Score")
	}
	for _, column := range t.Columns {
		header = append(header, column)
	}
	tw.AppendHeader(header)

	for i, row := range t.Rows {
		cells := table.Row{}
		if scores != nil {
			cells = append(cells, fmt.Sprintf("%.2f", scores[i]))
		}
		for _, value := range row {
			cells = append(cells, exporter.FormatValue(value))
		}
		tw.AppendRow(cells)
	}

	tw.SetStyle(table.StyleRounded)
	tw.Render()
}

func lookupCommand(use, short string, fetch func(ctx context.Context, client *nadlan.Client) ([]nadlan.Record, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			client, err := newClient()
			if err != nil {
				serviceutil.Fatal("failed to create client", err)
			}
			records, err := fetch(cmd.Context(), client)
			if err != nil {
				serviceutil.Fatal("lookup failed", err)
			}
			writeRecords(os.Stdout, records, lookupMatch)
		},
	}
}

var citiesCmd = lookupCommand(
	"cities [--match <name>]",
	"Prints the cities known to nadlan.gov.il.",
	func(ctx context.Context, client *nadlan.Client) ([]nadlan.Record, error) {
		return client.GetCities(ctx)
	},
)

var neighborhoodsCmd = lookupCommand(
	"neighborhoods --city <name> [--match <name>]",
	"Prints the neighborhoods of a city.",
	func(ctx context.Context, client *nadlan.Client) ([]nadlan.Record, error) {
		return client.GetNeighborhoodsByCity(ctx, lookupCity)
	},
)

var neighborhoodKeysCmd = lookupCommand(
	"neighborhood-keys [--match <name>]",
	"Prints the neighborhood keys known to nadlan.gov.il.",
	func(ctx context.Context, client *nadlan.Client) ([]nadlan.Record, error) {
		return client.GetNeighborhoodKeys(ctx)
	},
)

var streetsCmd = lookupCommand(
	"streets --city <name> [--match <name>]",
	"Prints the streets of a city.",
	func(ctx context.Context, client *nadlan.Client) ([]nadlan.Record, error) {
		return client.GetStreetsByCity(ctx, lookupCity)
	},
)

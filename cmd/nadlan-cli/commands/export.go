package commands

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"nadlan-export/internal/exporter"
	"nadlan-export/internal/scrapers/nadlan"
	"nadlan-export/lib/serviceutil"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	city          string
	neighborhood  string
	objectID      string
	level         string
	gush          int
	parcel        int
	maxPages      int
	out           string
	sqlite        string
	skipMalformed bool
	preview       int
}

func init() {
	bindExportFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

func levelNames() string {
	names := make([]string, len(nadlan.SearchLevels))
	for i, level := range nadlan.SearchLevels {
		names[i] = level.String()
	}
	return strings.Join(names, ", ")
}

func bindExportFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&exportFlags.city, "city", "", "The city id to export deals of.")
	flags.StringVar(&exportFlags.neighborhood, "neighborhood", "", "The neighborhood id to export deals of, takes precedence over --city.")
	flags.StringVar(&exportFlags.objectID, "object-id", "", "An object id to export deals of, searched at --level.")
	flags.StringVar(&exportFlags.level, "level", "", "The level --object-id is searched at, one of: "+levelNames()+".")
	flags.IntVar(&exportFlags.gush, "gush", 0, "The gush (block) to export deals of, requires --parcel.")
	flags.IntVar(&exportFlags.parcel, "parcel", 0, "The parcel to export deals of, requires --gush.")
	flags.IntVar(&exportFlags.maxPages, "max-pages", 0, "The maximum number of pages to fetch, 0 fetches every page.")
	flags.StringVar(&exportFlags.out, "out", "", "The csv file to write.")
	flags.StringVar(&exportFlags.sqlite, "sqlite", "", "A sqlite database to also write the deals to.")
	flags.BoolVar(&exportFlags.skipMalformed, "skip-malformed", false, "Skip deals that cannot be parsed instead of failing.")
	flags.IntVar(&exportFlags.preview, "preview", 0, "The number of rows to print once done, 0 disables the preview.")
}

func exportIterator(cmd *cobra.Command, client *nadlan.Client) (*nadlan.DealIterator, error) {
	flags := cmd.Flags()

	if flags.Changed("max-pages") {
		cfg.MaxPages = exportFlags.maxPages
	}
	if flags.Changed("skip-malformed") {
		cfg.SkipMalformed = exportFlags.skipMalformed
	}
	opts, err := cfg.pagerOptions()
	if err != nil {
		return nil, err
	}
	opts.Telemetry = tel

	if flags.Changed("gush") || flags.Changed("parcel") {
		if !flags.Changed("gush") || !flags.Changed("parcel") {
			return nil, errors.New("--gush and --parcel must be given together")
		}
		slog.Info("exporting deals", "gush", exportFlags.gush, "parcel", exportFlags.parcel, "max_pages", opts.MaxPages)
		return client.DealsByGushParcel(exportFlags.gush, exportFlags.parcel, opts), nil
	}

	if flags.Changed("object-id") || flags.Changed("level") {
		if !flags.Changed("object-id") || !flags.Changed("level") {
			return nil, errors.New("--object-id and --level must be given together")
		}
		level, err := nadlan.ParseSearchLevel(exportFlags.level)
		if err != nil {
			return nil, err
		}
		if level == nadlan.LevelGushParcel {
			return nil, errors.New("use --gush and --parcel to export a gush/parcel pair")
		}
		slog.Info("exporting deals", "object_id", exportFlags.objectID, "level", level.String(), "max_pages", opts.MaxPages)
		return client.DealsByObjectID(exportFlags.objectID, level, opts), nil
	}

	target := nadlan.Target{CityID: cfg.CityID, NeighborhoodID: cfg.NeighborhoodID}
	if flags.Changed("city") || flags.Changed("neighborhood") {
		target = nadlan.Target{CityID: exportFlags.city, NeighborhoodID: exportFlags.neighborhood}
	}
	objectID, level, err := target.Resolve()
	if err != nil {
		return nil, err
	}
	slog.Info("exporting deals", "object_id", objectID, "level", level.String(), "max_pages", opts.MaxPages)
	return client.Deals(target, opts), nil
}

var exportCmd = &cobra.Command{
	Use:   "export [--neighborhood <id> | --city <id> | --gush <n> --parcel <n> | --object-id <id> --level <name>] [--out <path/to/deals.csv>]",
	Short: "Exports real estate deals to a csv file.",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}
		deals, err := exportIterator(cmd, client)
		if err != nil {
			serviceutil.Fatal("invalid export target", err)
		}

		opts := exporter.Options{
			CSVPath:     cfg.CSVPath,
			SQLitePath:  cfg.SQLitePath,
			PreviewRows: cfg.PreviewRows,
			Telemetry:   tel,
		}
		if exportFlags.out != "" {
			opts.CSVPath = exportFlags.out
		}
		if exportFlags.sqlite != "" {
			opts.SQLitePath = exportFlags.sqlite
		}
		if cmd.Flags().Changed("preview") {
			opts.PreviewRows = exportFlags.preview
		}
		if opts.PreviewRows > 0 {
			opts.Preview = os.Stdout
		}

		t1 := time.Now()
		summary, err := exporter.Run(cmd.Context(), deals, opts)
		if err != nil {
			serviceutil.Fatal("export failed", err)
		}

		slog.Info(
			"export done",
			"path", opts.CSVPath,
			"rows", summary.Rows,
			"columns", summary.Columns,
			"pages", summary.Pages,
			"skipped", summary.Skipped,
			"seconds", time.Since(t1).Seconds(),
		)
	},
}

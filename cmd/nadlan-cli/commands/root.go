package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"nadlan-export/internal/components/telemetry"
	"nadlan-export/internal/scrapers/nadlan"
	"nadlan-export/lib/restyutil"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string

	cfg     Config
	tel     telemetry.API = telemetry.SlogAPI{}
	otel    telemetry.Otel
	logFile *os.File
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages and dump http messages to .dev/resty.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "nadlan.json5", "The config file to read.")
}

var rootCmd = &cobra.Command{
	Use:          "nadlan-cli",
	Short:        "nadlan-cli exports real estate deals from nadlan.gov.il.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(configPath, cmd.Flags().Changed("config"), ".env")
		if err != nil {
			return err
		}

		opts := telemetry.LogOptions{Verbose: verbose}
		if cfg.LogFile != "" {
			logFile, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			opts.File = logFile
		}
		tel = telemetry.SlogAPI{Logger: telemetry.InitSlog(opts)}

		otel, err = telemetry.SetupOtelFromEnv(cmd.Context(), "nadlan-cli")
		if err != nil {
			tel.ReportWarning("otel", err)
		}
		if otel.Enabled() {
			telemetry.InstrumentPerfStats(cmd.Context(), tel, 10*time.Second)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
		if logFile != nil {
			logFile.Close()
		}
	},
}

func newClient() (*nadlan.Client, error) {
	opts, err := cfg.clientOptions()
	if err != nil {
		return nil, err
	}
	opts.Telemetry = tel
	if verbose {
		output, err := restyutil.NewFilesystemOutput(".dev/resty")
		if err != nil {
			return nil, err
		}
		opts.Dump = output
	}
	return nadlan.NewClient(opts), nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

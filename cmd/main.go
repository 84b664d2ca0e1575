package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edubigdata/stocketl/internal/config"
	"github.com/edubigdata/stocketl/internal/historical"
	"github.com/edubigdata/stocketl/internal/pipeline"
)

var (
	configFile    string
	sourceURL     string
	rawPath       string
	processedPath string
	dbPath        string
	requestDelay  int
	noWarmup      bool
	parquet       bool
	parquetPath   string
	verbose       bool
	version       bool
)

var versionString = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "stocketl",
		Short:         "Fetch, clean and store historical Spotify stock prices",
		Long:          `Scrapes the historical price table for SPOT, writes raw and processed CSV snapshots and appends the processed rows to a SQLite table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if version {
				fmt.Printf("stocketl version %s\n", versionString)
				return nil
			}
			return withPipeline(cmd, runAll)
		},
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and clean the table, write the CSV snapshots only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd, runFetch)
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Create the table and load the processed CSV snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd, runLoad)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "config.yaml", "Path to config file")
	flags.StringVar(&sourceURL, "url", "", "Historical data page to scrape")
	flags.StringVar(&rawPath, "raw-path", "", "Output path for the raw CSV snapshot")
	flags.StringVar(&processedPath, "processed-path", "", "Output path for the processed CSV snapshot")
	flags.StringVar(&dbPath, "db-path", "", "SQLite database file")
	flags.IntVar(&requestDelay, "request-delay", 0, "Delay before each request in milliseconds")
	flags.BoolVar(&noWarmup, "no-warmup", false, "Skip the warm-up request to the site root")
	flags.BoolVar(&parquet, "parquet", false, "Also write a parquet snapshot")
	flags.StringVar(&parquetPath, "parquet-path", "", "Output path for the parquet snapshot")
	flags.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.Flags().BoolVar(&version, "version", false, "Print version information")

	rootCmd.AddCommand(fetchCmd, loadCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("run failed")
		stop()
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// loadConfig reads the config file and environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if sourceURL != "" {
		cfg.Source.URL = sourceURL
	}
	if rawPath != "" {
		cfg.Output.RawPath = rawPath
	}
	if processedPath != "" {
		cfg.Output.ProcessedPath = processedPath
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if flags.Changed("request-delay") {
		cfg.Source.RequestDelay = requestDelay
	}
	if noWarmup {
		cfg.Source.Warmup = false
	}
	if parquet {
		cfg.Output.ParquetEnabled = true
	}
	if parquetPath != "" {
		cfg.Output.ParquetPath = parquetPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func withPipeline(cmd *cobra.Command, run func(context.Context, *pipeline.Pipeline) error) error {
	setupLogging()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fetcher, err := historical.NewFetcher(&cfg.Source)
	if err != nil {
		return err
	}

	return run(cmd.Context(), pipeline.New(cfg, fetcher))
}

func runAll(ctx context.Context, p *pipeline.Pipeline) error {
	_, err := p.Run(ctx)
	return reportFetchFailure(ctx, err)
}

func runFetch(ctx context.Context, p *pipeline.Pipeline) error {
	rows, err := p.FetchAndSave(ctx)
	if err != nil {
		return reportFetchFailure(ctx, err)
	}
	log.Info().Int("rows", len(rows)).Msg("data fetched and saved successfully")
	return nil
}

func runLoad(ctx context.Context, p *pipeline.Pipeline) error {
	_, err := p.Load(ctx)
	return err
}

// reportFetchFailure logs a failed fetch and ends the run without an error exit.
// An interrupted run is still an error.
func reportFetchFailure(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("run interrupted: %w", ctxErr)
	}
	if errors.Is(err, historical.ErrFetchFailed) {
		log.Error().Err(err).Msg("failed to fetch data, exiting")
		return nil
	}
	return err
}

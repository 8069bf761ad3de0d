package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"churnpipe/adapters/ingest"
	"churnpipe/adapters/postgres"
	"churnpipe/adapters/report"
	"churnpipe/app"
	"churnpipe/internal/config"
	"churnpipe/internal/logging"
	"churnpipe/ports"
)

func main() {
	// Load .env if present; real env vars win.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "churnpipe",
		Short: "Customer churn data pipeline: clean, derive features, train and select a model",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newCleanCmd(),
		newFeaturesCmd(),
		newTrainCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ingest, clean, features, train, select",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := buildPipeline(input, true)
			if err != nil {
				return err
			}
			defer cleanup()

			bundle, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("winner: %s (cv F1 %.4f, test F1 %.4f)\n",
				bundle.Report.Winner, bundle.Report.WinnerMeanF1, bundle.Winner.Test.F1)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Path to the raw customer batch (.csv or .xlsx)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func newCleanCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Run ingestion and cleaning only",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := buildPipeline(input, true)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := p.CleanOnly(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("clean table: %d rows\n", table.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Path to the raw customer batch (.csv or .xlsx)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func newFeaturesCmd() *cobra.Command {
	var input string
	var dump bool
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Run cleaning and feature derivation only",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := buildPipeline(input, true)
			if err != nil {
				return err
			}
			defer cleanup()

			table, err := p.FeaturesOnly(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("feature table: %d rows, reference %s\n",
				table.Len(), table.Reference.Format("2006-01-02"))
			if dump {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(table)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Path to the raw customer batch (.csv or .xlsx)")
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the feature table as JSON")
	cmd.MarkFlagRequired("input")
	return cmd
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and select on the latest stored feature table",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := buildPipeline("", false)
			if err != nil {
				return err
			}
			defer cleanup()

			bundle, err := p.TrainOnly(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("winner: %s (cv F1 %.4f, test F1 %.4f)\n",
				bundle.Report.Winner, bundle.Report.WinnerMeanF1, bundle.Winner.Test.F1)
			return nil
		},
	}
	return cmd
}

// buildPipeline loads configuration and wires the adapters. The artifact
// store is attached only when DATABASE_URL is configured.
func buildPipeline(input string, needsReader bool) (*app.Pipeline, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logging.DefaultLogger()

	var reader ports.BatchReader
	if needsReader {
		reader = ingest.NewFileReader(input, log)
	}

	var store ports.ArtifactStore
	cleanup := func() {}
	if cfg.Storage.Enabled {
		db, err := postgres.Connect(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store = postgres.NewArtifactRepository(db)
		cleanup = func() { db.Close() }
	}

	reports := report.NewFileWriter(cfg.Output.Dir, log)
	return app.NewPipeline(cfg, log, reader, store, reports), cleanup, nil
}

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hanehara/tsugite/internal/vector"
)

var (
	indexReset      bool
	indexMonths     int
	indexMaxTables  int
	indexSampleRows int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the pgvector retrieval index from the live database",
	Long: `index crawls the connected database into retrievable documents: one per
table, monthly aggregate snapshots for tables with a date column and a
numeric measure, and a few sample rows per table. Documents are embedded via
the configured embeddings model and stored in the vector_docs table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		a, err := newApp(ctx, overrides)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		store := vector.NewStore(a.pool)
		indexer := vector.NewIndexer(a.pool, a.explorer, a.client, store, a.logger)

		spinner, _ := pterm.DefaultSpinner.Start("Indexing...")
		n, err := indexer.Build(ctx, vector.IndexOptions{
			Reset:              indexReset,
			Months:             indexMonths,
			MaxTables:          indexMaxTables,
			SampleRowsPerTable: indexSampleRows,
		})
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success(pterm.Sprintf("Indexed %d document(s)", n))
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "truncate the index before inserting")
	indexCmd.Flags().IntVar(&indexMonths, "months", 6, "snapshot window in months")
	indexCmd.Flags().IntVar(&indexMaxTables, "max-tables", 80, "maximum tables to crawl")
	indexCmd.Flags().IntVar(&indexSampleRows, "sample-rows", 3, "sample rows per table (0 disables)")
	rootCmd.AddCommand(indexCmd)
}

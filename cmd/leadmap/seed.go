package main

import (
	"errors"
	"fmt"

	"github.com/gameleadership/leadmap/internal/reconcile"
	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/spf13/cobra"
)

var (
	seedDataDir       string
	seedGeoFile       string
	seedPapersFile    string
	seedAuthorships   string
	seedProgressEvery int
)

func init() {
	seedCmd.Flags().StringVar(&seedDataDir, "data-dir", "", "Directory holding the input files (default from config)")
	seedCmd.Flags().StringVar(&seedGeoFile, "geo", "", "Institutions geo file (default <data-dir>/"+reconcile.GeoFile+")")
	seedCmd.Flags().StringVar(&seedPapersFile, "papers", "", "Papers file (default <data-dir>/"+reconcile.PapersWithDOI+" or "+reconcile.PapersFile+")")
	seedCmd.Flags().StringVar(&seedAuthorships, "authorships", "", "Authorships JSONL file (default <data-dir>/"+reconcile.AuthorshipsFile+")")
	seedCmd.Flags().IntVar(&seedProgressEvery, "progress-every", reconcile.DefaultProgressEvery, "Log authorship progress every N lines")
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reconcile papers, institutions and authorships into the store",
	Long: `Reconcile papers, institutions and authorships into the store.

Steps run in order:
  1. institutions geo file  (optional, skipped when missing)
  2. papers file            (required)
  3. OpenAlex authorships   (optional, skipped when missing)

The pass is idempotent: re-running it over the same inputs leaves the
store unchanged. Transient database failures are retried with a fresh
connection.

Usage:
  leadmap seed
  leadmap seed --data-dir ./data
  leadmap seed --papers ./chiplay_papers.json --authorships ./openalex_authorships.jsonl`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

// SeedResult is the output of the seed command.
type SeedResult struct {
	Summary reconcile.Summary `json:"summary"`
	Counts  storage.Counts    `json:"counts"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir := seedDataDir
	if dir == "" {
		dir = cfg.DataDir
	}
	in := reconcile.DefaultInputs(dir)
	if seedGeoFile != "" {
		in.GeoPath = seedGeoFile
	}
	if seedPapersFile != "" {
		in.PapersPath = seedPapersFile
	}
	if seedAuthorships != "" {
		in.AuthorshipsPath = seedAuthorships
	}

	sup := mustOpenSupervisor(ctx)
	r := reconcile.New(sup,
		reconcile.WithLogger(logger),
		reconcile.WithProgressEvery(seedProgressEvery),
	)

	summary, err := r.Run(ctx, in)
	if err != nil {
		sup.Close()
		if errors.Is(err, reconcile.ErrPapersFileMissing) {
			exitWithError(ExitDataError, "%v", err)
		}
		exitWithError(ExitError, "seeding failed: %v", err)
	}

	counts, err := storage.Call(ctx, sup, "count", func(db *storage.DB) (storage.Counts, error) {
		return db.Counts(ctx)
	})
	sup.Close()
	if err != nil {
		exitWithError(ExitError, "counting rows: %v", err)
	}

	if humanOutput {
		printSeedHuman(summary, counts)
		return nil
	}
	return outputJSON(SeedResult{Summary: summary, Counts: counts})
}

func printSeedHuman(s reconcile.Summary, c storage.Counts) {
	geo := formatCount(s.Institutions.Upserted) + " upserted"
	if s.Institutions.FileMissing {
		geo = "skipped (file missing)"
	}
	links := fmt.Sprintf("%s processed, %s new", formatCount(s.Authorships.Linked), formatCount(s.Authorships.Created))
	if s.Authorships.FileMissing {
		links = "skipped (file missing)"
	}

	rows := [][]string{
		{"Institutions (geo)", geo},
		{"Papers", fmt.Sprintf("%s upserted, %s dropped, %s DOI conflicts",
			formatCount(s.Papers.Upserted), formatCount(s.Papers.Dropped), formatCount(s.Papers.DOIConflicts))},
		{"Authorship lines", fmt.Sprintf("%s read, %s skipped (%s malformed)",
			formatCount(s.Authorships.Lines), formatCount(s.Authorships.Skipped), formatCount(s.Authorships.Malformed))},
		{"Authorship links", links},
		{"Papers not found", formatCount(s.Authorships.PapersMissing)},
		{"ID conflicts", formatCount(s.Authorships.IDConflicts)},
	}
	outputHuman("%s\n\n", renderTable([]string{"Step", "Result"}, rows, nil))

	totals := [][]string{{
		formatCount(c.Papers),
		formatCount(c.Authors),
		formatCount(c.Institutions),
		formatCount(c.Authorships),
	}}
	right := []columnAlignment{alignRight, alignRight, alignRight, alignRight}
	outputHuman("%s\n", renderTable([]string{"Papers", "Authors", "Institutions", "Authorships"}, totals, right))
}

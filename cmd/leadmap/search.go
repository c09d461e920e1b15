package main

import (
	"errors"

	"github.com/gameleadership/leadmap/internal/ratelimit"
	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/gameleadership/leadmap/internal/submission"
	"github.com/spf13/cobra"
)

var (
	searchLimit   int
	searchCountry string
	searchIP      string
)

func init() {
	searchCmd.PersistentFlags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results, 1-25 (default from config)")
	searchCmd.PersistentFlags().StringVar(&searchIP, "ip", "", "Client IP the request is counted against")
	searchInstitutionsCmd.Flags().StringVar(&searchCountry, "country", "", "Two-letter country code filter")

	searchCmd.AddCommand(searchInstitutionsCmd)
	searchCmd.AddCommand(searchSubmittersCmd)
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Autocomplete searches for institutions and submitters",
	Long: `Autocomplete searches for institutions and submitters.

Searches are counted against per-IP quotas, as they are for web clients.
An empty query returns no results and is not counted.`,
}

var searchInstitutionsCmd = &cobra.Command{
	Use:   "institutions <query>",
	Short: "Find institutions whose name contains the query",
	Long: `Find institutions whose name contains the query.

Usage:
  leadmap search institutions "university of"
  leadmap search institutions games --country DE -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearchInstitutions,
}

var searchSubmittersCmd = &cobra.Command{
	Use:   "submitters <query>",
	Short: "Find people from past submissions and known authors",
	Long: `Find people from past submissions and known authors.

Submission contacts (newest first) are listed before author names.

Usage:
  leadmap search submitters ana`,
	Args: cobra.ExactArgs(1),
	RunE: runSearchSubmitters,
}

func newSearcher(db *storage.DB) *submission.Searcher {
	limiter := ratelimit.New(db, cfg.RatePolicies())
	return submission.NewSearcher(db, limiter, cfg.Search.InstitutionLimit, cfg.Search.SubmitterLimit, logger)
}

func runSearchInstitutions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db := mustOpenStore(ctx)
	defer db.Close()

	results, err := newSearcher(db).Institutions(ctx, submission.SearchRequest{
		IP:        searchIP,
		UserAgent: "leadmap-cli",
		Query:     args[0],
		Country:   searchCountry,
		Limit:     searchLimit,
	})
	if err != nil {
		exitSearchError(err)
	}

	if humanOutput {
		if len(results) == 0 {
			outputHuman("No institutions found\n")
			return nil
		}
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{
				r.ID,
				truncateString(r.Name, NameMaxLen),
				orDash(r.Country),
				formatCount(r.PaperCount),
			})
		}
		outputHuman("%s\n", renderTable(
			[]string{"ID", "Name", "Country", "Authorships"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
		return nil
	}
	return outputJSON(results)
}

func runSearchSubmitters(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db := mustOpenStore(ctx)
	defer db.Close()

	results, err := newSearcher(db).Submitters(ctx, submission.SearchRequest{
		IP:        searchIP,
		UserAgent: "leadmap-cli",
		Query:     args[0],
		Limit:     searchLimit,
	})
	if err != nil {
		exitSearchError(err)
	}

	if humanOutput {
		if len(results) == 0 {
			outputHuman("No people found\n")
			return nil
		}
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{r.Name, orDash(r.Email), r.Source})
		}
		outputHuman("%s\n", renderTable([]string{"Name", "Email", "Source"}, rows, nil))
		return nil
	}
	return outputJSON(results)
}

func exitSearchError(err error) {
	var rl *submission.RateLimitError
	if errors.As(err, &rl) {
		exitWithError(ExitRateLimited, "too many searches, retry after %s", rl.RetryAfter)
	}
	exitWithError(ExitError, "%v", err)
}

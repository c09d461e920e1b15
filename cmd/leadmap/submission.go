package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/gameleadership/leadmap/internal/ratelimit"
	"github.com/gameleadership/leadmap/internal/submission"
	"github.com/spf13/cobra"
)

var (
	submissionFile      string
	submissionIP        string
	submissionUserAgent string
	submissionNoGeocode bool
	submissionStatus    string
	submissionReviewer  string
	submissionNotes     string
	submissionClear     bool
)

func init() {
	submissionAddCmd.Flags().StringVarP(&submissionFile, "file", "f", "-", "JSON payload file, - for stdin")
	submissionAddCmd.Flags().StringVar(&submissionIP, "ip", "", "Client IP the submission is counted against")
	submissionAddCmd.Flags().StringVar(&submissionUserAgent, "user-agent", "leadmap-cli", "User agent recorded in the request log")
	submissionAddCmd.Flags().BoolVar(&submissionNoGeocode, "no-geocode", false, "Skip the geocoder lookup")

	submissionListCmd.Flags().StringVar(&submissionStatus, "status", "", "Filter by status (pending, approved, rejected)")
	submissionApproveCmd.Flags().StringVar(&submissionReviewer, "reviewer", "", "Reviewer recorded on the approval (default from config)")
	submissionRejectCmd.Flags().StringVar(&submissionNotes, "notes", "", "Rejection reason")
	submissionLinkCmd.Flags().BoolVar(&submissionClear, "clear", false, "Remove the institution link")
	submissionDuplicateCmd.Flags().BoolVar(&submissionClear, "clear", false, "Remove the duplicate mark")

	submissionCmd.AddCommand(
		submissionAddCmd,
		submissionListCmd,
		submissionShowCmd,
		submissionApproveCmd,
		submissionRejectCmd,
		submissionResetCmd,
		submissionLinkCmd,
		submissionDuplicateCmd,
		submissionDeleteCmd,
	)
	rootCmd.AddCommand(submissionCmd)
}

var submissionCmd = &cobra.Command{
	Use:   "submission",
	Short: "Receive and moderate community submissions",
}

var submissionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Submit a leadership approach for an institution",
	Long: `Submit a leadership approach for an institution.

The payload is a JSON object with the fields contactName, contactEmail,
submitterType, institutionName, institutionCountry, institutionCountryName,
institutionCity, institutionWebsite, leadershipApproach, latitude,
longitude, institutionId and duplicateOfId.

Usage:
  leadmap submission add -f payload.json
  echo '{"contactName":"Ana",...}' | leadmap submission add`,
	Args: cobra.NoArgs,
	RunE: runSubmissionAdd,
}

var submissionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSubmissionList,
}

var submissionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one submission",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmissionShow,
}

var submissionApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a submission",
	Args:  cobra.ExactArgs(1),
	RunE: moderate("approved", func(m *submission.Moderator, cmd *cobra.Command, args []string) error {
		reviewer := submissionReviewer
		if reviewer == "" {
			reviewer = cfg.Reviewer()
		}
		return m.Approve(cmd.Context(), args[0], reviewer)
	}),
}

var submissionRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a submission",
	Args:  cobra.ExactArgs(1),
	RunE: moderate("rejected", func(m *submission.Moderator, cmd *cobra.Command, args []string) error {
		return m.Reject(cmd.Context(), args[0], submissionNotes)
	}),
}

var submissionResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Return a submission to pending",
	Args:  cobra.ExactArgs(1),
	RunE: moderate("pending", func(m *submission.Moderator, cmd *cobra.Command, args []string) error {
		return m.Reset(cmd.Context(), args[0])
	}),
}

var submissionLinkCmd = &cobra.Command{
	Use:   "link <id> [institution-id]",
	Short: "Link a submission to an existing institution",
	Args:  linkArgs,
	RunE: moderate("linked", func(m *submission.Moderator, cmd *cobra.Command, args []string) error {
		if submissionClear {
			return m.ClearInstitution(cmd.Context(), args[0])
		}
		return m.LinkInstitution(cmd.Context(), args[0], args[1])
	}),
}

var submissionDuplicateCmd = &cobra.Command{
	Use:   "duplicate <id> [institution-id]",
	Short: "Mark a submission as a duplicate of an existing institution",
	Args:  linkArgs,
	RunE: moderate("duplicate", func(m *submission.Moderator, cmd *cobra.Command, args []string) error {
		if submissionClear {
			return m.ClearDuplicate(cmd.Context(), args[0])
		}
		return m.MarkDuplicate(cmd.Context(), args[0], args[1])
	}),
}

var submissionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a submission",
	Args:  cobra.ExactArgs(1),
	RunE: moderate("deleted", func(m *submission.Moderator, cmd *cobra.Command, args []string) error {
		return m.Delete(cmd.Context(), args[0])
	}),
}

// linkArgs requires an institution id unless --clear is given.
func linkArgs(cmd *cobra.Command, args []string) error {
	if submissionClear {
		return cobra.ExactArgs(1)(cmd, args)
	}
	return cobra.ExactArgs(2)(cmd, args)
}

// moderate wraps a moderation action with store setup and output.
func moderate(status string, action func(*submission.Moderator, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db := mustOpenStore(cmd.Context())
		defer db.Close()

		if err := action(submission.NewModerator(db, logger), cmd, args); err != nil {
			exitSubmissionError(err)
		}
		result := status
		if submissionClear {
			result = "cleared"
		}
		if humanOutput {
			outputHuman("%s: %s\n", args[0], result)
			return nil
		}
		return outputJSON(StatusResponse{Status: result, ID: args[0]})
	}
}

func readPayload(path string) (submission.Payload, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return submission.Payload{}, fmt.Errorf("opening payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	var p submission.Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return submission.Payload{}, fmt.Errorf("decoding payload: %w", err)
	}
	return p, nil
}

func runSubmissionAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	payload, err := readPayload(submissionFile)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	db := mustOpenStore(ctx)
	defer db.Close()

	var geocoder submission.Geocoder
	if !cfg.Geocoder.Disabled && !submissionNoGeocode {
		geocoder = newGeocoder()
	}
	intake := submission.NewIntake(db, ratelimit.New(db, cfg.RatePolicies()), geocoder, logger)

	receipt, err := intake.Submit(ctx, submission.Request{
		IP:        submissionIP,
		UserAgent: submissionUserAgent,
		Payload:   payload,
	})
	if err != nil {
		exitSubmissionError(err)
	}

	if humanOutput {
		outputHuman("%s\n\nID:      %s\nGeocode: %s\n", receipt.Message, receipt.SubmissionID, receipt.GeocodeStatus)
		return nil
	}
	return outputJSON(receipt)
}

func runSubmissionList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db := mustOpenStore(ctx)
	defer db.Close()

	subs, err := submission.NewModerator(db, logger).List(ctx, strings.ToLower(submissionStatus))
	if err != nil {
		exitSubmissionError(err)
	}
	if subs == nil {
		subs = []directory.Submission{}
	}

	if humanOutput {
		if len(subs) == 0 {
			outputHuman("No submissions\n")
			return nil
		}
		rows := make([][]string, 0, len(subs))
		for _, s := range subs {
			rows = append(rows, []string{
				s.ID,
				s.Status,
				truncateString(s.ContactName, NameMaxLen),
				truncateString(s.InstitutionName, NameMaxLen),
				orDash(s.InstitutionCountry),
				s.GeocodeStatus,
				formatAge(s.CreatedAt),
			})
		}
		outputHuman("%s\n", renderTable(
			[]string{"ID", "Status", "Contact", "Institution", "Country", "Geocode", "Submitted"},
			rows, nil,
		))
		outputHuman("%s submissions\n", formatCount(len(subs)))
		return nil
	}
	return outputJSON(subs)
}

func runSubmissionShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db := mustOpenStore(ctx)
	defer db.Close()

	s, err := submission.NewModerator(db, logger).Get(ctx, args[0])
	if err != nil {
		exitSubmissionError(err)
	}

	if humanOutput {
		lat, lng, _ := s.Coordinates()
		outputHuman("%s  [%s]\n", s.ID, s.Status)
		outputHuman("Contact:     %s %s\n", s.ContactName, orDash(s.ContactEmail))
		outputHuman("Institution: %s (%s)\n", s.InstitutionName, orDash(s.InstitutionCountryName))
		outputHuman("Location:    %s, %s [%s]\n", formatCoord(&lat), formatCoord(&lng), s.GeocodeStatus)
		if s.InstitutionID != "" {
			outputHuman("Linked:      %s\n", s.InstitutionID)
		}
		if s.DuplicateOfID != "" {
			outputHuman("Duplicate:   %s\n", s.DuplicateOfID)
		}
		outputHuman("Submitted:   %s\n\n%s\n", formatAge(s.CreatedAt), s.LeadershipApproach)
		return nil
	}
	return outputJSON(s)
}

// exitSubmissionError maps intake and moderation errors to exit codes.
func exitSubmissionError(err error) {
	var verr *submission.ValidationError
	var rl *submission.RateLimitError
	switch {
	case errors.As(err, &verr):
		if humanOutput {
			exitWithError(ExitDataError, "invalid submission:\n  %s", strings.Join(verr.Messages, "\n  "))
		}
		outputJSON(ErrorResponse{Error: "validation failed", Details: verr.Messages})
		os.Exit(ExitDataError)
	case errors.As(err, &rl):
		exitWithError(ExitRateLimited, "too many submissions, retry after %s", rl.RetryAfter)
	case errors.Is(err, submission.ErrNotFound):
		exitWithError(ExitDataError, "%v", err)
	default:
		exitWithError(ExitError, "%v", err)
	}
}

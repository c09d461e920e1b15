package main

import (
	"fmt"
	"strings"

	"github.com/gameleadership/leadmap/internal/country"
	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/gameleadership/leadmap/internal/submission"
	"github.com/spf13/cobra"
)

var markersCommunity bool

func init() {
	markersCmd.Flags().BoolVar(&markersCommunity, "community", false, "Show community markers from approved submissions")
	rootCmd.AddCommand(markersCmd)
}

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "List map markers",
	Long: `List map markers.

Without flags, lists institutions that have coordinates and at least one
authorship, with paper counts and top authors, most papers first.

With --community, lists approved submissions grouped by institution.

Usage:
  leadmap markers
  leadmap markers --community --human`,
	Args: cobra.NoArgs,
	RunE: runMarkers,
}

func runMarkers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db := mustOpenStore(ctx)
	defer db.Close()

	if markersCommunity {
		markers, err := submission.CommunityMarkers(ctx, db)
		if err != nil {
			exitWithError(ExitError, "building community markers: %v", err)
		}
		if humanOutput {
			printCommunityMarkersHuman(markers)
			return nil
		}
		return outputJSON(markers)
	}

	markers, err := db.Markers(ctx)
	if err != nil {
		exitWithError(ExitError, "building markers: %v", err)
	}
	if markers == nil {
		markers = []directory.Marker{}
	}
	if humanOutput {
		printMarkersHuman(markers)
		return nil
	}
	return outputJSON(markers)
}

func printMarkersHuman(markers []directory.Marker) {
	if len(markers) == 0 {
		outputHuman("No markers\n")
		return
	}
	rows := make([][]string, 0, len(markers))
	for _, m := range markers {
		rows = append(rows, []string{
			truncateString(orDash(m.Name), NameMaxLen),
			orDash(country.Name(m.Country)),
			formatCoord(&m.Lat) + ", " + formatCoord(&m.Lng),
			formatCount(m.PaperCount),
			truncateString(strings.Join(m.TopAuthors, "; "), LeadershipMaxLen),
		})
	}
	outputHuman("%s\n", renderTable(
		[]string{"Institution", "Country", "Position", "Papers", "Top authors"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	outputHuman("%s institutions\n", formatCount(len(markers)))
}

func printCommunityMarkersHuman(markers []submission.CommunityMarker) {
	if len(markers) == 0 {
		outputHuman("No community markers\n")
		return
	}
	rows := make([][]string, 0, len(markers))
	for _, m := range markers {
		names := make([]string, 0, len(m.Leaders))
		for _, l := range m.Leaders {
			names = append(names, l.Name)
		}
		rows = append(rows, []string{
			truncateString(orDash(m.Name), NameMaxLen),
			orDash(m.Country),
			fmt.Sprintf("%.4f, %.4f", m.Lat, m.Lng),
			m.GeocodeStatus,
			truncateString(strings.Join(names, "; "), LeadershipMaxLen),
		})
	}
	outputHuman("%s\n", renderTable(
		[]string{"Institution", "Country", "Position", "Geocode", "Leaders"},
		rows, nil,
	))
}

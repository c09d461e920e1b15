package main

import (
	"strings"

	"github.com/gameleadership/leadmap/internal/country"
	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/gameleadership/leadmap/internal/geocode"
	"github.com/spf13/cobra"
)

var (
	geocodeCity    string
	geocodeCountry string
)

func init() {
	geocodeCmd.Flags().StringVar(&geocodeCity, "city", "", "City")
	geocodeCmd.Flags().StringVar(&geocodeCountry, "country", "", "Country code or name")
	rootCmd.AddCommand(geocodeCmd)
	rootCmd.AddCommand(countryCmd)
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode [institution name]",
	Short: "Look up coordinates the way submissions are geocoded",
	Long: `Look up coordinates the way submissions are geocoded.

The query is the institution name, city and country name joined with
commas; the country code also restricts the search.

Usage:
  leadmap geocode "Acme University" --city Berlin --country DE
  leadmap geocode --city Utrecht --country netherlands --human`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGeocode,
}

var countryCmd = &cobra.Command{
	Use:   "country <name or code>",
	Short: "Resolve a country by name or ISO code",
	Long: `Resolve a country by name or ISO code.

Matches an exact name, then a name prefix, then an exact code, then a
code prefix, ignoring case.

Usage:
  leadmap country germ
  leadmap country NL`,
	Args: cobra.ExactArgs(1),
	RunE: runCountry,
}

// GeocodeResult is the output of the geocode command.
type GeocodeResult struct {
	Query     string   `json:"query"`
	Status    string   `json:"status"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func newGeocoder() *geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocoder.URL),
		geocode.WithUserAgent(cfg.Geocoder.UserAgent),
		geocode.WithRateLimit(cfg.Geocoder.Rate),
	)
}

// resolveCountry accepts a code or a name and returns the code and name.
func resolveCountry(s string) (code, name string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", true
	}
	c, found := country.Find(s)
	if !found {
		return "", "", false
	}
	return c.Code, c.Name, true
}

func runGeocode(cmd *cobra.Command, args []string) error {
	if cfg.Geocoder.Disabled {
		exitWithError(ExitConfigError, "geocoder is disabled in config")
	}

	code, name, ok := resolveCountry(geocodeCountry)
	if !ok {
		exitWithError(ExitDataError, "unknown country: %s", geocodeCountry)
	}

	q := geocode.Query{City: geocodeCity, CountryName: name, CountryCode: code}
	if len(args) == 1 {
		q.InstitutionName = args[0]
	}

	out := newGeocoder().Lookup(cmd.Context(), q)
	result := GeocodeResult{Query: q.Text(), Status: out.Status}
	if out.Status == directory.GeocodeSuccess {
		lat, lng := out.Latitude, out.Longitude
		result.Latitude = &lat
		result.Longitude = &lng
	}

	if humanOutput {
		outputHuman("Query:  %s\n", orDash(result.Query))
		outputHuman("Status: %s\n", result.Status)
		if result.Latitude != nil {
			outputHuman("Lat:    %s\nLng:    %s\n", formatCoord(result.Latitude), formatCoord(result.Longitude))
		}
		return nil
	}
	return outputJSON(result)
}

func runCountry(cmd *cobra.Command, args []string) error {
	c, ok := country.Find(args[0])
	if !ok {
		exitWithError(ExitDataError, "no country matches %q", args[0])
	}
	if humanOutput {
		outputHuman("%s  %s\n", c.Code, c.Name)
		return nil
	}
	return outputJSON(c)
}

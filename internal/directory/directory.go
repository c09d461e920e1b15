// Package directory defines the core domain types of the institution directory.
package directory

import "time"

// DefaultVenue is stored for papers whose source record has no venue.
const DefaultVenue = "CHI PLAY"

// Paper is a publication identified by its DBLP key.
type Paper struct {
	// Identity
	ID      string `json:"id"`       // Internal stable identifier (UUID)
	DBLPKey string `json:"dblp_key"` // Bibliographic key, unique

	// Optional unique external identifiers. Empty means absent.
	DOI        string `json:"doi,omitempty"`
	OpenAlexID string `json:"openalex_id,omitempty"`

	// Metadata
	Title string `json:"title"`
	Year  *int   `json:"year,omitempty"` // nil when the source year was not an integer
	Venue string `json:"venue"`
}

// Institution is a research institution shown on the map.
type Institution struct {
	ID      string   `json:"id"` // inst:ror:<ror> or inst:name:<slug>
	Name    string   `json:"name,omitempty"`
	Country string   `json:"country,omitempty"` // ISO 3166 alpha-2
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Type    string   `json:"type,omitempty"` // education, company, facility, ...
}

// HasCoordinates reports whether both latitude and longitude are known.
func (i Institution) HasCoordinates() bool {
	return i.Lat != nil && i.Lng != nil
}

// Author is a paper author.
type Author struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OpenAlexID string    `json:"openalex_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Authorship links one author, at one institution, to one paper.
type Authorship struct {
	PaperID       string `json:"paper_id"`
	AuthorID      string `json:"author_id"`
	InstitutionID string `json:"institution_id"`
	Order         *int   `json:"order,omitempty"` // nil means unordered, never zero
}

// Marker is an institution pin on the research map.
type Marker struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Country    string   `json:"country,omitempty"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	PaperCount int      `json:"paper_count"`
	TopAuthors []string `json:"top_authors"`
}

// InstitutionSuggestion is a search hit for the institution picker.
type InstitutionSuggestion struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Country    string   `json:"country,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	PaperCount int      `json:"paperCount"`
}

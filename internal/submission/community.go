package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/gameleadership/leadmap/internal/directory"
)

// CommunityStore is the persistence community markers are built from.
type CommunityStore interface {
	ListApprovedSubmissions(ctx context.Context) ([]directory.Submission, error)
	GetInstitution(ctx context.Context, id string) (*directory.Institution, error)
}

// Leader is one approved submission shown on a community marker.
type Leader struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Leadership  string    `json:"leadership"`
	Website     string    `json:"website,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// CommunityMarker groups approved submissions for one institution.
type CommunityMarker struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Country       string   `json:"country,omitempty"`
	CountryName   string   `json:"countryName,omitempty"`
	Lat           float64  `json:"lat"`
	Lng           float64  `json:"lng"`
	Status        string   `json:"status"`
	GeocodeStatus string   `json:"geocodeStatus"`
	Leaders       []Leader `json:"leaders"`
}

// CommunityMarkers groups approved submissions by linked institution, else
// institution name, else submission id. The most recently updated
// submission of a group supplies its position and labels. Submissions
// without any coordinates are left out.
func CommunityMarkers(ctx context.Context, store CommunityStore) ([]CommunityMarker, error) {
	subs, err := store.ListApprovedSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing approved submissions: %w", err)
	}

	institutions := make(map[string]*directory.Institution)
	lookup := func(id string) (*directory.Institution, error) {
		if id == "" {
			return nil, nil
		}
		if inst, ok := institutions[id]; ok {
			return inst, nil
		}
		inst, err := store.GetInstitution(ctx, id)
		if err != nil {
			return nil, err
		}
		institutions[id] = inst
		return inst, nil
	}

	markers := []CommunityMarker{}
	index := make(map[string]int)
	for _, s := range subs {
		inst, err := lookup(s.InstitutionID)
		if err != nil {
			return nil, fmt.Errorf("loading institution %s: %w", s.InstitutionID, err)
		}

		lat, lng, ok := s.Coordinates()
		if !ok && inst != nil && inst.HasCoordinates() {
			lat, lng, ok = *inst.Lat, *inst.Lng, true
		}
		if !ok {
			continue
		}

		key := s.InstitutionID
		if key == "" {
			key = s.InstitutionName
		}
		if key == "" {
			key = s.ID
		}

		i, seen := index[key]
		if !seen {
			m := CommunityMarker{
				ID:            key,
				Name:          s.InstitutionName,
				Country:       s.InstitutionCountry,
				CountryName:   s.InstitutionCountryName,
				Lat:           lat,
				Lng:           lng,
				Status:        s.Status,
				GeocodeStatus: s.GeocodeStatus,
				Leaders:       []Leader{},
			}
			if inst != nil {
				if inst.Name != "" {
					m.Name = inst.Name
				}
				if m.Country == "" {
					m.Country = inst.Country
				}
			}
			i = len(markers)
			index[key] = i
			markers = append(markers, m)
		}

		markers[i].Leaders = append(markers[i].Leaders, Leader{
			ID:          s.ID,
			Name:        s.ContactName,
			Leadership:  s.LeadershipApproach,
			Website:     s.InstitutionWebsite,
			SubmittedAt: s.CreatedAt,
		})
	}
	return markers, nil
}

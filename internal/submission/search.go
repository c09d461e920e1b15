package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/gameleadership/leadmap/internal/ratelimit"
	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/rs/zerolog"
)

// Search result limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 25
)

// Suggestion sources.
const (
	SourceSubmission = "submission"
	SourceAuthor     = "author"
)

// SearchStore is the persistence the searches need.
type SearchStore interface {
	SearchInstitutions(ctx context.Context, q, country string, limit int) ([]directory.InstitutionSuggestion, error)
	SearchSubmissionContacts(ctx context.Context, q string, limit int) ([]storage.SubmissionContact, error)
	SearchAuthorNames(ctx context.Context, q string, limit int) ([]string, error)
}

// SearchRequest is one autocomplete query.
type SearchRequest struct {
	IP        string
	UserAgent string
	Query     string
	Country   string
	Limit     int
}

// SubmitterSuggestion is a known person matching a submitter search.
type SubmitterSuggestion struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Source string `json:"source"`
}

// Searcher runs the rate-limited autocomplete searches.
type Searcher struct {
	store            SearchStore
	limiter          *ratelimit.Limiter
	institutionLimit int
	submitterLimit   int
	log              zerolog.Logger
}

// NewSearcher creates a Searcher with the given default result limits.
func NewSearcher(store SearchStore, limiter *ratelimit.Limiter, institutionLimit, submitterLimit int, log zerolog.Logger) *Searcher {
	return &Searcher{
		store:            store,
		limiter:          limiter,
		institutionLimit: institutionLimit,
		submitterLimit:   submitterLimit,
		log:              log,
	}
}

// ClampLimit applies def to an unset (zero) limit and bounds the result
// to [1, MaxSearchLimit]. Negative limits become 1.
func ClampLimit(limit, def int) int {
	if limit == 0 {
		limit = def
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return limit
}

// Institutions suggests institutions whose name contains the query.
// An empty query returns no suggestions and is not counted.
func (s *Searcher) Institutions(ctx context.Context, req SearchRequest) ([]directory.InstitutionSuggestion, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return []directory.InstitutionSuggestion{}, nil
	}
	limit := ClampLimit(req.Limit, s.institutionLimit)
	if err := s.admit(ctx, ratelimit.TypeInstitutionSearch, req); err != nil {
		return nil, err
	}

	country := strings.ToUpper(strings.TrimSpace(req.Country))
	out, err := s.store.SearchInstitutions(ctx, q, country, limit)
	if err != nil {
		s.record(ctx, ratelimit.TypeInstitutionSearch, req, CodeSearchFailed)
		return nil, fmt.Errorf("searching institutions: %w", err)
	}
	s.record(ctx, ratelimit.TypeInstitutionSearch, req, "")
	if out == nil {
		out = []directory.InstitutionSuggestion{}
	}
	return out, nil
}

// Submitters suggests people by name from past submissions and known
// authors.
func (s *Searcher) Submitters(ctx context.Context, req SearchRequest) ([]SubmitterSuggestion, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return []SubmitterSuggestion{}, nil
	}
	limit := ClampLimit(req.Limit, s.submitterLimit)
	if err := s.admit(ctx, ratelimit.TypeSubmitterSearch, req); err != nil {
		return nil, err
	}

	contacts, err := s.store.SearchSubmissionContacts(ctx, q, limit*3)
	if err == nil {
		var authors []string
		authors, err = s.store.SearchAuthorNames(ctx, q, limit*3)
		if err == nil {
			s.record(ctx, ratelimit.TypeSubmitterSearch, req, "")
			return MergeSubmitters(contacts, authors, limit), nil
		}
	}
	s.record(ctx, ratelimit.TypeSubmitterSearch, req, CodeSearchFailed)
	return nil, fmt.Errorf("searching submitters: %w", err)
}

// MergeSubmitters de-duplicates contacts and author names by lower-cased
// name and email, contacts first, and caps the result at limit.
func MergeSubmitters(contacts []storage.SubmissionContact, authors []string, limit int) []SubmitterSuggestion {
	out := []SubmitterSuggestion{}
	seen := make(map[string]bool)
	add := func(name, email, source string) bool {
		name, email = strings.TrimSpace(name), strings.TrimSpace(email)
		if name == "" {
			return false
		}
		key := strings.ToLower(name) + "|" + strings.ToLower(email)
		if seen[key] {
			return false
		}
		seen[key] = true
		out = append(out, SubmitterSuggestion{Name: name, Email: email, Source: source})
		return len(out) >= limit
	}

	for _, c := range contacts {
		if add(c.Name, c.Email, SourceSubmission) {
			return out
		}
	}
	for _, name := range authors {
		if add(name, "", SourceAuthor) {
			return out
		}
	}
	return out
}

func (s *Searcher) admit(ctx context.Context, t ratelimit.Type, req SearchRequest) error {
	d, err := s.limiter.Check(ctx, req.IP, t)
	if err != nil {
		return err
	}
	if !d.Allowed {
		s.record(ctx, t, req, CodeRateLimited)
		return &RateLimitError{RetryAfter: d.RetryAfter}
	}
	return nil
}

func (s *Searcher) record(ctx context.Context, t ratelimit.Type, req SearchRequest, code string) {
	if err := s.limiter.Record(ctx, t, req.IP, req.UserAgent, code); err != nil {
		s.log.Warn().Err(err).Str("type", string(t)).Msg("request log write failed")
	}
}

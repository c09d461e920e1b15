// Package submission handles community submissions: intake with rate
// limiting, validation and geocoding, moderation, and the read-side
// searches and markers built from them.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gameleadership/leadmap/internal/country"
	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/gameleadership/leadmap/internal/geocode"
	"github.com/gameleadership/leadmap/internal/ratelimit"
	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/rs/zerolog"
)

// Request-log error codes.
const (
	CodeRateLimited      = "rate_limited"
	CodeValidationFailed = "validation_failed"
	CodeSaveFailed       = "save_failed"
	CodeSearchFailed     = "search_failed"
)

// ReceiptMessage is returned with every accepted submission.
const ReceiptMessage = "Thank you! Your leadership approach has been recorded and is awaiting review."

var (
	// ErrRateLimited indicates the caller exceeded its quota.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNotFound indicates an unknown submission or institution.
	ErrNotFound = storage.ErrNotFound
)

// RateLimitError carries how long the caller should wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v, retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Store is the persistence the intake needs.
type Store interface {
	GetInstitution(ctx context.Context, id string) (*directory.Institution, error)
	CreateSubmission(ctx context.Context, s directory.Submission) (*directory.Submission, error)
}

// Geocoder resolves a location; it reports failures in the Outcome.
type Geocoder interface {
	Lookup(ctx context.Context, q geocode.Query) geocode.Outcome
}

// Request is one submission attempt.
type Request struct {
	IP        string
	UserAgent string
	Payload   Payload
}

// Receipt acknowledges a stored submission.
type Receipt struct {
	Message       string `json:"message"`
	SubmissionID  string `json:"submissionId"`
	GeocodeStatus string `json:"geocodeStatus"`
}

// Intake accepts new submissions.
type Intake struct {
	store    Store
	limiter  *ratelimit.Limiter
	geocoder Geocoder
	log      zerolog.Logger
}

// NewIntake creates an Intake. A nil geocoder skips lookups.
func NewIntake(store Store, limiter *ratelimit.Limiter, geocoder Geocoder, log zerolog.Logger) *Intake {
	return &Intake{store: store, limiter: limiter, geocoder: geocoder, log: log}
}

// Submit rate-limits, validates, locates and stores a submission. Every
// attempt is recorded in the request log. Rejections are returned as a
// *RateLimitError or a *ValidationError.
func (in *Intake) Submit(ctx context.Context, req Request) (*Receipt, error) {
	decision, err := in.limiter.Check(ctx, req.IP, ratelimit.TypeSubmission)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		in.record(ctx, req, CodeRateLimited)
		return nil, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	d := newDraft(req.Payload)
	msgs := d.check()

	var linked *directory.Institution
	if d.InstitutionID != "" {
		linked, err = in.store.GetInstitution(ctx, d.InstitutionID)
		if err != nil {
			return nil, fmt.Errorf("looking up institution: %w", err)
		}
		if linked == nil {
			msgs = append(msgs, "institutionId does not match an existing institution.")
		} else if d.InstitutionCountry == "" && linked.Country != "" {
			d.InstitutionCountry = linked.Country
		}
	}
	if d.DuplicateOfID != "" {
		dup, err := in.store.GetInstitution(ctx, d.DuplicateOfID)
		if err != nil {
			return nil, fmt.Errorf("looking up institution: %w", err)
		}
		if dup == nil {
			msgs = append(msgs, "duplicateOfId does not match an existing institution.")
		}
	}
	if len(msgs) > 0 {
		in.record(ctx, req, CodeValidationFailed)
		return nil, &ValidationError{Messages: msgs}
	}

	if d.InstitutionCountryName == "" && d.InstitutionCountry != "" {
		d.InstitutionCountryName = country.Name(d.InstitutionCountry)
	}

	sub := d.submission()
	sub.SubmissionIP = req.IP
	in.locate(ctx, &sub, linked)

	saved, err := in.store.CreateSubmission(ctx, sub)
	if err != nil {
		in.log.Error().Err(err).Str("institution", sub.InstitutionName).Msg("failed to save submission")
		in.record(ctx, req, CodeSaveFailed)
		return nil, fmt.Errorf("saving submission: %w", err)
	}
	in.record(ctx, req, "")

	in.log.Info().
		Str("id", saved.ID).
		Str("institution", saved.InstitutionName).
		Str("geocode", saved.GeocodeStatus).
		Msg("submission received")

	return &Receipt{
		Message:       ReceiptMessage,
		SubmissionID:  saved.ID,
		GeocodeStatus: saved.GeocodeStatus,
	}, nil
}

// locate fills the resolved coordinates and geocode status. A linked
// institution with coordinates wins; otherwise the geocoder is asked, and
// submitted coordinates fill whatever is still missing.
func (in *Intake) locate(ctx context.Context, sub *directory.Submission, linked *directory.Institution) {
	sub.GeocodeStatus = directory.GeocodeSkipped

	switch {
	case linked != nil && linked.HasCoordinates():
		sub.GeocodeStatus = directory.GeocodeLinked
		sub.ResolvedLatitude = linked.Lat
		sub.ResolvedLongitude = linked.Lng
		sub.GeocodeResponse = `{"source":"institution"}`
	case in.geocoder != nil:
		out := in.geocoder.Lookup(ctx, geocode.Query{
			InstitutionName: sub.InstitutionName,
			City:            sub.InstitutionCity,
			CountryName:     sub.InstitutionCountryName,
			CountryCode:     sub.InstitutionCountry,
		})
		sub.GeocodeStatus = out.Status
		if len(out.Raw) > 0 {
			sub.GeocodeResponse = string(out.Raw)
		}
		if out.Status == directory.GeocodeSuccess {
			lat, lng := out.Latitude, out.Longitude
			sub.ResolvedLatitude = &lat
			sub.ResolvedLongitude = &lng
		}
	}

	if sub.ResolvedLatitude == nil && sub.Latitude != nil {
		v := *sub.Latitude
		sub.ResolvedLatitude = &v
	}
	if sub.ResolvedLongitude == nil && sub.Longitude != nil {
		v := *sub.Longitude
		sub.ResolvedLongitude = &v
	}
	if sub.GeocodeStatus == directory.GeocodeSkipped && sub.ResolvedLatitude != nil && sub.ResolvedLongitude != nil {
		sub.GeocodeStatus = directory.GeocodeManual
	}
}

// record appends to the request log. Logging failures do not change the
// outcome of the request.
func (in *Intake) record(ctx context.Context, req Request, code string) {
	if err := in.limiter.Record(ctx, ratelimit.TypeSubmission, req.IP, req.UserAgent, code); err != nil {
		in.log.Warn().Err(err).Str("code", code).Msg("request log write failed")
	}
}

func (d draft) submission() directory.Submission {
	var parts []string
	for _, p := range []string{d.InstitutionCity, d.InstitutionCountryName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return directory.Submission{
		ContactName:            d.ContactName,
		ContactEmail:           d.ContactEmail,
		SubmitterType:          d.SubmitterType,
		InstitutionName:        d.InstitutionName,
		InstitutionCountry:     d.InstitutionCountry,
		InstitutionCountryName: d.InstitutionCountryName,
		InstitutionCity:        d.InstitutionCity,
		InstitutionWebsite:     d.InstitutionWebsite,
		LocationQuery:          strings.Join(parts, ", "),
		LeadershipApproach:     d.LeadershipApproach,
		Latitude:               d.Latitude,
		Longitude:              d.Longitude,
		InstitutionID:          d.InstitutionID,
		DuplicateOfID:          d.DuplicateOfID,
		Status:                 directory.StatusPending,
	}
}


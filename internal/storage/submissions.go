package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/google/uuid"
)

const selectSubmissionFields = `id, contact_name, contact_email, submitter_type,
	institution_name, institution_country, institution_country_name, institution_city,
	institution_website, location_query, leadership_approach,
	latitude, longitude, resolved_latitude, resolved_longitude,
	geocode_status, geocode_response, submission_ip, institution_id, duplicate_of_id,
	status, approved_by, approved_at, rejected_at, rejection_reason, reviewed_at,
	created_at, updated_at`

// CreateSubmission inserts a new submission. ID, status and timestamps are
// filled in when empty; the stored row is returned.
func (d *DB) CreateSubmission(ctx context.Context, s directory.Submission) (*directory.Submission, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = directory.StatusPending
	}
	if s.GeocodeStatus == "" {
		s.GeocodeStatus = directory.GeocodeSkipped
	}
	now := d.now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := d.exec(ctx, `
		INSERT INTO submissions (`+selectSubmissionFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ContactName, nullableString(s.ContactEmail), nullableString(s.SubmitterType),
		s.InstitutionName, nullableString(s.InstitutionCountry), nullableString(s.InstitutionCountryName), nullableString(s.InstitutionCity),
		nullableString(s.InstitutionWebsite), nullableString(s.LocationQuery), s.LeadershipApproach,
		nullableFloat(s.Latitude), nullableFloat(s.Longitude), nullableFloat(s.ResolvedLatitude), nullableFloat(s.ResolvedLongitude),
		s.GeocodeStatus, nullableString(s.GeocodeResponse), nullableString(s.SubmissionIP),
		nullableString(s.InstitutionID), nullableString(s.DuplicateOfID),
		s.Status, nullableString(s.ApprovedBy), nullableTime(s.ApprovedAt), nullableTime(s.RejectedAt),
		nullableString(s.RejectionReason), nullableTime(s.ReviewedAt),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating submission: %w", err)
	}
	return &s, nil
}

// GetSubmission returns the submission with the given id, or nil.
func (d *DB) GetSubmission(ctx context.Context, id string) (*directory.Submission, error) {
	s, err := scanSubmission(d.queryRow(ctx, `SELECT `+selectSubmissionFields+` FROM submissions WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("looking up submission %s: %w", id, err)
	}
	return s, nil
}

// ListSubmissions returns submissions with the given status (all when
// empty), newest first.
func (d *DB) ListSubmissions(ctx context.Context, status string) ([]directory.Submission, error) {
	query := `SELECT ` + selectSubmissionFields + ` FROM submissions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`
	return d.listSubmissions(ctx, query, args...)
}

// ListApprovedSubmissions returns approved submissions, most recently
// updated first.
func (d *DB) ListApprovedSubmissions(ctx context.Context) ([]directory.Submission, error) {
	return d.listSubmissions(ctx, `SELECT `+selectSubmissionFields+`
		FROM submissions WHERE status = ? ORDER BY updated_at DESC, id`, directory.StatusApproved)
}

func (d *DB) listSubmissions(ctx context.Context, query string, args ...any) ([]directory.Submission, error) {
	rows, err := d.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var out []directory.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SubmissionContact is a contact name and email taken from a submission.
type SubmissionContact struct {
	Name  string
	Email string
}

// SearchSubmissionContacts returns contacts whose name contains q, newest
// submissions first.
func (d *DB) SearchSubmissionContacts(ctx context.Context, q string, limit int) ([]SubmissionContact, error) {
	rows, err := d.query(ctx, `
		SELECT contact_name, contact_email FROM submissions
		WHERE LOWER(contact_name) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id
		LIMIT ?`, likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("searching submission contacts: %w", err)
	}
	defer rows.Close()

	var out []SubmissionContact
	for rows.Next() {
		var c SubmissionContact
		var email sql.NullString
		if err := rows.Scan(&c.Name, &email); err != nil {
			return nil, err
		}
		c.Email = email.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Review holds the moderation columns written together on every status change.
type Review struct {
	Status          string
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string
	ReviewedAt      *time.Time
}

// SetSubmissionReview overwrites the moderation columns of a submission.
func (d *DB) SetSubmissionReview(ctx context.Context, id string, r Review) error {
	res, err := d.exec(ctx, `
		UPDATE submissions SET
			status = ?, approved_by = ?, approved_at = ?, rejected_at = ?,
			rejection_reason = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ?`,
		r.Status, nullableString(r.ApprovedBy), nullableTime(r.ApprovedAt), nullableTime(r.RejectedAt),
		nullableString(r.RejectionReason), nullableTime(r.ReviewedAt), formatTime(d.now()), id,
	)
	if err != nil {
		return fmt.Errorf("reviewing submission %s: %w", id, err)
	}
	return requireAffected(res, "submission", id)
}

// SetSubmissionInstitution links a submission to an institution; an empty
// institution id clears the link.
func (d *DB) SetSubmissionInstitution(ctx context.Context, id, institutionID string) error {
	return d.setSubmissionColumn(ctx, id, "institution_id", institutionID)
}

// SetSubmissionDuplicate marks a submission as a duplicate of an
// institution; an empty institution id clears the mark.
func (d *DB) SetSubmissionDuplicate(ctx context.Context, id, institutionID string) error {
	return d.setSubmissionColumn(ctx, id, "duplicate_of_id", institutionID)
}

func (d *DB) setSubmissionColumn(ctx context.Context, id, column, value string) error {
	res, err := d.exec(ctx, `UPDATE submissions SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		nullableString(value), formatTime(d.now()), id)
	if err != nil {
		return fmt.Errorf("updating %s of submission %s: %w", column, id, err)
	}
	return requireAffected(res, "submission", id)
}

// DeleteSubmission removes a submission.
func (d *DB) DeleteSubmission(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting submission %s: %w", id, err)
	}
	return requireAffected(res, "submission", id)
}

func scanSubmission(s scanner) (*directory.Submission, error) {
	var sub directory.Submission
	var email, submitterType, country, countryName, city, website, locationQuery sql.NullString
	var geocodeResponse, ip, institutionID, duplicateOfID sql.NullString
	var approvedBy, approvedAt, rejectedAt, rejectionReason, reviewedAt sql.NullString
	var lat, lng, resolvedLat, resolvedLng sql.NullFloat64
	var createdAt, updatedAt string

	err := s.Scan(
		&sub.ID, &sub.ContactName, &email, &submitterType,
		&sub.InstitutionName, &country, &countryName, &city,
		&website, &locationQuery, &sub.LeadershipApproach,
		&lat, &lng, &resolvedLat, &resolvedLng,
		&sub.GeocodeStatus, &geocodeResponse, &ip, &institutionID, &duplicateOfID,
		&sub.Status, &approvedBy, &approvedAt, &rejectedAt, &rejectionReason, &reviewedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	sub.ContactEmail = email.String
	sub.SubmitterType = submitterType.String
	sub.InstitutionCountry = country.String
	sub.InstitutionCountryName = countryName.String
	sub.InstitutionCity = city.String
	sub.InstitutionWebsite = website.String
	sub.LocationQuery = locationQuery.String
	sub.GeocodeResponse = geocodeResponse.String
	sub.SubmissionIP = ip.String
	sub.InstitutionID = institutionID.String
	sub.DuplicateOfID = duplicateOfID.String
	sub.ApprovedBy = approvedBy.String
	sub.RejectionReason = rejectionReason.String

	sub.Latitude = floatPtr(lat)
	sub.Longitude = floatPtr(lng)
	sub.ResolvedLatitude = floatPtr(resolvedLat)
	sub.ResolvedLongitude = floatPtr(resolvedLng)

	if sub.ApprovedAt, err = scanNullableTime(approvedAt); err != nil {
		return nil, fmt.Errorf("parsing approved_at of submission %s: %w", sub.ID, err)
	}
	if sub.RejectedAt, err = scanNullableTime(rejectedAt); err != nil {
		return nil, fmt.Errorf("parsing rejected_at of submission %s: %w", sub.ID, err)
	}
	if sub.ReviewedAt, err = scanNullableTime(reviewedAt); err != nil {
		return nil, fmt.Errorf("parsing reviewed_at of submission %s: %w", sub.ID, err)
	}
	if sub.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of submission %s: %w", sub.ID, err)
	}
	if sub.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of submission %s: %w", sub.ID, err)
	}
	return &sub, nil
}

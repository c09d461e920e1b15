package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultReviewer is recorded when no reviewer identity is configured.
const DefaultReviewer = "admin"

// ModerationStore is the persistence the moderation workflow needs.
type ModerationStore interface {
	GetSubmission(ctx context.Context, id string) (*directory.Submission, error)
	ListSubmissions(ctx context.Context, status string) ([]directory.Submission, error)
	SetSubmissionReview(ctx context.Context, id string, r storage.Review) error
	SetSubmissionInstitution(ctx context.Context, id, institutionID string) error
	SetSubmissionDuplicate(ctx context.Context, id, institutionID string) error
	DeleteSubmission(ctx context.Context, id string) error
	GetInstitution(ctx context.Context, id string) (*directory.Institution, error)
}

// Moderator applies review decisions to submissions.
type Moderator struct {
	store ModerationStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewModerator creates a Moderator.
func NewModerator(store ModerationStore, log zerolog.Logger) *Moderator {
	return &Moderator{store: store, log: log, now: time.Now}
}

// Get returns one submission or ErrNotFound.
func (m *Moderator) Get(ctx context.Context, id string) (*directory.Submission, error) {
	s, err := m.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// List returns submissions with the given status, or all when status is
// empty, newest first.
func (m *Moderator) List(ctx context.Context, status string) ([]directory.Submission, error) {
	switch status {
	case "", directory.StatusPending, directory.StatusApproved, directory.StatusRejected:
	default:
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return m.store.ListSubmissions(ctx, status)
}

// Approve marks a submission approved by reviewer and clears any rejection.
func (m *Moderator) Approve(ctx context.Context, id, reviewer string) error {
	if reviewer = strings.TrimSpace(reviewer); reviewer == "" {
		reviewer = DefaultReviewer
	}
	now := m.now().UTC()
	return m.review(ctx, id, storage.Review{
		Status:     directory.StatusApproved,
		ApprovedBy: reviewer,
		ApprovedAt: &now,
		ReviewedAt: &now,
	})
}

// Reject marks a submission rejected with optional notes and clears any
// approval.
func (m *Moderator) Reject(ctx context.Context, id, notes string) error {
	now := m.now().UTC()
	return m.review(ctx, id, storage.Review{
		Status:          directory.StatusRejected,
		RejectedAt:      &now,
		RejectionReason: strings.TrimSpace(notes),
		ReviewedAt:      &now,
	})
}

// Reset returns a submission to pending and clears all review fields.
func (m *Moderator) Reset(ctx context.Context, id string) error {
	return m.review(ctx, id, storage.Review{Status: directory.StatusPending})
}

func (m *Moderator) review(ctx context.Context, id string, r storage.Review) error {
	if err := m.store.SetSubmissionReview(ctx, id, r); err != nil {
		return err
	}
	m.log.Info().Str("id", id).Str("status", r.Status).Msg("submission reviewed")
	return nil
}

// LinkInstitution links a submission to an existing institution.
func (m *Moderator) LinkInstitution(ctx context.Context, id, institutionID string) error {
	if err := m.requireInstitution(ctx, institutionID); err != nil {
		return err
	}
	return m.store.SetSubmissionInstitution(ctx, id, institutionID)
}

// ClearInstitution removes the institution link.
func (m *Moderator) ClearInstitution(ctx context.Context, id string) error {
	return m.store.SetSubmissionInstitution(ctx, id, "")
}

// MarkDuplicate records that a submission duplicates an existing institution.
func (m *Moderator) MarkDuplicate(ctx context.Context, id, institutionID string) error {
	if err := m.requireInstitution(ctx, institutionID); err != nil {
		return err
	}
	return m.store.SetSubmissionDuplicate(ctx, id, institutionID)
}

// ClearDuplicate removes the duplicate mark.
func (m *Moderator) ClearDuplicate(ctx context.Context, id string) error {
	return m.store.SetSubmissionDuplicate(ctx, id, "")
}

// Delete removes a submission.
func (m *Moderator) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteSubmission(ctx, id); err != nil {
		return err
	}
	m.log.Info().Str("id", id).Msg("submission deleted")
	return nil
}

func (m *Moderator) requireInstitution(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("institution id is required")
	}
	inst, err := m.store.GetInstitution(ctx, id)
	if err != nil {
		return err
	}
	if inst == nil {
		return fmt.Errorf("institution %s: %w", id, ErrNotFound)
	}
	return nil
}

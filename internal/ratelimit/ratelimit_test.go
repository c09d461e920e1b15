package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, policies Policies) (*Limiter, *time.Time) {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "rl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New(db, policies)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_DeniesAtMax(t *testing.T) {
	l, _ := setupLimiter(t, Policies{TypeSubmission: {Window: time.Hour, Max: 2}})
	ctx := context.Background()

	d, err := l.Check(ctx, "203.0.113.1", TypeSubmission)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	require.NoError(t, l.Record(ctx, TypeSubmission, "203.0.113.1", "curl", ""))
	require.NoError(t, l.Record(ctx, TypeSubmission, "203.0.113.1", "curl", "validation_failed"))

	d, err = l.Check(ctx, "203.0.113.1", TypeSubmission)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "failed requests count toward the quota")
	assert.Equal(t, time.Hour, d.RetryAfter)

	d, err = l.Check(ctx, "198.51.100.9", TypeSubmission)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "quotas are per IP")
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, now := setupLimiter(t, Policies{TypeInstitutionSearch: {Window: 10 * time.Minute, Max: 1}})
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, TypeInstitutionSearch, "1.2.3.4", "", ""))
	d, err := l.Check(ctx, "1.2.3.4", TypeInstitutionSearch)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	*now = now.Add(11 * time.Minute)
	d, err = l.Check(ctx, "1.2.3.4", TypeInstitutionSearch)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_TypesAreSeparate(t *testing.T) {
	l, _ := setupLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(ctx, TypeSubmission, "", "", ""))
	}
	d, err := l.Check(ctx, "", TypeSubmission)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "empty IP is tracked as unknown")

	d, err = l.Check(ctx, "", TypeSubmitterSearch)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 39, d.Remaining)
}

func TestLimiter_UnknownType(t *testing.T) {
	l, _ := setupLimiter(t, Policies{})
	_, err := l.Check(context.Background(), "1.1.1.1", TypeSubmission)
	assert.Error(t, err)
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, Policy{Window: time.Hour, Max: 5}, p[TypeSubmission])
	assert.Equal(t, Policy{Window: 10 * time.Minute, Max: 40}, p[TypeInstitutionSearch])
	assert.Equal(t, p[TypeInstitutionSearch], p[TypeSubmitterSearch])
}

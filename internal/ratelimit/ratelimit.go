// Package ratelimit enforces per-IP request quotas over the persisted
// request log. Counts come from the store, so limits hold across processes.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gameleadership/leadmap/internal/directory"
)

// Type identifies a rate-limited request kind.
type Type string

const (
	TypeSubmission        Type = "submission"
	TypeInstitutionSearch Type = "institution-search"
	TypeSubmitterSearch   Type = "submitter-search"
)

// UnknownIP is recorded when the client address cannot be determined.
const UnknownIP = "unknown"

// Policy allows Max requests per IP within a sliding Window.
type Policy struct {
	Window time.Duration `json:"window"`
	Max    int           `json:"max"`
}

// Policies maps request types to their policy.
type Policies map[Type]Policy

// DefaultPolicies returns the built-in quotas: 5 submissions per hour and
// 40 searches per 10 minutes.
func DefaultPolicies() Policies {
	search := Policy{Window: 10 * time.Minute, Max: 40}
	return Policies{
		TypeSubmission:        {Window: 60 * time.Minute, Max: 5},
		TypeInstitutionSearch: search,
		TypeSubmitterSearch:   search,
	}
}

// Store is the request log the limiter reads and appends to.
type Store interface {
	CountRequests(ctx context.Context, ip, requestType string, since time.Time) (int, error)
	LogRequest(ctx context.Context, r directory.RequestLog) error
}

// Decision is the result of a quota check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Limiter checks quotas against the request log.
type Limiter struct {
	store    Store
	policies Policies
	now      func() time.Time
}

// New creates a Limiter. A nil policies map uses DefaultPolicies.
func New(store Store, policies Policies) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Limiter{store: store, policies: policies, now: time.Now}
}

// Policy returns the policy for t.
func (l *Limiter) Policy(t Type) (Policy, bool) {
	p, ok := l.policies[t]
	return p, ok
}

// Check counts the requests ip made of type t within the policy window.
// At or above the maximum the request is denied and RetryAfter is the window.
func (l *Limiter) Check(ctx context.Context, ip string, t Type) (Decision, error) {
	p, ok := l.policies[t]
	if !ok {
		return Decision{}, fmt.Errorf("no rate limit policy for %q", t)
	}
	n, err := l.store.CountRequests(ctx, normalizeIP(ip), string(t), l.now().Add(-p.Window))
	if err != nil {
		return Decision{}, fmt.Errorf("checking rate limit: %w", err)
	}
	if n >= p.Max {
		return Decision{Allowed: false, RetryAfter: p.Window}, nil
	}
	return Decision{Allowed: true, Remaining: p.Max - n - 1}, nil
}

// Record appends an entry to the request log. Failed requests count
// toward the quota as well.
func (l *Limiter) Record(ctx context.Context, t Type, ip, userAgent, errCode string) error {
	entry := directory.RequestLog{
		IP:        normalizeIP(ip),
		UserAgent: userAgent,
		Success:   errCode == "",
		Error:     errCode,
		Type:      string(t),
		CreatedAt: l.now().UTC(),
	}
	if err := l.store.LogRequest(ctx, entry); err != nil {
		return fmt.Errorf("recording request: %w", err)
	}
	return nil
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return UnknownIP
	}
	return ip
}

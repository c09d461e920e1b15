package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/google/uuid"
)

// LogRequest appends an entry to the request log.
func (d *DB) LogRequest(ctx context.Context, r directory.RequestLog) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = d.now()
	}
	_, err := d.exec(ctx, `
		INSERT INTO submission_requests (id, ip, user_agent, success, error, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.IP, nullableString(r.UserAgent), r.Success, nullableString(r.Error), r.Type, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("logging %s request: %w", r.Type, err)
	}
	return nil
}

// CountRequests counts logged requests of one type from one IP at or after since.
func (d *DB) CountRequests(ctx context.Context, ip, requestType string, since time.Time) (int, error) {
	var n int
	err := d.queryRow(ctx, `
		SELECT COUNT(*) FROM submission_requests
		WHERE ip = ? AND type = ? AND created_at >= ?`,
		ip, requestType, formatTime(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s requests: %w", requestType, err)
	}
	return n, nil
}

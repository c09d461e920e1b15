package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind TransientKind
		wantOK   bool
	}{
		{"nil", nil, 0, false},
		{"plain", errors.New("syntax error"), 0, false},
		{"tagged", &TransientError{Kind: PoolExhausted, Err: errors.New("x")}, PoolExhausted, true},
		{"wrapped tag", fmt.Errorf("op: %w", &TransientError{Kind: Unreachable, Err: errors.New("x")}), Unreachable, true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), TimedOut, true},
		{"canceled", context.Canceled, 0, false},
		{"bad conn", driver.ErrBadConn, Unreachable, true},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, Unreachable, true},
		{"pg connection", &pq.Error{Code: "08006"}, Unreachable, true},
		{"pg too many", &pq.Error{Code: "53300"}, PoolExhausted, true},
		{"pg canceled", &pq.Error{Code: "57014"}, TimedOut, true},
		{"pg unique", &pq.Error{Code: "23505"}, 0, false},
		{"sqlite busy text", errors.New("database is locked (5) (SQLITE_BUSY)"), PoolExhausted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := Classify(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

// countingOpener opens SQLite at a fixed path and counts connections.
type countingOpener struct {
	path  string
	opens int
}

func (o *countingOpener) open(ctx context.Context) (*DB, error) {
	o.opens++
	return Open(ctx, o.path)
}

func newTestSupervisor(t *testing.T, opts ...SupervisorOption) (*Supervisor, *countingOpener) {
	t.Helper()
	opener := &countingOpener{path: filepath.Join(t.TempDir(), "sup.db")}
	opts = append([]SupervisorOption{WithBackoff(time.Millisecond, 3*time.Millisecond)}, opts...)
	s, err := NewSupervisor(context.Background(), opener.open, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, opener
}

func TestSupervisor_RetriesTransientAndReconnects(t *testing.T) {
	s, opener := newTestSupervisor(t)
	require.Equal(t, 1, opener.opens)

	calls := 0
	var handles []*DB
	err := s.Do(context.Background(), "flaky", func(db *DB) error {
		calls++
		handles = append(handles, db)
		if calls < 3 {
			return &TransientError{Kind: Unreachable, Err: errors.New("connection reset")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, opener.opens, "each retry reconnects")
	assert.NotSame(t, handles[0], handles[1], "fresh handle after reconnect")
}

func TestSupervisor_FatalErrorNotRetried(t *testing.T) {
	s, opener := newTestSupervisor(t)

	boom := errors.New("constraint failed")
	calls := 0
	err := s.Do(context.Background(), "paper.upsert", func(*DB) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "paper.upsert")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, opener.opens)
}

func TestSupervisor_RetryCeiling(t *testing.T) {
	s, _ := newTestSupervisor(t, WithMaxRetries(2))

	calls := 0
	err := s.Do(context.Background(), "always", func(*DB) error {
		calls++
		return &TransientError{Kind: TimedOut, Err: errors.New("slow")}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")

	kind, ok := Classify(err)
	assert.True(t, ok)
	assert.Equal(t, TimedOut, kind)
}

func TestSupervisor_Backoff(t *testing.T) {
	s := &Supervisor{step: RetryStep, maxDelay: RetryMaxDelay}
	assert.Equal(t, 500*time.Millisecond, s.backoff(1))
	assert.Equal(t, 2500*time.Millisecond, s.backoff(5))
	assert.Equal(t, 4*time.Second, s.backoff(9))
}

func TestSupervisor_CanceledContextStops(t *testing.T) {
	s, _ := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := s.Do(ctx, "op", func(*DB) error {
		calls++
		return &TransientError{Kind: Unreachable, Err: errors.New("down")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall(t *testing.T) {
	s, _ := newTestSupervisor(t)

	counts, err := Call(context.Background(), s, "counts", func(db *DB) (Counts, error) {
		return db.Counts(context.Background())
	})
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

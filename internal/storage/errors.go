package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
)

// TransientKind names a class of failure worth reconnecting and retrying.
type TransientKind int

const (
	// Unreachable: the database cannot be reached or the connection dropped.
	Unreachable TransientKind = iota + 1
	// PoolExhausted: no connection or lock could be obtained in time.
	PoolExhausted
	// TimedOut: the operation exceeded its deadline.
	TimedOut
)

func (k TransientKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case PoolExhausted:
		return "pool exhausted"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// TransientError tags an error with its transient kind.
type TransientError struct {
	Kind TransientKind
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// SQLite primary result codes; extended codes keep these in the low byte.
const (
	sqliteBusy     = 5
	sqliteLocked   = 6
	sqliteCantOpen = 14
)

// Classify reports whether err is one of the designated transient failures
// and which kind. Every other error is fatal to the caller.
func Classify(err error) (TransientKind, bool) {
	if err == nil {
		return 0, false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return te.Kind, true
	}

	// Cancellation of the caller's own context is never retried.
	if errors.Is(err, context.Canceled) {
		return 0, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimedOut, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPostgres(pqErr)
	}

	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return PoolExhausted, true
		case sqliteCantOpen:
			return Unreachable, true
		}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return Unreachable, true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return Unreachable, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return TimedOut, true
		}
		return Unreachable, true
	}

	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return PoolExhausted, true
	}
	return 0, false
}

func classifyPostgres(err *pq.Error) (TransientKind, bool) {
	switch {
	case err.Code.Class() == "08": // connection_exception
		return Unreachable, true
	case err.Code == "57P01", err.Code == "57P02", err.Code == "57P03": // shutdown, cannot_connect_now
		return Unreachable, true
	case err.Code == "53300": // too_many_connections
		return PoolExhausted, true
	case err.Code == "57014", err.Code == "55P03": // query_canceled, lock_not_available
		return TimedOut, true
	}
	return 0, false
}

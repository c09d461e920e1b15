package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Retry defaults: linear backoff of RetryStep per attempt, capped at
// RetryMaxDelay, for at most DefaultMaxRetries retries.
const (
	DefaultMaxRetries = 5
	RetryStep         = 500 * time.Millisecond
	RetryMaxDelay     = 4 * time.Second
)

// Opener establishes a fresh database connection.
type Opener func(ctx context.Context) (*DB, error)

// Supervisor owns the connection used by a batch job. Each operation receives
// the current handle explicitly; on a transient failure the handle is closed,
// the supervisor waits, reconnects and runs the operation again.
type Supervisor struct {
	open       Opener
	db         *DB
	log        zerolog.Logger
	maxRetries int
	step       time.Duration
	maxDelay   time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithLogger sets the logger used for retry warnings.
func WithLogger(log zerolog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.log = log
	}
}

// WithMaxRetries sets the retry ceiling.
func WithMaxRetries(n int) SupervisorOption {
	return func(s *Supervisor) {
		s.maxRetries = n
	}
}

// WithBackoff sets the per-attempt delay step and the delay cap.
func WithBackoff(step, maxDelay time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.step = step
		s.maxDelay = maxDelay
	}
}

// NewSupervisor opens the initial connection through open.
func NewSupervisor(ctx context.Context, open Opener, opts ...SupervisorOption) (*Supervisor, error) {
	s := &Supervisor{
		open:       open,
		log:        zerolog.Nop(),
		maxRetries: DefaultMaxRetries,
		step:       RetryStep,
		maxDelay:   RetryMaxDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Do(ctx, "connect", func(*DB) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

// DSNOpener returns an Opener for Open(ctx, dsn).
func DSNOpener(dsn string) Opener {
	return func(ctx context.Context) (*DB, error) {
		return Open(ctx, dsn)
	}
}

// Do runs fn with the current connection, reconnecting and retrying on
// transient failures. Any other error, or running out of retries, is
// returned wrapped with label.
func (s *Supervisor) Do(ctx context.Context, label string, fn func(*DB) error) error {
	for attempt := 0; ; attempt++ {
		err := s.try(ctx, fn)
		if err == nil {
			return nil
		}

		kind, transient := Classify(err)
		if !transient || attempt >= s.maxRetries || ctx.Err() != nil {
			return fmt.Errorf("%s: %w", label, err)
		}

		wait := s.backoff(attempt + 1)
		s.log.Warn().
			Err(err).
			Str("op", label).
			Str("kind", kind.String()).
			Int("attempt", attempt+1).
			Int("max_retries", s.maxRetries).
			Dur("wait", wait).
			Msg("lost connection, retrying")

		s.drop()
		if err := s.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}
}

// Call is Do for operations that return a value.
func Call[T any](ctx context.Context, s *Supervisor, label string, fn func(*DB) (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, label, func(db *DB) error {
		v, err := fn(db)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Close closes the current connection, if any.
func (s *Supervisor) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Supervisor) try(ctx context.Context, fn func(*DB) error) error {
	if s.db == nil {
		db, err := s.open(ctx)
		if err != nil {
			return err
		}
		s.db = db
	}
	return fn(s.db)
}

func (s *Supervisor) drop() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.log.Debug().Err(err).Msg("closing dropped connection")
	}
	s.db = nil
}

func (s *Supervisor) backoff(attempt int) time.Duration {
	wait := s.step * time.Duration(attempt)
	if wait > s.maxDelay {
		return s.maxDelay
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

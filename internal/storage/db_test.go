package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a fresh SQLite database under t.TempDir.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Open()")
	t.Cleanup(func() { db.Close() })
	return db
}

// fixedClock makes db.now return successive instants one second apart.
func fixedClock(db *DB, start time.Time) {
	current := start
	db.now = func() time.Time {
		t := current
		current = current.Add(time.Second)
		return t
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leadmap.db")

	db, err := Open(context.Background(), "sqlite:"+dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Open() did not create database file")

	counts, err := db.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "leadmap.db")

	db, err := Open(ctx, dbPath)
	require.NoError(t, err)
	_, err = db.UpsertPaper(ctx, PaperUpsert{DBLPKey: "conf/chiplay/A21", Title: "A"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	p, err := db.GetPaperByDBLPKey(ctx, "conf/chiplay/A21")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "A", p.Title)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "sqlite:")
	assert.Error(t, err)
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn         string
		wantDialect Dialect
		wantSource  string
	}{
		{"postgres://u:p@localhost/leadmap", Postgres, "postgres://u:p@localhost/leadmap"},
		{"postgresql://localhost/leadmap", Postgres, "postgresql://localhost/leadmap"},
		{"sqlite:data/leadmap.db", SQLite, "data/leadmap.db"},
		{"sqlite://data/leadmap.db", SQLite, "data/leadmap.db"},
		{"data/leadmap.db", SQLite, "data/leadmap.db"},
		{"file:test.db?cache=shared", SQLite, "file:test.db?cache=shared"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			dialect, source := ParseDSN(tt.dsn)
			assert.Equal(t, tt.wantDialect, dialect)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM papers WHERE doi = ? AND year > ? LIMIT ?"

	sqlite := &DB{dialect: SQLite}
	assert.Equal(t, q, sqlite.rebind(q))

	pg := &DB{dialect: Postgres}
	assert.Equal(t, "SELECT * FROM papers WHERE doi = $1 AND year > $2 LIMIT $3", pg.rebind(q))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%acme%", likePattern("ACME"))
	assert.Equal(t, `%50\% off\_now%`, likePattern("50% off_now"))
}

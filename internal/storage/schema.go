package storage

import "context"

// schema is shared by both dialects: only portable column types, and
// timestamps stored as fixed-width UTC text.
const schema = `
	-- Papers, keyed by DBLP key; DOI and OpenAlex id are unique when present
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		dblp_key TEXT NOT NULL UNIQUE,
		doi TEXT UNIQUE,
		openalex_id TEXT UNIQUE,
		title TEXT,
		year INTEGER,
		venue TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS institutions (
		id TEXT PRIMARY KEY,
		name TEXT,
		country TEXT,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		type TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_institutions_name ON institutions(name);

	CREATE TABLE IF NOT EXISTS authors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		openalex_id TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_authors_name ON authors(name);

	CREATE TABLE IF NOT EXISTS authorships (
		paper_id TEXT NOT NULL REFERENCES papers(id),
		author_id TEXT NOT NULL REFERENCES authors(id),
		institution_id TEXT NOT NULL REFERENCES institutions(id),
		author_order INTEGER,
		PRIMARY KEY (paper_id, author_id, institution_id)
	);

	CREATE INDEX IF NOT EXISTS idx_authorships_institution ON authorships(institution_id);
	CREATE INDEX IF NOT EXISTS idx_authorships_author ON authorships(author_id);

	-- User submissions awaiting moderation
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		contact_name TEXT NOT NULL,
		contact_email TEXT,
		submitter_type TEXT,
		institution_name TEXT NOT NULL,
		institution_country TEXT,
		institution_country_name TEXT,
		institution_city TEXT,
		institution_website TEXT,
		location_query TEXT,
		leadership_approach TEXT NOT NULL,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		resolved_latitude DOUBLE PRECISION,
		resolved_longitude DOUBLE PRECISION,
		geocode_status TEXT NOT NULL,
		geocode_response TEXT,
		submission_ip TEXT,
		institution_id TEXT REFERENCES institutions(id) ON DELETE SET NULL,
		duplicate_of_id TEXT REFERENCES institutions(id) ON DELETE SET NULL,
		status TEXT NOT NULL,
		approved_by TEXT,
		approved_at TEXT,
		rejected_at TEXT,
		rejection_reason TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status, created_at);

	-- Request log backing the row-counting rate limiter
	CREATE TABLE IF NOT EXISTS submission_requests (
		id TEXT PRIMARY KEY,
		ip TEXT NOT NULL,
		user_agent TEXT,
		success BOOLEAN NOT NULL,
		error TEXT,
		type TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submission_requests_lookup ON submission_requests(ip, type, created_at);
`

// createSchema creates the database schema if it doesn't exist.
func (d *DB) createSchema(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

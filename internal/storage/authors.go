package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/google/uuid"
)

const selectAuthorFields = `id, name, openalex_id, created_at`

// UpsertAuthorByOpenAlexID creates or renames the author with the given
// OpenAlex id.
func (d *DB) UpsertAuthorByOpenAlexID(ctx context.Context, openalexID, name string) (*directory.Author, error) {
	if openalexID == "" {
		return nil, errors.New("upserting author: empty OpenAlex id")
	}
	row := d.queryRow(ctx, `
		INSERT INTO authors (id, name, openalex_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (openalex_id) DO UPDATE SET name = excluded.name
		RETURNING `+selectAuthorFields,
		uuid.NewString(), name, openalexID, formatTime(d.now()),
	)
	author, err := scanAuthor(row)
	if err != nil {
		return nil, fmt.Errorf("upserting author %s: %w", openalexID, err)
	}
	return author, nil
}

// FindAuthorByName returns the earliest-created author with exactly this
// name, or nil. Distinct people sharing a name resolve to the same row.
func (d *DB) FindAuthorByName(ctx context.Context, name string) (*directory.Author, error) {
	author, err := scanAuthor(d.queryRow(ctx, `
		SELECT `+selectAuthorFields+`
		FROM authors
		WHERE name = ?
		ORDER BY created_at, id
		LIMIT 1`, name))
	if err != nil {
		return nil, fmt.Errorf("finding author %q: %w", name, err)
	}
	return author, nil
}

// CreateAuthor inserts a new author without an external id.
func (d *DB) CreateAuthor(ctx context.Context, name string) (*directory.Author, error) {
	a := directory.Author{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: d.now().UTC(),
	}
	_, err := d.exec(ctx, `INSERT INTO authors (id, name, openalex_id, created_at) VALUES (?, ?, NULL, ?)`,
		a.ID, a.Name, formatTime(a.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("creating author %q: %w", name, err)
	}
	return &a, nil
}

// ListAuthors returns all authors ordered by name.
func (d *DB) ListAuthors(ctx context.Context) ([]directory.Author, error) {
	rows, err := d.query(ctx, `SELECT `+selectAuthorFields+` FROM authors ORDER BY name, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	defer rows.Close()

	var out []directory.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SearchAuthorNames returns author names containing q, alphabetically.
func (d *DB) SearchAuthorNames(ctx context.Context, q string, limit int) ([]string, error) {
	rows, err := d.query(ctx, `
		SELECT name FROM authors
		WHERE LOWER(name) LIKE ? ESCAPE '\'
		ORDER BY name
		LIMIT ?`, likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("searching authors: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanAuthor(s scanner) (*directory.Author, error) {
	var a directory.Author
	var openalexID sql.NullString
	var createdAt string

	if err := s.Scan(&a.ID, &a.Name, &openalexID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.OpenAlexID = openalexID.String
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of author %s: %w", a.ID, err)
	}
	a.CreatedAt = t
	return &a, nil
}

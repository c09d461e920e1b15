package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gameleadership/leadmap/internal/directory"
)

// Field is a tri-state column write. The zero value is unset and leaves the
// stored column untouched; a null Field clears it; otherwise Value is written.
// Decoding JSON distinguishes an absent key (unset) from an explicit null.
type Field[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Value returns a Field that writes v.
func Value[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Null returns a Field that clears the column.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// UnmarshalJSON marks the field as present and records explicit nulls.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// arg returns the value to bind, nil for unset or null fields.
func (f Field[T]) arg() any {
	if !f.Set || f.Null {
		return nil
	}
	return f.Value
}

// InstitutionFields are the descriptive (non-identity) institution columns.
type InstitutionFields struct {
	Name    Field[string]  `json:"name"`
	Country Field[string]  `json:"country"`
	Lat     Field[float64] `json:"lat"`
	Lng     Field[float64] `json:"lng"`
	Type    Field[string]  `json:"type"`
}

// UpsertInstitution creates the institution with the given id or updates the
// set fields of an existing one. The id itself is never rewritten.
func (d *DB) UpsertInstitution(ctx context.Context, id string, f InstitutionFields) error {
	if id == "" {
		return errors.New("upserting institution: empty id")
	}

	columns := []struct {
		name string
		set  bool
		arg  any
	}{
		{"name", f.Name.Set, f.Name.arg()},
		{"country", f.Country.Set, f.Country.arg()},
		{"lat", f.Lat.Set, f.Lat.arg()},
		{"lng", f.Lng.Set, f.Lng.arg()},
		{"type", f.Type.Set, f.Type.arg()},
	}

	names := []string{"id"}
	args := []any{id}
	var updates []string
	for _, c := range columns {
		names = append(names, c.name)
		args = append(args, c.arg)
		if c.set {
			updates = append(updates, c.name+" = excluded."+c.name)
		}
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	query := `INSERT INTO institutions (` + strings.Join(names, ", ") + `)
		VALUES (?` + strings.Repeat(", ?", len(names)-1) + `)
		ON CONFLICT (id) ` + conflict

	if _, err := d.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting institution %s: %w", id, err)
	}
	return nil
}

const selectInstitutionFields = `id, name, country, lat, lng, type`

// GetInstitution returns the institution with the given id, or nil.
func (d *DB) GetInstitution(ctx context.Context, id string) (*directory.Institution, error) {
	if id == "" {
		return nil, nil
	}
	inst, err := scanInstitution(d.queryRow(ctx, `SELECT `+selectInstitutionFields+` FROM institutions WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("looking up institution %s: %w", id, err)
	}
	return inst, nil
}

// ListInstitutions returns all institutions ordered by id.
func (d *DB) ListInstitutions(ctx context.Context) ([]directory.Institution, error) {
	rows, err := d.query(ctx, `SELECT `+selectInstitutionFields+` FROM institutions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing institutions: %w", err)
	}
	defer rows.Close()

	var out []directory.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

// SearchInstitutions finds institutions whose name contains q
// (case-insensitive), optionally restricted to a two-letter country code.
func (d *DB) SearchInstitutions(ctx context.Context, q, country string, limit int) ([]directory.InstitutionSuggestion, error) {
	query := `
		SELECT i.id, i.name, i.country, i.lat, i.lng,
			(SELECT COUNT(*) FROM authorships a WHERE a.institution_id = i.id) AS paper_count
		FROM institutions i
		WHERE LOWER(i.name) LIKE ? ESCAPE '\'`
	args := []any{likePattern(q)}

	if len(country) == 2 {
		query += " AND i.country = ?"
		args = append(args, strings.ToUpper(country))
	}
	query += " ORDER BY i.name, i.id LIMIT ?"
	args = append(args, limit)

	rows, err := d.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching institutions: %w", err)
	}
	defer rows.Close()

	var out []directory.InstitutionSuggestion
	for rows.Next() {
		var s directory.InstitutionSuggestion
		var name, ctry sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&s.ID, &name, &ctry, &lat, &lng, &s.PaperCount); err != nil {
			return nil, err
		}
		s.Name = name.String
		s.Country = ctry.String
		s.Lat = floatPtr(lat)
		s.Lng = floatPtr(lng)
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanInstitution(s scanner) (*directory.Institution, error) {
	var inst directory.Institution
	var name, country, typ sql.NullString
	var lat, lng sql.NullFloat64

	if err := s.Scan(&inst.ID, &name, &country, &lat, &lng, &typ); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	inst.Name = name.String
	inst.Country = country.String
	inst.Type = typ.String
	inst.Lat = floatPtr(lat)
	inst.Lng = floatPtr(lng)
	return &inst, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/google/uuid"
)

const selectPaperFields = `id, dblp_key, doi, openalex_id, title, year, venue`

// PaperUpsert carries the fields written by a paper upsert.
// An empty DOI keeps whatever DOI the stored paper already has.
type PaperUpsert struct {
	DBLPKey string
	Title   string
	Year    *int
	Venue   string
	DOI     string
}

// UpsertPaper creates or updates the paper identified by its DBLP key.
func (d *DB) UpsertPaper(ctx context.Context, p PaperUpsert) (*directory.Paper, error) {
	if p.DBLPKey == "" {
		return nil, errors.New("upserting paper: empty DBLP key")
	}
	venue := p.Venue
	if venue == "" {
		venue = directory.DefaultVenue
	}

	row := d.queryRow(ctx, `
		INSERT INTO papers (id, dblp_key, title, year, venue, doi)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (dblp_key) DO UPDATE SET
			title = excluded.title,
			year = excluded.year,
			venue = excluded.venue,
			doi = COALESCE(excluded.doi, papers.doi)
		RETURNING `+selectPaperFields,
		uuid.NewString(), p.DBLPKey, nullableString(p.Title), nullableInt(p.Year), venue, nullableString(p.DOI),
	)
	paper, err := scanPaper(row)
	if err != nil {
		return nil, fmt.Errorf("upserting paper %s: %w", p.DBLPKey, err)
	}
	return paper, nil
}

// GetPaperByDBLPKey returns the paper with the given DBLP key, or nil.
func (d *DB) GetPaperByDBLPKey(ctx context.Context, key string) (*directory.Paper, error) {
	return d.getPaperBy(ctx, "dblp_key", key)
}

// GetPaperByDOI returns the paper owning the given DOI, or nil.
func (d *DB) GetPaperByDOI(ctx context.Context, doi string) (*directory.Paper, error) {
	return d.getPaperBy(ctx, "doi", doi)
}

// GetPaperByOpenAlexID returns the paper owning the given OpenAlex id, or nil.
func (d *DB) GetPaperByOpenAlexID(ctx context.Context, id string) (*directory.Paper, error) {
	return d.getPaperBy(ctx, "openalex_id", id)
}

func (d *DB) getPaperBy(ctx context.Context, column, value string) (*directory.Paper, error) {
	if value == "" {
		return nil, nil
	}
	paper, err := scanPaper(d.queryRow(ctx, `SELECT `+selectPaperFields+` FROM papers WHERE `+column+` = ?`, value))
	if err != nil {
		return nil, fmt.Errorf("looking up paper by %s: %w", column, err)
	}
	return paper, nil
}

// UpdatePaperIDs writes external identifiers onto a paper. Empty values are
// left unchanged; callers check ownership first.
func (d *DB) UpdatePaperIDs(ctx context.Context, paperID, doi, openalexID string) error {
	if doi == "" && openalexID == "" {
		return nil
	}
	res, err := d.exec(ctx, `
		UPDATE papers SET
			doi = COALESCE(?, doi),
			openalex_id = COALESCE(?, openalex_id)
		WHERE id = ?`,
		nullableString(doi), nullableString(openalexID), paperID,
	)
	if err != nil {
		return fmt.Errorf("updating ids of paper %s: %w", paperID, err)
	}
	return requireAffected(res, "paper", paperID)
}

// ListPapers returns all papers ordered by DBLP key.
func (d *DB) ListPapers(ctx context.Context) ([]directory.Paper, error) {
	rows, err := d.query(ctx, `SELECT `+selectPaperFields+` FROM papers ORDER BY dblp_key`)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var papers []directory.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

func scanPaper(s scanner) (*directory.Paper, error) {
	var p directory.Paper
	var doi, openalexID, title sql.NullString
	var year sql.NullInt64

	err := s.Scan(&p.ID, &p.DBLPKey, &doi, &openalexID, &title, &year, &p.Venue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	p.DOI = doi.String
	p.OpenAlexID = openalexID.String
	p.Title = title.String
	p.Year = intPtr(year)
	return &p, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

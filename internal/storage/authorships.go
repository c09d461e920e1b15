package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gameleadership/leadmap/internal/directory"
)

// LinkAuthorship inserts the (paper, author, institution) triple. An existing
// triple is left as it is; created reports whether a row was added.
func (d *DB) LinkAuthorship(ctx context.Context, a directory.Authorship) (created bool, err error) {
	res, err := d.exec(ctx, `
		INSERT INTO authorships (paper_id, author_id, institution_id, author_order)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (paper_id, author_id, institution_id) DO NOTHING`,
		a.PaperID, a.AuthorID, a.InstitutionID, nullableInt(a.Order),
	)
	if err != nil {
		return false, fmt.Errorf("linking authorship %s/%s/%s: %w", a.PaperID, a.AuthorID, a.InstitutionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListAuthorships returns the authorships of a paper, ordered by author
// position with unordered entries last.
func (d *DB) ListAuthorships(ctx context.Context, paperID string) ([]directory.Authorship, error) {
	rows, err := d.query(ctx, `
		SELECT paper_id, author_id, institution_id, author_order
		FROM authorships
		WHERE paper_id = ?
		ORDER BY CASE WHEN author_order IS NULL THEN 1 ELSE 0 END, author_order, author_id, institution_id`,
		paperID)
	if err != nil {
		return nil, fmt.Errorf("listing authorships of %s: %w", paperID, err)
	}
	defer rows.Close()

	var out []directory.Authorship
	for rows.Next() {
		var a directory.Authorship
		var order sql.NullInt64
		if err := rows.Scan(&a.PaperID, &a.AuthorID, &a.InstitutionID, &order); err != nil {
			return nil, err
		}
		a.Order = intPtr(order)
		out = append(out, a)
	}
	return out, rows.Err()
}

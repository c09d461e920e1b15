package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gameleadership/leadmap/internal/directory"
)

// TopAuthorsPerMarker is the number of author names attached to a marker.
const TopAuthorsPerMarker = 5

// Markers returns every geolocated institution with at least one authorship,
// most papers first.
func (d *DB) Markers(ctx context.Context) ([]directory.Marker, error) {
	rows, err := d.query(ctx, `
		SELECT i.id, i.name, i.country, i.lat, i.lng, COUNT(DISTINCT a.paper_id) AS paper_count
		FROM institutions i
		INNER JOIN authorships a ON a.institution_id = i.id
		WHERE i.lat IS NOT NULL AND i.lng IS NOT NULL
		GROUP BY i.id, i.name, i.country, i.lat, i.lng
		ORDER BY paper_count DESC, i.id`)
	if err != nil {
		return nil, fmt.Errorf("querying markers: %w", err)
	}
	defer rows.Close()

	var markers []directory.Marker
	index := make(map[string]int)
	for rows.Next() {
		var m directory.Marker
		var name, country sql.NullString
		if err := rows.Scan(&m.ID, &name, &country, &m.Lat, &m.Lng, &m.PaperCount); err != nil {
			return nil, err
		}
		m.Name = name.String
		m.Country = country.String
		m.TopAuthors = []string{}
		index[m.ID] = len(markers)
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return markers, nil
	}

	if err := d.attachTopAuthors(ctx, markers, index); err != nil {
		return nil, err
	}
	return markers, nil
}

// attachTopAuthors fills TopAuthors with the most frequent author names per
// institution, ties broken by name.
func (d *DB) attachTopAuthors(ctx context.Context, markers []directory.Marker, index map[string]int) error {
	rows, err := d.query(ctx, `
		SELECT a.institution_id, au.name, COUNT(*) AS n
		FROM authorships a
		INNER JOIN authors au ON au.id = a.author_id
		GROUP BY a.institution_id, au.name
		ORDER BY a.institution_id, n DESC, au.name`)
	if err != nil {
		return fmt.Errorf("querying top authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var instID, name string
		var n int
		if err := rows.Scan(&instID, &name, &n); err != nil {
			return err
		}
		i, ok := index[instID]
		if !ok || len(markers[i].TopAuthors) >= TopAuthorsPerMarker {
			continue
		}
		markers[i].TopAuthors = append(markers[i].TopAuthors, name)
	}
	return rows.Err()
}

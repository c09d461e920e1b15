package storage

import (
	"context"
	"testing"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertInstitution(ctx, "big", InstitutionFields{Name: Value("Big U"), Country: Value("US"), Lat: Value(10.0), Lng: Value(20.0)}))
	require.NoError(t, db.UpsertInstitution(ctx, "small", InstitutionFields{Name: Value("Small U"), Lat: Value(1.0), Lng: Value(2.0)}))
	require.NoError(t, db.UpsertInstitution(ctx, "nowhere", InstitutionFields{Name: Value("No Coords")}))
	require.NoError(t, db.UpsertInstitution(ctx, "unused", InstitutionFields{Lat: Value(0.0), Lng: Value(0.0)}))

	var papers []*directory.Paper
	for _, k := range []string{"p1", "p2", "p3"} {
		p, err := db.UpsertPaper(ctx, PaperUpsert{DBLPKey: k})
		require.NoError(t, err)
		papers = append(papers, p)
	}
	authors := map[string]*directory.Author{}
	for _, n := range []string{"Ann", "Bea", "Cal", "Dee", "Eve", "Fay"} {
		a, err := db.CreateAuthor(ctx, n)
		require.NoError(t, err)
		authors[n] = a
	}

	link := func(p *directory.Paper, author, inst string) {
		t.Helper()
		_, err := db.LinkAuthorship(ctx, directory.Authorship{PaperID: p.ID, AuthorID: authors[author].ID, InstitutionID: inst})
		require.NoError(t, err)
	}

	// Big U: 3 papers; Bea appears twice, then alphabetical.
	link(papers[0], "Bea", "big")
	link(papers[1], "Bea", "big")
	link(papers[0], "Ann", "big")
	link(papers[1], "Cal", "big")
	link(papers[2], "Dee", "big")
	link(papers[2], "Eve", "big")
	link(papers[2], "Fay", "big")
	link(papers[0], "Ann", "small")
	link(papers[0], "Ann", "nowhere")

	markers, err := db.Markers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 2, "institutions without coordinates or authorships are excluded")

	assert.Equal(t, "big", markers[0].ID)
	assert.Equal(t, 3, markers[0].PaperCount)
	assert.Equal(t, "US", markers[0].Country)
	assert.Equal(t, []string{"Bea", "Ann", "Cal", "Dee", "Eve"}, markers[0].TopAuthors)

	assert.Equal(t, "small", markers[1].ID)
	assert.Equal(t, 1, markers[1].PaperCount)
	assert.Equal(t, []string{"Ann"}, markers[1].TopAuthors)
}

func TestMarkers_Empty(t *testing.T) {
	db := openTestDB(t)
	markers, err := db.Markers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, markers)
}

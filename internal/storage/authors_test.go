package storage

import (
	"context"
	"testing"
	"time"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAuthorByOpenAlexID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a, err := db.UpsertAuthorByOpenAlexID(ctx, "https://openalex.org/A1", "A. Smith")
	require.NoError(t, err)

	b, err := db.UpsertAuthorByOpenAlexID(ctx, "https://openalex.org/A1", "Alice Smith")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Alice Smith", b.Name)

	authors, err := db.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Len(t, authors, 1)
}

func TestFindAuthorByName_FirstCreatedWins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fixedClock(db, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	first, err := db.CreateAuthor(ctx, "J. Doe")
	require.NoError(t, err)
	_, err = db.CreateAuthor(ctx, "J. Doe")
	require.NoError(t, err)

	found, err := db.FindAuthorByName(ctx, "J. Doe")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, first.CreatedAt, found.CreatedAt)

	missing, err := db.FindAuthorByName(ctx, "j. doe")
	require.NoError(t, err)
	assert.Nil(t, missing, "name match is exact")
}

func TestSearchAuthorNames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, n := range []string{"Zed Smith", "Amy Smithers", "Bob Jones"} {
		_, err := db.CreateAuthor(ctx, n)
		require.NoError(t, err)
	}

	names, err := db.SearchAuthorNames(ctx, "smith", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Amy Smithers", "Zed Smith"}, names)
}

func TestLinkAuthorship_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, err := db.UpsertPaper(ctx, PaperUpsert{DBLPKey: "k"})
	require.NoError(t, err)
	a, err := db.CreateAuthor(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, db.UpsertInstitution(ctx, "i", InstitutionFields{Name: Value("I")}))

	link := directory.Authorship{PaperID: p.ID, AuthorID: a.ID, InstitutionID: "i", Order: intp(1)}
	created, err := db.LinkAuthorship(ctx, link)
	require.NoError(t, err)
	assert.True(t, created)

	link.Order = intp(9999)
	created, err = db.LinkAuthorship(ctx, link)
	require.NoError(t, err)
	assert.False(t, created, "second insert of the same triple is a no-op")

	links, err := db.ListAuthorships(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.NotNil(t, links[0].Order)
	assert.Equal(t, 1, *links[0].Order, "existing row is not updated")
}

func TestListAuthorships_NullOrderLast(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, err := db.UpsertPaper(ctx, PaperUpsert{DBLPKey: "k"})
	require.NoError(t, err)
	require.NoError(t, db.UpsertInstitution(ctx, "i", InstitutionFields{}))

	orders := []*int{nil, intp(9999), intp(1)}
	for i, o := range orders {
		a, err := db.CreateAuthor(ctx, string(rune('A'+i)))
		require.NoError(t, err)
		_, err = db.LinkAuthorship(ctx, directory.Authorship{PaperID: p.ID, AuthorID: a.ID, InstitutionID: "i", Order: o})
		require.NoError(t, err)
	}

	links, err := db.ListAuthorships(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, 1, *links[0].Order)
	assert.Equal(t, 9999, *links[1].Order)
	assert.Nil(t, links[2].Order)
}

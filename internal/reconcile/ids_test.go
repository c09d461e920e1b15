package reconcile

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme University", "acme-university"},
		{"  Université de Montréal ", "universit-de-montr-al"},
		{"MIT--Media  Lab!!", "mit-media-lab"},
		{"---", ""},
		{"", ""},
		{"ABC123", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestInstIDFromExternal(t *testing.T) {
	tests := []struct {
		name string
		ror  string
		disp string
		want string
	}{
		{"ror url", "https://ror.org/01xyz", "Acme U", "inst:ror:01xyz"},
		{"bare ror", "01xyz", "", "inst:ror:01xyz"},
		{"trailing slash falls back", "https://ror.org/", "Acme U", "inst:name:acme-u"},
		{"name only", "", "Acme U", "inst:name:acme-u"},
		{"nothing", "", "", ""},
		{"unsluggable name", "", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InstIDFromExternal(tt.ror, tt.disp))
		})
	}
}

func TestToOrder(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int
		wantOK bool
	}{
		{"int", 3, 3, true},
		{"json number", float64(2), 2, true},
		{"fractional", 2.5, 0, false},
		{"huge number", 1e20, 0, false},
		{"int64 overflow", int64(math.MaxInt32) + 1, 0, false},
		{"overflowing digits", "99999999999999999999", 0, false},
		{"past int32", "2147483648", 0, false},
		{"digit string", "7", 7, true},
		{"leading zeros", "007", 7, true},
		{"first", "first", 1, true},
		{"last", "last", LastPosition, true},
		{"middle", "middle", 0, false},
		{"signed string", "-1", 0, false},
		{"empty string", "", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToOrder(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDOIHelpers(t *testing.T) {
	assert.Equal(t, "10.1145/1", DOIFromURL("https://doi.org/10.1145/1"))
	assert.Equal(t, "10.1145/1", DOIFromURL("http://dx.doi.org/10.1145/1"))
	assert.Equal(t, "", DOIFromURL("https://example.org/10.1145/1"))

	assert.Equal(t, "10.1145/1", StripDOIResolver("https://doi.org/10.1145/1"))
	assert.Equal(t, "10.1145/1", StripDOIResolver("10.1145/1"))
	assert.Equal(t, "", StripDOIResolver(""))

	assert.True(t, IsDOI("10.1145/1"))
	assert.False(t, IsDOI("doi:10.1145/1"))
}

func TestPaperRecord(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		wantKey  string
		wantYear *int
		wantDOI  string
		venue    string
	}{
		{
			name:     "top-level key",
			json:     `{"dblpKey":"conf/chiplay/X20","title":"T","year":2020}`,
			wantKey:  "conf/chiplay/X20",
			wantYear: intp(2020),
		},
		{
			name:    "source key with ee list",
			json:    `{"source":{"dblp_key":"conf/chiplay/Y21"},"year":"2021","ee":["https://example.org/a","https://doi.org/10.1145/y"]}`,
			wantKey: "conf/chiplay/Y21",
			wantDOI: "10.1145/y",
		},
		{
			name:    "explicit doi wins over ee",
			json:    `{"dblp_key":"k","doi":"10.1/explicit","ee":"https://doi.org/10.1/ee","venue":["CHI PLAY","Companion"]}`,
			wantKey: "k",
			wantDOI: "10.1/explicit",
			venue:   "CHI PLAY",
		},
		{
			name:    "malformed explicit doi falls back to ee",
			json:    `{"dblp_key":"k","doi":"doi:10.1/bad","ee":"https://doi.org/10.1/ee","year":2020.5}`,
			wantKey: "k",
			wantDOI: "10.1/ee",
		},
		{
			name: "no key",
			json: `{"title":"orphan"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec PaperRecord
			require.NoError(t, json.Unmarshal([]byte(tt.json), &rec))
			assert.Equal(t, tt.wantKey, rec.Key())
			assert.Equal(t, tt.wantYear, rec.IntYear())
			assert.Equal(t, tt.wantDOI, rec.ResolvedDOI())
			assert.Equal(t, tt.venue, string(rec.Venue))
		})
	}
}

func TestGeoRecord_TriState(t *testing.T) {
	var recs []GeoRecord
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a","name":"A","lat":null}]`), &recs))
	require.Len(t, recs, 1)

	g := recs[0]
	assert.Equal(t, "a", g.ID)
	assert.True(t, g.Name.Set)
	assert.Equal(t, "A", g.Name.Value)
	assert.True(t, g.Lat.Set)
	assert.True(t, g.Lat.Null)
	assert.False(t, g.Lng.Set, "absent key stays unset")
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\n\nb\n", 3},
	}
	for _, tt := range tests {
		n, err := CountLines(strings.NewReader(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, n, "%q", tt.in)
	}
}

func intp(v int) *int { return &v }

package country

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{"Germany", "DE", true},
		{"United Kingdom", "GB", true},
		{"United States", "US", true},
		{"  japan ", "JP", true},
		{"germ", "DE", true},
		{"de", "DK", true}, // name prefix "Denmark" wins over code "DE"
		{"jp", "JP", true},
		{"", "", false},
		{"atlantis", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, ok := Find(tt.query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, c.Code)
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("US"))
	assert.True(t, Valid("gb"))
	assert.False(t, Valid("EU"))
	assert.False(t, Valid("XX"))
	assert.False(t, Valid("ZZ"))
	assert.False(t, Valid("USA"))
	assert.False(t, Valid(""))

	for _, code := range []string{"UK", "DD", "FX", "ZR", "BU", "TP", "YD"} {
		assert.False(t, Valid(code), code)
	}
}

func TestAll_NamesUnique(t *testing.T) {
	seen := make(map[string]string)
	for _, c := range All() {
		if prev, dup := seen[c.Name]; dup {
			t.Errorf("%q listed as both %s and %s", c.Name, prev, c.Code)
		}
		seen[c.Name] = c.Code
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "Japan", Name("JP"))
	assert.Equal(t, "Germany", Name("de"))
	assert.Equal(t, "", Name("QQ"))
}

func TestAll_SortedByName(t *testing.T) {
	list := All()
	require.Greater(t, len(list), 150)
	assert.True(t, sort.SliceIsSorted(list, func(i, j int) bool { return list[i].Name < list[j].Name }))

	list[0].Name = "mutated"
	assert.NotEqual(t, "mutated", All()[0].Name)
}

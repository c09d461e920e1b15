package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a much longer institution name", 12, "a much lo..."},
		{"Universität Zürich Informatik", 14, "Universität..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateString(tt.in, tt.maxLen), tt.in)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "1,234,567", formatCount(1234567))
	assert.Equal(t, "12", formatCount(12))

	v := 52.520008
	assert.Equal(t, "52.5200", formatCoord(&v))
	assert.Equal(t, "-", formatCoord(nil))

	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Name", "Papers"},
		[][]string{{"Acme", "12"}, {"Short row"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	assert.Contains(t, out, "Name")
	assert.NotContains(t, out, "NAME")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Short row")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestPrepareDSN(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "leadmap.db")

	require.NoError(t, prepareDSN(dbPath))
	info, err := os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, prepareDSN("postgres://leadmap@localhost/leadmap"))
}

func TestResolveCountry(t *testing.T) {
	code, name, ok := resolveCountry("germ")
	require.True(t, ok)
	assert.Equal(t, "DE", code)
	assert.Equal(t, "Germany", name)

	code, _, ok = resolveCountry("nl")
	require.True(t, ok)
	assert.Equal(t, "NL", code)

	code, name, ok = resolveCountry("  ")
	assert.True(t, ok)
	assert.Empty(t, code+name)

	_, _, ok = resolveCountry("atlantis")
	assert.False(t, ok)
}

func TestReadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	body := `{"contactName":"Ana","institutionName":"Acme","leadershipApproach":"Shared","latitude":"52.5","longitude":13.4}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	p, err := readPayload(path)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.ContactName)
	assert.True(t, p.Latitude.Valid)
	assert.Equal(t, 52.5, p.Latitude.Value)
	assert.Equal(t, 13.4, p.Longitude.Value)

	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSuffix(body, "}")), 0644))
	_, err = readPayload(path)
	assert.Error(t, err)

	_, err = readPayload(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

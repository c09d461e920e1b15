package reconcile

import (
	"math"
	"strconv"
	"strings"
)

// LastPosition is the order stored for authors listed as "last", high enough
// to sort after any realistic author list.
const LastPosition = 9999

// DOI resolver prefixes stripped when deriving a bare DOI from a URL.
var doiResolvers = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
}

// Slug lowercases s, collapses every run of characters outside [a-z0-9]
// into a single hyphen and trims leading and trailing hyphens.
func Slug(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingDash = false
			sb.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return sb.String()
}

// InstIDFromExternal derives an institution identity. The last path segment
// of a ROR URL wins; otherwise the slug of the display name is used. An empty
// result means the institution has no usable identity.
func InstIDFromExternal(ror, displayName string) string {
	if ror != "" {
		parts := strings.Split(ror, "/")
		if last := parts[len(parts)-1]; last != "" {
			return "inst:ror:" + last
		}
	}
	if slug := Slug(displayName); slug != "" {
		return "inst:name:" + slug
	}
	return ""
}

// IsDOI reports whether s carries the DOI directory prefix.
func IsDOI(s string) bool {
	return strings.HasPrefix(s, "10.")
}

// DOIFromURL returns the DOI behind a resolver URL, or "" when u does not
// use a DOI resolver.
func DOIFromURL(u string) string {
	u = strings.TrimSpace(u)
	for _, prefix := range doiResolvers {
		if strings.HasPrefix(u, prefix) {
			return strings.TrimPrefix(u, prefix)
		}
	}
	return ""
}

// StripDOIResolver removes a resolver prefix if present and returns the rest.
func StripDOIResolver(s string) string {
	if doi := DOIFromURL(s); doi != "" {
		return doi
	}
	return strings.TrimSpace(s)
}

// ToOrder normalizes an author position. Integers and all-digit strings are
// used as-is, "first" is 1 and "last" is LastPosition. Anything else,
// including "middle", has no order and ok is false.
func ToOrder(v any) (order int, ok bool) {
	switch x := v.(type) {
	case int:
		return fromInt64(int64(x))
	case int64:
		return fromInt64(x)
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) || x != math.Trunc(x) {
			return 0, false
		}
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int(x), true
	case string:
		switch x {
		case "first":
			return 1, true
		case "last":
			return LastPosition, true
		}
		if x == "" || strings.TrimLeft(x, "0123456789") != "" {
			return 0, false
		}
		n, err := strconv.ParseInt(x, 10, 32)
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Positions are stored in an INTEGER column shared with Postgres int4.
func fromInt64(n int64) (int, bool) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

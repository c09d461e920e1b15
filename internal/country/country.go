// Package country resolves ISO 3166-1 alpha-2 codes and English names.
package country

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Country is a two-letter code with its English name.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Groupings CLDR treats as regions, and withdrawn or reserved codes that
// share an English name with a current country.
var excluded = map[string]bool{
	"EU": true, "EZ": true, "UN": true,
	"BU": true, "CT": true, "DD": true, "DY": true, "FX": true, "HV": true,
	"JT": true, "MI": true, "NH": true, "NQ": true, "PU": true, "PZ": true,
	"RH": true, "TP": true, "UK": true, "VD": true, "WK": true, "YD": true,
	"ZR": true,
}

var (
	loadOnce sync.Once
	all      []Country
	byCode   map[string]Country
)

func load() {
	loadOnce.Do(func() {
		names := display.English.Regions()
		byCode = make(map[string]Country)
		for a := 'A'; a <= 'Z'; a++ {
			for b := 'A'; b <= 'Z'; b++ {
				code := string([]rune{a, b})
				if excluded[code] {
					continue
				}
				r, err := language.ParseRegion(code)
				if err != nil || !r.IsCountry() || r.String() != code || r.Canonicalize().String() != code {
					continue
				}
				name := names.Name(r)
				if name == "" {
					continue
				}
				c := Country{Code: code, Name: name}
				all = append(all, c)
				byCode[code] = c
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	})
}

// All returns every known country ordered by name.
func All() []Country {
	load()
	out := make([]Country, len(all))
	copy(out, all)
	return out
}

// Valid reports whether code is a known two-letter country code.
// Case is ignored.
func Valid(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// Lookup returns the country with the given code.
func Lookup(code string) (Country, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return Country{}, false
	}
	load()
	c, ok := byCode[code]
	return c, ok
}

// Name returns the English name for code, or "" when unknown.
func Name(code string) string {
	c, _ := Lookup(code)
	return c.Name
}

// Find matches a free-text query, trying in order: exact name, name prefix,
// exact code, code prefix. Matching ignores case.
func Find(query string) (Country, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Country{}, false
	}
	load()

	matchers := []func(Country) bool{
		func(c Country) bool { return strings.ToLower(c.Name) == q },
		func(c Country) bool { return strings.HasPrefix(strings.ToLower(c.Name), q) },
		func(c Country) bool { return strings.ToLower(c.Code) == q },
		func(c Country) bool { return strings.HasPrefix(strings.ToLower(c.Code), q) },
	}
	for _, match := range matchers {
		for _, c := range all {
			if match(c) {
				return c, true
			}
		}
	}
	return Country{}, false
}

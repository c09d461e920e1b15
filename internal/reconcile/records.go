package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gameleadership/leadmap/internal/storage"
)

// GeoRecord is one entry of the curated institutions geo file. Descriptive
// fields keep the absent/null distinction of the JSON document.
type GeoRecord struct {
	ID string `json:"id"`
	storage.InstitutionFields
}

// PaperRecord is one entry of the DBLP papers file.
type PaperRecord struct {
	DBLPKey      string          `json:"dblpKey"`
	DBLPKeySnake string          `json:"dblp_key"`
	Source       paperSource     `json:"source"`
	Title        FlexibleText    `json:"title"`
	Year         json.RawMessage `json:"year"`
	Venue        FlexibleText    `json:"venue"`
	DOI          FlexibleText    `json:"doi"`
	EE           FlexibleList    `json:"ee"`
}

type paperSource struct {
	DBLPKey      string `json:"dblp_key"`
	DBLPKeyCamel string `json:"dblpKey"`
}

// Key returns the first non-empty DBLP key the record carries.
func (p PaperRecord) Key() string {
	for _, k := range []string{p.DBLPKey, p.DBLPKeySnake, p.Source.DBLPKey, p.Source.DBLPKeyCamel} {
		if k = strings.TrimSpace(k); k != "" {
			return k
		}
	}
	return ""
}

// IntYear returns the year when the record holds a JSON integer.
// Strings and fractional numbers yield nil.
func (p PaperRecord) IntYear() *int {
	raw := bytes.TrimSpace(p.Year)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	year := int(f)
	return &year
}

// ResolvedDOI picks the explicit DOI when it is well formed, otherwise the
// first ee link that points at a DOI resolver.
func (p PaperRecord) ResolvedDOI() string {
	if doi := strings.TrimSpace(string(p.DOI)); IsDOI(doi) {
		return doi
	}
	for _, ee := range p.EE {
		if doi := DOIFromURL(ee); doi != "" {
			return doi
		}
	}
	return ""
}

// Upsert converts the record into a paper write.
func (p PaperRecord) Upsert() storage.PaperUpsert {
	return storage.PaperUpsert{
		DBLPKey: p.Key(),
		Title:   string(p.Title),
		Year:    p.IntYear(),
		Venue:   string(p.Venue),
		DOI:     p.ResolvedDOI(),
	}
}

// WorkRecord is one line of the OpenAlex authorships stream.
type WorkRecord struct {
	DBLPKey     string           `json:"dblp_key"`
	ID          string           `json:"id"`
	DOI         string           `json:"doi"`
	Authorships []WorkAuthorship `json:"authorships"`
}

// WorkAuthorship is one author entry of an OpenAlex work.
type WorkAuthorship struct {
	Author struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Institutions   []WorkInstitution `json:"institutions"`
	AuthorPosition any               `json:"author_position"`
}

// WorkInstitution is one affiliation of an OpenAlex authorship.
type WorkInstitution struct {
	ID          string `json:"id"`
	ROR         string `json:"ror"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
	Type        string `json:"type"`
}

// Fields returns the institution columns this affiliation may write.
// Only present, non-empty values are set; nothing is cleared.
func (w WorkInstitution) Fields() storage.InstitutionFields {
	var f storage.InstitutionFields
	if w.DisplayName != "" {
		f.Name = storage.Value(w.DisplayName)
	}
	if w.CountryCode != "" {
		f.Country = storage.Value(w.CountryCode)
	}
	if w.Type != "" {
		f.Type = storage.Value(w.Type)
	}
	return f
}

// FlexibleText unmarshals from a string, a number or a list of strings,
// keeping the first element of a list. DBLP exports use all three shapes.
type FlexibleText string

func (f *FlexibleText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleText(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleText(n.String())
		return nil
	}

	var list []FlexibleText
	if err := json.Unmarshal(data, &list); err == nil {
		*f = ""
		if len(list) > 0 {
			*f = list[0]
		}
		return nil
	}

	// Objects such as DBLP's {"text": ...} wrapper.
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*f = FlexibleText(obj.Text)
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleText", string(data))
}

// FlexibleList unmarshals from a single string or a list of strings.
type FlexibleList []string

func (l *FlexibleList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = FlexibleList{s}
		return nil
	}

	var items []FlexibleText
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("cannot unmarshal %s into FlexibleList", string(data))
	}
	out := make(FlexibleList, 0, len(items))
	for _, it := range items {
		out = append(out, string(it))
	}
	*l = out
	return nil
}

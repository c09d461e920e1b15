package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gameleadership/leadmap/internal/country"
	"github.com/go-playground/validator/v10"
)

// Field limits.
const (
	MaxContactName     = 120
	MaxInstitutionName = 160
	MaxLeadership      = 800
)

var websitePattern = regexp.MustCompile(`(?i)^(https?://)?([\w-]+\.)+[\w-]+(/[\w\-./?%&=]*)?$`)

// Payload is a submission as sent by a client. Text fields are trimmed
// before validation; empty optional fields are stored as NULL.
type Payload struct {
	ContactName            string `json:"contactName"`
	ContactEmail           string `json:"contactEmail"`
	SubmitterType          string `json:"submitterType"`
	InstitutionName        string `json:"institutionName"`
	InstitutionCountry     string `json:"institutionCountry"`
	InstitutionCountryName string `json:"institutionCountryName"`
	InstitutionCity        string `json:"institutionCity"`
	InstitutionWebsite     string `json:"institutionWebsite"`
	LeadershipApproach     string `json:"leadershipApproach"`
	Latitude               Number `json:"latitude"`
	Longitude              Number `json:"longitude"`
	InstitutionID          string `json:"institutionId"`
	DuplicateOfID          string `json:"duplicateOfId"`
}

// Number is an optional coordinate that accepts a JSON number, a numeric
// string, an empty string or null. Unparsable and non-finite values are
// treated as absent.
type Number struct {
	Value float64
	Valid bool
}

// NumberOf returns a present Number.
func NumberOf(v float64) Number {
	return Number{Value: v, Valid: true}
}

// ParseNumber parses s the way UnmarshalJSON parses a string value.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return NumberOf(v)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = Number{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = ParseNumber(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*n = NumberOf(v)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n Number) ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Messages, " ")
}

// draft is a trimmed, normalized payload. Validation runs on it.
type draft struct {
	ContactName            string   `json:"contactName" validate:"required,max=120"`
	ContactEmail           string   `json:"contactEmail" validate:"omitempty,email"`
	SubmitterType          string   `json:"submitterType"`
	InstitutionName        string   `json:"institutionName" validate:"required,max=160"`
	InstitutionCountry     string   `json:"institutionCountry" validate:"omitempty,len=2,country"`
	InstitutionCountryName string   `json:"institutionCountryName"`
	InstitutionCity        string   `json:"institutionCity"`
	InstitutionWebsite     string   `json:"institutionWebsite" validate:"omitempty,website"`
	LeadershipApproach     string   `json:"leadershipApproach" validate:"required,max=800"`
	Latitude               *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude              *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	InstitutionID          string   `json:"institutionId"`
	DuplicateOfID          string   `json:"duplicateOfId"`
}

func newDraft(p Payload) draft {
	d := draft{
		ContactName:            strings.TrimSpace(p.ContactName),
		ContactEmail:           strings.TrimSpace(p.ContactEmail),
		SubmitterType:          strings.TrimSpace(p.SubmitterType),
		InstitutionName:        strings.TrimSpace(p.InstitutionName),
		InstitutionCountry:     strings.TrimSpace(p.InstitutionCountry),
		InstitutionCountryName: strings.TrimSpace(p.InstitutionCountryName),
		InstitutionCity:        strings.TrimSpace(p.InstitutionCity),
		InstitutionWebsite:     strings.TrimSpace(p.InstitutionWebsite),
		LeadershipApproach:     strings.TrimSpace(p.LeadershipApproach),
		Latitude:               p.Latitude.ptr(),
		Longitude:              p.Longitude.ptr(),
		InstitutionID:          strings.TrimSpace(p.InstitutionID),
		DuplicateOfID:          strings.TrimSpace(p.DuplicateOfID),
	}
	if len(d.InstitutionCountry) == 2 {
		d.InstitutionCountry = strings.ToUpper(d.InstitutionCountry)
	}
	return d
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
			return country.Valid(fl.Field().String())
		})
		_ = v.RegisterValidation("website", func(fl validator.FieldLevel) bool {
			return websitePattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// check returns one message per failing field, in field order.
func (d draft) check() []string {
	err := getValidator().Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required."
	case "max":
		return fmt.Sprintf("%s must be %s characters or fewer.", field, fe.Param())
	case "email":
		return field + " must be a valid email address."
	case "len":
		return field + " must be a two-letter country code."
	case "country":
		return field + " is not a recognised country code."
	case "website":
		return field + " must be a valid URL."
	case "gte", "lte":
		if field == "latitude" {
			return "latitude must be between -90 and 90."
		}
		return "longitude must be between -180 and 180."
	default:
		return fmt.Sprintf("%s failed %s validation.", field, fe.Tag())
	}
}

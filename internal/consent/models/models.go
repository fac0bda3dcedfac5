package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dErrors "sitepulse/pkg/domain-errors"
	"sitepulse/pkg/platform/sentinel"
)

// RecordKey is the single storage record holding a visitor's decision.
const RecordKey = "sitepulse_consent"

// Category labels a tracking purpose the visitor grants or denies independently.
type Category string

const (
	CategoryAnalytics Category = "analytics"
	CategoryMarketing Category = "marketing"
	// CategoryEssential is always granted and not revocable.
	CategoryEssential Category = "essential"
)

// ParseCategory constructs a Category from external input.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.TrimSpace(strings.ToLower(s))); c {
	case CategoryAnalytics, CategoryMarketing, CategoryEssential:
		return c, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "category cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid category: "+s)
	}
}

// Region is the inferred regulatory region. It only selects banner defaults.
type Region string

const (
	RegionEEA   Region = "eea"
	RegionOther Region = "other"
)

// eeaCountries are ISO 3166-1 alpha-2 codes that get opt-in defaults.
// GB and CH are included: UK GDPR and the Swiss FADP expect the same banner.
var eeaCountries = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {}, "EE": {},
	"FI": {}, "FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {}, "IT": {}, "LV": {},
	"LT": {}, "LU": {}, "MT": {}, "NL": {}, "PL": {}, "PT": {}, "RO": {}, "SK": {},
	"SI": {}, "ES": {}, "SE": {}, "IS": {}, "LI": {}, "NO": {}, "GB": {}, "CH": {},
}

// RegionFromCountry maps a country code (e.g. from a CDN geo header) to a Region.
// Unknown or empty codes map to RegionOther.
func RegionFromCountry(code string) Region {
	if _, ok := eeaCountries[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return RegionEEA
	}
	return RegionOther
}

// Choices is an explicit user decision for the revocable categories.
type Choices struct {
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

// AcceptAll grants every category.
func AcceptAll() Choices { return Choices{Analytics: true, Marketing: true} }

// EssentialOnly denies every revocable category.
func EssentialOnly() Choices { return Choices{} }

// DefaultsFor returns the pre-checked banner choices for a region. These are
// what the banner shows before a decision, never a decision themselves.
func DefaultsFor(region Region) Choices {
	if region == RegionEEA {
		return EssentialOnly()
	}
	return Choices{Analytics: true}
}

// State is the visitor's current consent. DecidedAt is nil while undecided.
type State struct {
	Categories map[Category]bool
	DecidedAt  *time.Time
	Region     Region
}

// Undecided is the sentinel returned when no valid decision is stored.
func Undecided(region Region) State {
	if region == "" {
		region = RegionOther
	}
	return State{
		Categories: map[Category]bool{
			CategoryAnalytics: false,
			CategoryMarketing: false,
			CategoryEssential: true,
		},
		Region: region,
	}
}

// Decided reports whether an explicit decision is recorded.
func (s State) Decided() bool {
	return s.DecidedAt != nil
}

// Granted reports whether c is granted. Essential is always granted; everything
// else is denied while undecided.
func (s State) Granted(c Category) bool {
	if c == CategoryEssential {
		return true
	}
	if !s.Decided() {
		return false
	}
	return s.Categories[c]
}

// Choices returns the revocable categories as Choices.
func (s State) Choices() Choices {
	return Choices{
		Analytics: s.Granted(CategoryAnalytics),
		Marketing: s.Granted(CategoryMarketing),
	}
}

// Record is the persisted JSON form of a decision.
type Record struct {
	Analytics bool   `json:"analytics"`
	Marketing bool   `json:"marketing"`
	Essential bool   `json:"essential"`
	DecidedAt string `json:"decidedAt"`
}

// EncodeRecord serializes a decision made at decidedAt.
func EncodeRecord(c Choices, decidedAt time.Time) ([]byte, error) {
	return json.Marshal(Record{
		Analytics: c.Analytics,
		Marketing: c.Marketing,
		Essential: true,
		DecidedAt: decidedAt.UTC().Format(time.RFC3339Nano),
	})
}

// DecodeRecord parses a stored record. Malformed JSON or a missing/invalid
// decidedAt yields sentinel.ErrCorrupt.
func DecodeRecord(raw []byte, region Region) (State, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return State{}, fmt.Errorf("decode consent record: %w", sentinel.ErrCorrupt)
	}
	if rec.DecidedAt == "" {
		return State{}, fmt.Errorf("consent record without decidedAt: %w", sentinel.ErrCorrupt)
	}
	decidedAt, err := time.Parse(time.RFC3339Nano, rec.DecidedAt)
	if err != nil {
		return State{}, fmt.Errorf("consent record decidedAt %q: %w", rec.DecidedAt, sentinel.ErrCorrupt)
	}
	state := Undecided(region)
	state.Categories[CategoryAnalytics] = rec.Analytics
	state.Categories[CategoryMarketing] = rec.Marketing
	state.DecidedAt = &decidedAt
	return state, nil
}

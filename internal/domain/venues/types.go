package venues

import "strings"

type Source string

const (
	SourceYelp        Source = "yelp"
	SourceGoogle      Source = "google"
	SourceTripAdvisor Source = "tripadvisor"
	SourceUser        Source = "user"
)

// ProviderSources is the fixed merge order of a sync cycle.
var ProviderSources = []Source{SourceYelp, SourceGoogle, SourceTripAdvisor}

type Category string

const (
	CategoryBar       Category = "bar"
	CategoryClub      Category = "club"
	CategoryLounge    Category = "lounge"
	CategoryBrewery   Category = "brewery"
	CategorySportsBar Category = "sportsbar"
	CategoryKaraoke   Category = "karaoke"
	CategoryLiveMusic Category = "live_music"
	CategoryDance     Category = "dance"
	CategoryRooftop   Category = "rooftop"
	CategoryWineBar   Category = "wine_bar"
)

// DefaultCategory is used when no provider rule matches.
const DefaultCategory = CategoryBar

var Categories = []Category{
	CategoryBar,
	CategoryClub,
	CategoryLounge,
	CategoryBrewery,
	CategorySportsBar,
	CategoryKaraoke,
	CategoryLiveMusic,
	CategoryDance,
	CategoryRooftop,
	CategoryWineBar,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

type PriceLevel string

const (
	PriceInexpensive   PriceLevel = "$"
	PriceModerate      PriceLevel = "$$"
	PriceExpensive     PriceLevel = "$$$"
	PriceVeryExpensive PriceLevel = "$$$$"
)

// ParsePriceLevel accepts "$" through "$$$$" with surrounding whitespace.
func ParsePriceLevel(s string) (PriceLevel, bool) {
	switch p := PriceLevel(strings.TrimSpace(s)); p {
	case PriceInexpensive, PriceModerate, PriceExpensive, PriceVeryExpensive:
		return p, true
	}
	return "", false
}

// PriceLevelFromInt maps the 1..4 numeric scale some providers use.
// Zero ("free") and anything out of range have no symbol.
func PriceLevelFromInt(n int) (PriceLevel, bool) {
	if n < 1 || n > 4 {
		return "", false
	}
	return PriceLevel(strings.Repeat("$", n)), true
}

// ExternalIDs holds one optional id slot per provider.
type ExternalIDs struct {
	Yelp        *string `json:"yelp_id,omitempty"`
	Google      *string `json:"google_id,omitempty"`
	TripAdvisor *string `json:"tripadvisor_id,omitempty"`
}

// ExternalIDsFor fills only the slot belonging to source.
func ExternalIDsFor(source Source, id string) ExternalIDs {
	var ids ExternalIDs
	switch source {
	case SourceYelp:
		ids.Yelp = &id
	case SourceGoogle:
		ids.Google = &id
	case SourceTripAdvisor:
		ids.TripAdvisor = &id
	}
	return ids
}

// Empty reports whether no provider slot is set.
func (ids ExternalIDs) Empty() bool {
	return ids.Yelp == nil && ids.Google == nil && ids.TripAdvisor == nil
}

// Venue is one provider's normalized record for a place, before merging.
type Venue struct {
	Source      Source      `json:"source"`
	ExternalID  string      `json:"external_id"`
	ExternalIDs ExternalIDs `json:"external_ids"`
	Name        string      `json:"name"`
	Category    Category    `json:"category"`
	Description string      `json:"description,omitempty"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Address     string      `json:"address,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Website     string      `json:"website,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	ReviewCount *int        `json:"review_count,omitempty"`
	PriceLevel  *PriceLevel `json:"price_level,omitempty"`
}

// Region is a lat/lng bounding box.
type Region struct {
	North float64 `validate:"gte=-90,lte=90"`
	South float64 `validate:"gte=-90,lte=90,ltfield=North"`
	East  float64 `validate:"gte=-180,lte=180,gtfield=West"`
	West  float64 `validate:"gte=-180,lte=180"`
}

// DaytonRegion is the default catalog area.
var DaytonRegion = Region{North: 39.9, South: 39.6, East: -84.0, West: -84.4}

// DaytonCenter is the default location query for a sync cycle.
const DaytonCenter = "39.7589,-84.1916"

func (r Region) Contains(lat, lng float64) bool {
	return lat >= r.South && lat <= r.North && lng >= r.West && lng <= r.East
}

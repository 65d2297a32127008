package venues

import (
	"math"
	"strings"
	"unicode/utf8"

	"nightmap/internal/domain/shared"
)

// Limits shared with the pois table CHECK constraints.
const (
	MinNameLength        = 2
	MaxDescriptionLength = 500
)

// Clean trims text fields, cuts the description to MaxDescriptionLength runes and drops optional metrics that are out of range.
func (v *Venue) Clean() {
	v.ExternalID = strings.TrimSpace(v.ExternalID)
	v.Name = strings.TrimSpace(v.Name)
	v.Description = truncateRunes(strings.TrimSpace(v.Description), MaxDescriptionLength)
	v.Address = strings.TrimSpace(v.Address)
	v.Phone = strings.TrimSpace(v.Phone)
	v.Website = strings.TrimSpace(v.Website)

	if v.Rating != nil && (math.IsNaN(*v.Rating) || *v.Rating < 0 || *v.Rating > 5) {
		v.Rating = nil
	}
	if v.ReviewCount != nil && *v.ReviewCount < 0 {
		v.ReviewCount = nil
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return strings.TrimSpace(s[:i])
		}
		n++
	}
	return s
}

// ValidCoordinates reports whether lat/lng are finite WGS-84 degrees.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Validate checks the fields every provider record must carry before it
// reaches dedupe. A nil region disables the bounding-box check.
func (v Venue) Validate(region *Region) error {
	if v.Source != SourceUser && v.ExternalID == "" {
		return shared.Wrap(shared.ErrValidation, "%s record has no external id", v.Source)
	}
	if strings.TrimSpace(v.Name) == "" {
		return shared.Wrap(shared.ErrValidation, "%s record %q has no name", v.Source, v.ExternalID)
	}
	if utf8.RuneCountInString(strings.TrimSpace(v.Name)) < MinNameLength {
		return shared.Wrap(shared.ErrValidation, "%s record %q has a name shorter than %d characters", v.Source, v.ExternalID, MinNameLength)
	}
	if utf8.RuneCountInString(v.Description) > MaxDescriptionLength {
		return shared.Wrap(shared.ErrValidation, "%s record %q has a description longer than %d characters", v.Source, v.ExternalID, MaxDescriptionLength)
	}
	if !v.Category.Valid() {
		return shared.Wrap(shared.ErrValidation, "%s record %q has unknown category %q", v.Source, v.ExternalID, v.Category)
	}
	if !ValidCoordinates(v.Latitude, v.Longitude) {
		return shared.Wrap(shared.ErrValidation, "%s record %q has malformed coordinates (%v, %v)",
			v.Source, v.ExternalID, v.Latitude, v.Longitude)
	}
	if region != nil && !region.Contains(v.Latitude, v.Longitude) {
		return shared.Wrap(shared.ErrValidation, "%s record %q is outside the catalog region", v.Source, v.ExternalID)
	}
	return nil
}

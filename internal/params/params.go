package params

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"nightmap/internal/domain/venues"
)

const (
	DefaultLimit    = 20
	MaxLimit        = 100
	DefaultRadiusKm = 5.0
	MaxRadiusKm     = 50.0
)

// Pagination is parsed from ?page=&limit= and completed with ComputeMeta
// once the total is known.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination never fails; bad values fall back to the defaults.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Limit: DefaultLimit,
		Page:  1,
	}

	if limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		switch {
		case limit <= 0:
		case limit > MaxLimit:
			p.Limit = MaxLimit
		default:
			p.Limit = limit
		}
	}
	if page, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && page > 0 {
		p.Page = page
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = (p.Page * p.Limit) < total
}

// ParseCategory reads ?category=. An empty value means no filter.
func ParseCategory(q url.Values) (*venues.Category, error) {
	raw := strings.TrimSpace(q.Get("category"))
	if raw == "" {
		return nil, nil
	}
	c, ok := venues.ParseCategory(raw)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", raw)
	}
	return &c, nil
}

// Nearby is a radius query around a point.
type Nearby struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// ParseNearby reads ?lat=&lng=&radius=. It returns nil when neither lat nor
// lng is present; supplying only one of them is an error.
func ParseNearby(q url.Values) (*Nearby, error) {
	latStr, lngStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, fmt.Errorf("lat and lng must be given together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lat: %w", err)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lng: %w", err)
	}
	if !venues.ValidCoordinates(lat, lng) {
		return nil, fmt.Errorf("coordinates out of range")
	}

	n := &Nearby{Latitude: lat, Longitude: lng, RadiusKm: DefaultRadiusKm}
	if r := strings.TrimSpace(q.Get("radius")); r != "" {
		radius, err := strconv.ParseFloat(r, 64)
		if err != nil || radius <= 0 {
			return nil, fmt.Errorf("invalid radius %q", r)
		}
		n.RadiusKm = math.Min(radius, MaxRadiusKm)
	}
	return n, nil
}

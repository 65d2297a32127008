// Package dedupe clusters venues from different providers that describe the
// same physical place.
//
// Two venues are duplicates when they lie within Threshold degrees of each
// other (plain Euclidean distance on lat/lng, not a geodesic) and one name
// contains the other, ignoring case. Clustering is first-seen-wins with no
// field merge, so the result depends on input order; callers that need
// stable output must feed venues in a fixed order. Degree distance shrinks
// east-west away from the equator, which makes the radius uneven across
// latitudes.
package dedupe

import (
	"math"
	"strings"

	"nightmap/internal/domain/venues"
)

// DefaultThreshold is roughly 200 m at Dayton's latitude.
const DefaultThreshold = 0.002

type Engine struct {
	Threshold float64
}

func New() *Engine {
	return &Engine{Threshold: DefaultThreshold}
}

// Cluster is one physical place: the first-seen venue plus every later
// venue dropped as its duplicate.
type Cluster struct {
	Representative venues.Venue
	Duplicates     []venues.Venue
}

// Dedupe returns one representative per cluster in first-seen order.
func (e *Engine) Dedupe(in []venues.Venue) []venues.Venue {
	clusters := e.Cluster(in)
	out := make([]venues.Venue, len(clusters))
	for i, c := range clusters {
		out[i] = c.Representative
	}
	return out
}

// Cluster compares each venue against every accepted representative so far,
// O(n²) for a batch.
func (e *Engine) Cluster(in []venues.Venue) []Cluster {
	clusters := make([]Cluster, 0, len(in))
	names := make([]string, 0, len(in))

	for _, v := range in {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		matched := -1
		for i := range clusters {
			if e.near(clusters[i].Representative, v) && similarNames(names[i], name) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			clusters[matched].Duplicates = append(clusters[matched].Duplicates, v)
			continue
		}
		clusters = append(clusters, Cluster{Representative: v})
		names = append(names, name)
	}
	return clusters
}

// IsDuplicate applies the match predicate to a single pair.
func (e *Engine) IsDuplicate(a, b venues.Venue) bool {
	return e.near(a, b) && similarNames(strings.ToLower(strings.TrimSpace(a.Name)), strings.ToLower(strings.TrimSpace(b.Name)))
}

func (e *Engine) near(a, b venues.Venue) bool {
	return Distance(a, b) < e.Threshold
}

// Distance is the Euclidean distance in degrees between two venues.
func Distance(a, b venues.Venue) float64 {
	return math.Hypot(a.Latitude-b.Latitude, a.Longitude-b.Longitude)
}

func similarNames(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

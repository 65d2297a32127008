// Package sources fetches nightlife listings from the external providers and
// normalizes them into venues.Venue. Adapters never fail the caller: any
// provider problem is logged and yields an empty list.
package sources

import (
	"context"
	"time"

	"nightmap/internal/domain/venues"

	"go.uber.org/zap"
)

type Adapter interface {
	Source() venues.Source
	Fetch(ctx context.Context, q Query) []venues.Venue
}

// Query is the location query of one sync cycle.
type Query struct {
	Location string `json:"location"`
	Keyword  string `json:"keyword,omitempty"`
}

const (
	DefaultLocation = "Dayton, OH"
	DefaultKeyword  = "nightlife"
)

func (q Query) withDefaults() Query {
	if q.Location == "" {
		q.Location = DefaultLocation
	}
	if q.Keyword == "" {
		q.Keyword = DefaultKeyword
	}
	return q
}

// ObserveFunc receives one call per provider HTTP attempt.
type ObserveFunc func(source venues.Source, outcome string, elapsed time.Duration)

type Config struct {
	// BaseURL points at the credential-injecting proxy.
	BaseURL string
	APIKey  string

	Timeout              time.Duration
	RequestsPerSecond    float64
	Burst                int
	MaxRetries           uint64
	RetryInitialInterval time.Duration

	// DetailConcurrency caps in-flight detail lookups per adapter.
	DetailConcurrency int
	// MaxResults caps how many search hits get a detail lookup.
	MaxResults int
	// YelpLimit is the page size requested from the Yelp search.
	YelpLimit int

	// Region drops records outside the catalog area; nil keeps everything.
	Region *venues.Region

	Observe ObserveFunc
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 500 * time.Millisecond
	}
	if c.DetailConcurrency <= 0 {
		c.DetailConcurrency = 5
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	if c.YelpLimit <= 0 {
		c.YelpLimit = 50
	}
	return c
}

// DefaultMaxRetries gives three attempts in total.
const DefaultMaxRetries = 2

// NewAll builds the three provider adapters in merge order.
func NewAll(cfg Config, logger *zap.SugaredLogger) []Adapter {
	return []Adapter{
		NewYelpAdapter(cfg, logger),
		NewGoogleAdapter(cfg, logger),
		NewTripAdvisorAdapter(cfg, logger),
	}
}

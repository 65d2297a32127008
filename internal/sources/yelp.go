package sources

import (
	"context"
	"strings"

	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"go.uber.org/zap"
)

const yelpSearchPath = "/yelp"

// yelpCategories is the category hint sent with every search.
const yelpCategories = "nightlife,bars,clubs,musicvenues,breweries"

type yelpSearchRequest struct {
	Location   string `json:"location"`
	Categories string `json:"categories"`
	Term       string `json:"term,omitempty"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

type yelpSearchResponse struct {
	Businesses *[]yelpBusiness `json:"businesses"`
}

type yelpBusiness struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Categories []struct {
		Alias string `json:"alias"`
		Title string `json:"title"`
	} `json:"categories"`
	Coordinates *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	DisplayPhone string   `json:"display_phone"`
	Phone        string   `json:"phone"`
	URL          string   `json:"url"`
	Rating       *float64 `json:"rating"`
	ReviewCount  *int     `json:"review_count"`
	Price        string   `json:"price"`
}

// YelpAdapter reads the single Yelp business search; search hits already
// carry every field so there is no detail stage.
type YelpAdapter struct {
	client *client
	cfg    Config
	rules  RuleSet
	logger *zap.SugaredLogger
}

func NewYelpAdapter(cfg Config, logger *zap.SugaredLogger) *YelpAdapter {
	cfg = cfg.withDefaults()
	return &YelpAdapter{
		client: newClient(venues.SourceYelp, cfg, logger),
		cfg:    cfg,
		rules:  YelpRules,
		logger: logger,
	}
}

func (a *YelpAdapter) Source() venues.Source { return venues.SourceYelp }

func (a *YelpAdapter) Fetch(ctx context.Context, q Query) []venues.Venue {
	q = q.withDefaults()

	var resp yelpSearchResponse
	err := a.client.postJSON(ctx, yelpSearchPath, yelpSearchRequest{
		Location:   q.Location,
		Categories: yelpCategories,
		Term:       q.Keyword,
		Limit:      a.cfg.YelpLimit,
	}, &resp)
	if err == nil && resp.Businesses == nil {
		err = shared.Wrap(shared.ErrMalformedProviderPayload, "yelp: response has no businesses")
	}
	if err != nil {
		logFetchFailure(a.logger, venues.SourceYelp, "search", err)
		return []venues.Venue{}
	}

	out := make([]venues.Venue, 0, len(*resp.Businesses))
	for _, b := range *resp.Businesses {
		if v, ok := accept(a.normalize(b), a.cfg.Region, a.logger); ok {
			out = append(out, v)
		}
	}
	return out
}

func (a *YelpAdapter) normalize(b yelpBusiness) venues.Venue {
	titles := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		titles = append(titles, nonEmpty(c.Title, c.Alias))
	}

	v := venues.Venue{
		Source:      venues.SourceYelp,
		ExternalID:  b.ID,
		ExternalIDs: venues.ExternalIDsFor(venues.SourceYelp, strings.TrimSpace(b.ID)),
		Name:        b.Name,
		Category:    a.rules.Classify(titles),
		Description: strings.Join(titles, ", "),
		Address:     strings.Join(b.Location.DisplayAddress, ", "),
		Phone:       nonEmpty(b.DisplayPhone, b.Phone),
		Website:     b.URL,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
	}
	if p, ok := venues.ParsePriceLevel(b.Price); ok {
		v.PriceLevel = &p
	}
	v.Latitude, v.Longitude = missingCoordinates()
	if b.Coordinates != nil && b.Coordinates.Latitude != nil && b.Coordinates.Longitude != nil {
		v.Latitude, v.Longitude = *b.Coordinates.Latitude, *b.Coordinates.Longitude
	}
	return v
}

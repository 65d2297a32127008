package sources

import (
	"context"
	"strings"

	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"go.uber.org/zap"
)

const (
	googleSearchPath  = "/google-places"
	googleDetailsPath = "/google-places/details"
)

var googleSearchTypes = []string{"bar", "nightclub", "restaurant", "liquor_store", "music_venue"}

type googleSearchRequest struct {
	Location string   `json:"location"`
	Types    []string `json:"types"`
	Keyword  string   `json:"keyword"`
}

type googleSearchResponse struct {
	Results *[]struct {
		PlaceID string `json:"place_id"`
	} `json:"results"`
}

type googleDetailsRequest struct {
	PlaceID string `json:"place_id"`
}

type googleDetailsResponse struct {
	Result *googlePlace `json:"result"`
}

type googlePlace struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Types    []string `json:"types"`
	Geometry *struct {
		Location *struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress     string   `json:"formatted_address"`
	FormattedPhoneNumber string   `json:"formatted_phone_number"`
	Website              string   `json:"website"`
	Rating               *float64 `json:"rating"`
	UserRatingsTotal     *int     `json:"user_ratings_total"`
	PriceLevel           *int     `json:"price_level"`
	EditorialSummary     *struct {
		Overview string `json:"overview"`
	} `json:"editorial_summary"`
}

// GoogleAdapter searches nearby places and then looks up each hit's
// details through a bounded worker pool.
type GoogleAdapter struct {
	client *client
	cfg    Config
	rules  RuleSet
	logger *zap.SugaredLogger
}

func NewGoogleAdapter(cfg Config, logger *zap.SugaredLogger) *GoogleAdapter {
	cfg = cfg.withDefaults()
	return &GoogleAdapter{
		client: newClient(venues.SourceGoogle, cfg, logger),
		cfg:    cfg,
		rules:  GoogleRules,
		logger: logger,
	}
}

func (a *GoogleAdapter) Source() venues.Source { return venues.SourceGoogle }

func (a *GoogleAdapter) Fetch(ctx context.Context, q Query) []venues.Venue {
	q = q.withDefaults()

	var search googleSearchResponse
	err := a.client.postJSON(ctx, googleSearchPath, googleSearchRequest{
		Location: q.Location,
		Types:    googleSearchTypes,
		Keyword:  q.Keyword,
	}, &search)
	if err == nil && search.Results == nil {
		err = shared.Wrap(shared.ErrMalformedProviderPayload, "google: response has no results")
	}
	if err != nil {
		logFetchFailure(a.logger, venues.SourceGoogle, "search", err)
		return []venues.Venue{}
	}

	ids := make([]string, 0, len(*search.Results))
	for _, r := range *search.Results {
		if id := strings.TrimSpace(r.PlaceID); id != "" {
			ids = append(ids, id)
		}
	}

	places := fetchDetails(ctx, capIDs(ids, a.cfg.MaxResults), a.cfg.DetailConcurrency, a.details,
		func(id string, err error) {
			a.logger.Warnw("google detail lookup failed",
				"place_id", id,
				"code", shared.CodeOf(err),
				"error", err.Error(),
			)
		})

	out := make([]venues.Venue, 0, len(places))
	for _, p := range places {
		if v, ok := accept(a.normalize(p), a.cfg.Region, a.logger); ok {
			out = append(out, v)
		}
	}
	return out
}

func (a *GoogleAdapter) details(ctx context.Context, placeID string) (googlePlace, error) {
	var resp googleDetailsResponse
	if err := a.client.postJSON(ctx, googleDetailsPath, googleDetailsRequest{PlaceID: placeID}, &resp); err != nil {
		return googlePlace{}, err
	}
	if resp.Result == nil {
		return googlePlace{}, shared.Wrap(shared.ErrMalformedProviderPayload, "google: details for %s have no result", placeID)
	}
	if resp.Result.PlaceID == "" {
		resp.Result.PlaceID = placeID
	}
	return *resp.Result, nil
}

func (a *GoogleAdapter) normalize(p googlePlace) venues.Venue {
	v := venues.Venue{
		Source:      venues.SourceGoogle,
		ExternalID:  p.PlaceID,
		ExternalIDs: venues.ExternalIDsFor(venues.SourceGoogle, strings.TrimSpace(p.PlaceID)),
		Name:        p.Name,
		Category:    a.rules.ClassifyInOrder(p.Types),
		Description: p.FormattedAddress,
		Address:     p.FormattedAddress,
		Phone:       p.FormattedPhoneNumber,
		Website:     p.Website,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
		PriceLevel:  priceFromInt(p.PriceLevel),
	}
	if p.EditorialSummary != nil && p.EditorialSummary.Overview != "" {
		v.Description = p.EditorialSummary.Overview
	}
	v.Latitude, v.Longitude = missingCoordinates()
	if p.Geometry != nil && p.Geometry.Location != nil && p.Geometry.Location.Lat != nil && p.Geometry.Location.Lng != nil {
		v.Latitude, v.Longitude = *p.Geometry.Location.Lat, *p.Geometry.Location.Lng
	}
	return v
}

package sources

import (
	"context"
	"strings"

	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"go.uber.org/zap"
)

const (
	tripAdvisorSearchPath  = "/tripadvisor"
	tripAdvisorDetailsPath = "/tripadvisor/details"
)

type tripAdvisorSearchRequest struct {
	Location   string `json:"location"`
	Categories string `json:"categories"`
}

type tripAdvisorSearchResponse struct {
	Data *[]struct {
		LocationID string `json:"location_id"`
	} `json:"data"`
}

type tripAdvisorDetailsRequest struct {
	LocationID string `json:"location_id"`
}

type tripAdvisorLocation struct {
	LocationID  string    `json:"location_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Latitude    flexFloat `json:"latitude"`
	Longitude   flexFloat `json:"longitude"`
	Address     string    `json:"address"`
	AddressObj  *struct {
		AddressString string `json:"address_string"`
	} `json:"address_obj"`
	Phone      string    `json:"phone"`
	Website    string    `json:"website"`
	WebURL     string    `json:"web_url"`
	Rating     flexFloat `json:"rating"`
	NumReviews flexInt   `json:"num_reviews"`
	PriceLevel string    `json:"price_level"`
}

// TripAdvisorAdapter searches locations and then fetches each location's
// details through a bounded worker pool.
type TripAdvisorAdapter struct {
	client *client
	cfg    Config
	rules  RuleSet
	logger *zap.SugaredLogger
}

func NewTripAdvisorAdapter(cfg Config, logger *zap.SugaredLogger) *TripAdvisorAdapter {
	cfg = cfg.withDefaults()
	return &TripAdvisorAdapter{
		client: newClient(venues.SourceTripAdvisor, cfg, logger),
		cfg:    cfg,
		rules:  TripAdvisorRules,
		logger: logger,
	}
}

func (a *TripAdvisorAdapter) Source() venues.Source { return venues.SourceTripAdvisor }

func (a *TripAdvisorAdapter) Fetch(ctx context.Context, q Query) []venues.Venue {
	q = q.withDefaults()

	var search tripAdvisorSearchResponse
	err := a.client.postJSON(ctx, tripAdvisorSearchPath, tripAdvisorSearchRequest{
		Location:   q.Location,
		Categories: q.Keyword,
	}, &search)
	if err == nil && search.Data == nil {
		err = shared.Wrap(shared.ErrMalformedProviderPayload, "tripadvisor: response has no data")
	}
	if err != nil {
		logFetchFailure(a.logger, venues.SourceTripAdvisor, "search", err)
		return []venues.Venue{}
	}

	ids := make([]string, 0, len(*search.Data))
	for _, d := range *search.Data {
		if id := strings.TrimSpace(d.LocationID); id != "" {
			ids = append(ids, id)
		}
	}

	locations := fetchDetails(ctx, capIDs(ids, a.cfg.MaxResults), a.cfg.DetailConcurrency, a.details,
		func(id string, err error) {
			a.logger.Warnw("tripadvisor detail lookup failed",
				"location_id", id,
				"code", shared.CodeOf(err),
				"error", err.Error(),
			)
		})

	out := make([]venues.Venue, 0, len(locations))
	for _, l := range locations {
		if v, ok := accept(a.normalize(l), a.cfg.Region, a.logger); ok {
			out = append(out, v)
		}
	}
	return out
}

func (a *TripAdvisorAdapter) details(ctx context.Context, locationID string) (tripAdvisorLocation, error) {
	var loc tripAdvisorLocation
	if err := a.client.postJSON(ctx, tripAdvisorDetailsPath, tripAdvisorDetailsRequest{LocationID: locationID}, &loc); err != nil {
		return tripAdvisorLocation{}, err
	}
	if loc.LocationID == "" {
		loc.LocationID = locationID
	}
	return loc, nil
}

func (a *TripAdvisorAdapter) normalize(l tripAdvisorLocation) venues.Venue {
	address := l.Address
	if l.AddressObj != nil && l.AddressObj.AddressString != "" {
		address = l.AddressObj.AddressString
	}

	v := venues.Venue{
		Source:      venues.SourceTripAdvisor,
		ExternalID:  l.LocationID,
		ExternalIDs: venues.ExternalIDsFor(venues.SourceTripAdvisor, strings.TrimSpace(l.LocationID)),
		Name:        l.Name,
		Category:    a.rules.Classify([]string{l.Description}),
		Description: l.Description,
		Address:     address,
		Phone:       l.Phone,
		Website:     nonEmpty(l.Website, l.WebURL),
		Rating:      l.Rating.Value,
		ReviewCount: l.NumReviews.Value,
		PriceLevel:  leadingPriceLevel(l.PriceLevel),
	}
	v.Latitude, v.Longitude = missingCoordinates()
	if l.Latitude.Value != nil && l.Longitude.Value != nil {
		v.Latitude, v.Longitude = *l.Latitude.Value, *l.Longitude.Value
	}
	return v
}

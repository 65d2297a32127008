// Package catalog serves approved venues to the public API from a Redis
// cache backed by the canonical store. The cache is best effort: any Redis
// failure falls through to Postgres.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	approvedKey = "pois:approved"
	geoKey      = "pois:geo"
	poiPrefix   = "poi:"

	DefaultTTL       = time.Hour
	DefaultNearbyMax = 50
)

// NearbyPOI is an approved venue with its distance from the query point.
type NearbyPOI struct {
	pois.POI
	DistanceKm float64 `json:"distance_km"`
}

type Catalog struct {
	store     pois.Store
	rdb       redis.Cmdable
	ttl       time.Duration
	nearbyMax int
	logger    *zap.SugaredLogger
}

func New(store pois.Store, rdb redis.Cmdable, ttl time.Duration, logger *zap.SugaredLogger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		store:     store,
		rdb:       rdb,
		ttl:       ttl,
		nearbyMax: DefaultNearbyMax,
		logger:    logger,
	}
}

func poiKey(id string) string {
	return poiPrefix + id
}

// List returns approved venues sorted by name, optionally narrowed to one
// category.
func (c *Catalog) List(ctx context.Context, category *venues.Category) ([]pois.POI, error) {
	all, err := c.approved(ctx)
	if err != nil {
		return nil, err
	}
	if category == nil {
		if all == nil {
			all = []pois.POI{}
		}
		return all, nil
	}
	out := make([]pois.POI, 0, len(all))
	for _, p := range all {
		if p.Category == *category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Catalog) approved(ctx context.Context) ([]pois.POI, error) {
	raw, err := c.rdb.Get(ctx, approvedKey).Bytes()
	switch {
	case err == nil:
		var cached []pois.POI
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.Warnw("discarding corrupt catalog cache", "key", approvedKey)
	case !errors.Is(err, redis.Nil):
		c.logger.Warnw("catalog cache read failed", "error", err)
	}

	all, err := c.store.ListApproved(ctx, pois.ListFilter{})
	if err != nil {
		return nil, err
	}
	if err := c.warm(ctx, all); err != nil {
		c.logger.Warnw("catalog cache write failed", "error", err)
	}
	return all, nil
}

// warm writes the list, one hash per venue and the geo index in a single
// round trip.
func (c *Catalog) warm(ctx context.Context, all []pois.POI) error {
	list, err := json.Marshal(all)
	if err != nil {
		return err
	}

	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, approvedKey, list, c.ttl)
		pipe.Del(ctx, geoKey)
		if len(all) == 0 {
			return nil
		}

		locations := make([]*redis.GeoLocation, 0, len(all))
		for _, p := range all {
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			key := poiKey(p.ID.String())
			pipe.HSet(ctx, key, "data", data)
			pipe.Expire(ctx, key, c.ttl)
			locations = append(locations, &redis.GeoLocation{
				Name:      p.ID.String(),
				Longitude: p.Longitude,
				Latitude:  p.Latitude,
			})
		}
		pipe.GeoAdd(ctx, geoKey, locations...)
		pipe.Expire(ctx, geoKey, c.ttl)
		return nil
	})
	return err
}

// Get returns one approved venue. Pending and rejected rows are reported as
// not found.
func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*pois.POI, error) {
	raw, err := c.rdb.HGet(ctx, poiKey(id.String()), "data").Bytes()
	if err == nil {
		var p pois.POI
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warnw("catalog cache read failed", "poi_id", id, "error", err)
	}

	p, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != pois.StatusApproved {
		return nil, pois.ErrPOINotFound
	}
	return p, nil
}

// Nearby returns approved venues within radiusKm of (lat, lng), closest
// first.
func (c *Catalog) Nearby(ctx context.Context, lat, lng, radiusKm float64, category *venues.Category) ([]NearbyPOI, error) {
	if !venues.ValidCoordinates(lat, lng) {
		return nil, fmt.Errorf("invalid coordinates %f,%f", lat, lng)
	}

	if !c.geoIndexed(ctx) {
		all, err := c.approved(ctx)
		if err != nil {
			return nil, err
		}
		if !c.geoIndexed(ctx) {
			return c.nearbyFromList(all, lat, lng, radiusKm, category), nil
		}
	}

	query := &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}
	// With a category filter the cap applies after filtering.
	if category == nil {
		query.Count = c.nearbyMax
	}
	hits, err := c.rdb.GeoRadius(ctx, geoKey, lng, lat, query).Result()
	if err != nil {
		c.logger.Warnw("catalog geo query failed", "error", err)
		all, err := c.approved(ctx)
		if err != nil {
			return nil, err
		}
		return c.nearbyFromList(all, lat, lng, radiusKm, category), nil
	}

	out := make([]NearbyPOI, 0, len(hits))
	for _, h := range hits {
		raw, err := c.rdb.HGet(ctx, poiKey(h.Name), "data").Bytes()
		if err != nil {
			c.logger.Debugw("geo member without cached data", "poi_id", h.Name, "error", err)
			continue
		}
		var p pois.POI
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if category != nil && p.Category != *category {
			continue
		}
		out = append(out, NearbyPOI{POI: p, DistanceKm: h.Dist})
		if len(out) == c.nearbyMax {
			break
		}
	}
	return out, nil
}

func (c *Catalog) geoIndexed(ctx context.Context) bool {
	n, err := c.rdb.Exists(ctx, geoKey).Result()
	return err == nil && n > 0
}

// nearbyFromList answers a radius query without Redis.
func (c *Catalog) nearbyFromList(all []pois.POI, lat, lng, radiusKm float64, category *venues.Category) []NearbyPOI {
	out := make([]NearbyPOI, 0)
	for _, p := range all {
		if category != nil && p.Category != *category {
			continue
		}
		if d := haversineKm(lat, lng, p.Latitude, p.Longitude); d <= radiusKm {
			out = append(out, NearbyPOI{POI: p, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > c.nearbyMax {
		out = out[:c.nearbyMax]
	}
	return out
}

const earthRadiusKm = 6372.7976

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Invalidate drops every cached catalog key. The next read reloads from
// Postgres.
func (c *Catalog) Invalidate(ctx context.Context) error {
	keys := []string{approvedKey, geoKey}
	iter := c.rdb.Scan(ctx, 0, poiPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog keys: %w", err)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Emit invalidates the cache whenever the approved set may have changed.
func (c *Catalog) Emit(ctx context.Context, e events.Event) {
	switch e.Name {
	case events.SyncCompleted, events.SubmissionApproved:
	default:
		return
	}
	if err := c.Invalidate(ctx); err != nil {
		c.logger.Warnw("catalog invalidation failed", "event", e.Name, "error", err)
		return
	}
	c.logger.Debugw("catalog cache invalidated", "event", e.Name)
}

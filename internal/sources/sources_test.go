package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"nightmap/internal/domain/venues"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:              baseURL,
		Timeout:              time.Second,
		RequestsPerSecond:    1000,
		Burst:                100,
		MaxRetries:           DefaultMaxRetries,
		RetryInitialInterval: time.Millisecond,
		DetailConcurrency:    3,
		Region:               &venues.DaytonRegion,
	}
}

func writeBody(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestYelpAdapterFetch(t *testing.T) {
	var got yelpSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, yelpSearchPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"businesses": [
			{"id": "bn1", "name": "The Blue Note Bar",
			 "categories": [{"alias": "jazzandblues", "title": "Jazz & Blues"}, {"alias": "cocktailbars", "title": "Cocktail Bars"}],
			 "coordinates": {"latitude": 39.7590, "longitude": -84.1917},
			 "location": {"display_address": ["123 Main St", "Dayton, OH 45402"]},
			 "display_phone": "(937) 555-0100", "url": "https://yelp.example/bn1",
			 "rating": 4.0, "review_count": 120, "price": "$$"},
			{"id": "nocoords", "name": "Ghost Bar", "categories": []},
			{"id": "far", "name": "Cleveland Club", "coordinates": {"latitude": 41.4993, "longitude": -81.6944}},
			{"id": "", "name": "No Id Lounge", "coordinates": {"latitude": 39.76, "longitude": -84.19}}
		]}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = "secret"
	a := NewYelpAdapter(cfg, zap.NewNop().Sugar())

	out := a.Fetch(context.Background(), Query{})
	require.Len(t, out, 1)

	v := out[0]
	assert.Equal(t, venues.SourceYelp, v.Source)
	assert.Equal(t, "bn1", v.ExternalID)
	require.NotNil(t, v.ExternalIDs.Yelp)
	assert.Equal(t, "bn1", *v.ExternalIDs.Yelp)
	assert.Nil(t, v.ExternalIDs.Google)
	assert.Equal(t, venues.CategoryBar, v.Category)
	assert.Equal(t, "123 Main St, Dayton, OH 45402", v.Address)
	assert.Equal(t, "Jazz & Blues, Cocktail Bars", v.Description)
	assert.Equal(t, "(937) 555-0100", v.Phone)
	require.NotNil(t, v.PriceLevel)
	assert.Equal(t, venues.PriceModerate, *v.PriceLevel)
	require.NotNil(t, v.ReviewCount)
	assert.Equal(t, 120, *v.ReviewCount)

	assert.Equal(t, DefaultLocation, got.Location)
	assert.Equal(t, 50, got.Limit)
	assert.Equal(t, yelpCategories, got.Categories)
}

func TestYelpAdapterDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"client error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"businesses": [`)) }},
		{"unexpected shape", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"error": "nope"}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			out := NewYelpAdapter(testConfig(srv.URL), zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
			assert.NotNil(t, out)
			assert.Empty(t, out)
		})
	}
}

func TestYelpAdapterTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 0

	start := time.Now()
	out := NewYelpAdapter(cfg, zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
	assert.Empty(t, out)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientRetriesOnlyUnavailable(t *testing.T) {
	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"businesses": []}`))
		}))
		defer srv.Close()

		var outcomes []string
		var mu sync.Mutex
		cfg := testConfig(srv.URL)
		cfg.Observe = func(_ venues.Source, outcome string, _ time.Duration) {
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}

		out := NewYelpAdapter(cfg, zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
		assert.Empty(t, out)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []string{"unavailable", "unavailable", "ok"}, outcomes)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		NewYelpAdapter(testConfig(srv.URL), zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
		assert.Equal(t, int32(DefaultMaxRetries+1), calls.Load())
	})

	t.Run("does not retry malformed payloads", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		NewYelpAdapter(testConfig(srv.URL), zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		NewYelpAdapter(testConfig(srv.URL), zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
		assert.Equal(t, int32(1), calls.Load())
	})
}

func googleServer(t *testing.T, placeIDs []string, inFlight, peak *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(googleSearchPath, func(w http.ResponseWriter, r *http.Request) {
		var req googleSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, googleSearchTypes, req.Types)

		results := make([]map[string]string, 0, len(placeIDs))
		for _, id := range placeIDs {
			results = append(results, map[string]string{"place_id": id})
		}
		writeBody(t, w, map[string]any{"results": results})
	})
	mux.HandleFunc(googleDetailsPath, func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)

		var req googleDetailsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.PlaceID {
		case "broken":
			w.WriteHeader(http.StatusNotFound)
			return
		case "g77":
			writeBody(t, w, map[string]any{"result": map[string]any{
				"place_id":           "g77",
				"name":               "Blue Note",
				"types":              []string{"night_club", "bar", "establishment"},
				"geometry":           map[string]any{"location": map[string]float64{"lat": 39.7591, "lng": -84.1918}},
				"formatted_address":  "123 Main St, Dayton, OH 45402",
				"rating":             4.4,
				"user_ratings_total": 88,
				"price_level":        2,
			}})
			return
		}
		writeBody(t, w, map[string]any{"result": map[string]any{
			"place_id": req.PlaceID,
			"name":     "Place " + req.PlaceID,
			"types":    []string{"bar"},
			"geometry": map[string]any{"location": map[string]float64{"lat": 39.75, "lng": -84.19}},
		}})
	})
	return httptest.NewServer(mux)
}

func TestGoogleAdapterFetch(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := googleServer(t, []string{"g77", "broken", "g2"}, &inFlight, &peak)
	defer srv.Close()

	out := NewGoogleAdapter(testConfig(srv.URL), zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
	require.Len(t, out, 2)

	assert.Equal(t, "g77", out[0].ExternalID)
	assert.Equal(t, "g2", out[1].ExternalID)

	v := out[0]
	assert.Equal(t, venues.SourceGoogle, v.Source)
	assert.Equal(t, venues.CategoryClub, v.Category)
	require.NotNil(t, v.ExternalIDs.Google)
	assert.Equal(t, "g77", *v.ExternalIDs.Google)
	assert.Nil(t, v.ExternalIDs.Yelp)
	require.NotNil(t, v.PriceLevel)
	assert.Equal(t, venues.PriceModerate, *v.PriceLevel)
	assert.InDelta(t, 39.7591, v.Latitude, 1e-9)
}

func TestGoogleAdapterBoundsDetailFanOut(t *testing.T) {
	ids := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		ids = append(ids, "p"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}

	var inFlight, peak atomic.Int32
	srv := googleServer(t, ids, &inFlight, &peak)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DetailConcurrency = 3
	out := NewGoogleAdapter(cfg, zap.NewNop().Sugar()).Fetch(context.Background(), Query{})

	assert.Len(t, out, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))

	got := make([]string, 0, len(out))
	for _, v := range out {
		got = append(got, v.ExternalID)
	}
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool {
		return indexOf(ids, got[i]) < indexOf(ids, got[j])
	}))
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func TestTripAdvisorAdapterFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tripAdvisorSearchPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"location_id": "ta1"}, {"location_id": "ta2"}]}`))
	})
	mux.HandleFunc(tripAdvisorDetailsPath, func(w http.ResponseWriter, r *http.Request) {
		var req tripAdvisorDetailsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.LocationID == "ta2" {
			_, _ = w.Write([]byte(`{"location_id": "ta2", "name": "Bad Coords", "latitude": "north", "longitude": "-84.19"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"location_id": "ta1",
			"name": "Club Vortex",
			"description": "Dayton's biggest dance club",
			"latitude": "39.7602",
			"longitude": "-84.1901",
			"address_obj": {"address_string": "5 Ludlow St, Dayton, OH"},
			"web_url": "https://tripadvisor.example/ta1",
			"rating": "4.5",
			"num_reviews": "212",
			"price_level": "$$ - $$$"
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := NewTripAdvisorAdapter(testConfig(srv.URL), zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
	require.Len(t, out, 1)

	v := out[0]
	assert.Equal(t, venues.SourceTripAdvisor, v.Source)
	assert.Equal(t, venues.CategoryClub, v.Category)
	assert.Equal(t, "5 Ludlow St, Dayton, OH", v.Address)
	assert.Equal(t, "https://tripadvisor.example/ta1", v.Website)
	require.NotNil(t, v.Rating)
	assert.Equal(t, 4.5, *v.Rating)
	require.NotNil(t, v.ReviewCount)
	assert.Equal(t, 212, *v.ReviewCount)
	require.NotNil(t, v.PriceLevel)
	assert.Equal(t, venues.PriceModerate, *v.PriceLevel)
	require.NotNil(t, v.ExternalIDs.TripAdvisor)
	assert.Equal(t, "ta1", *v.ExternalIDs.TripAdvisor)
}

func TestTripAdvisorAdapterFitsCatalogLimits(t *testing.T) {
	longDescription := strings.Repeat("Craft cocktails, vinyl nights and a patio over the river. ", 12)
	require.Greater(t, utf8.RuneCountInString(longDescription), venues.MaxDescriptionLength)

	mux := http.NewServeMux()
	mux.HandleFunc(tripAdvisorSearchPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"location_id": "ta1"}, {"location_id": "ta2"}]}`))
	})
	mux.HandleFunc(tripAdvisorDetailsPath, func(w http.ResponseWriter, r *http.Request) {
		var req tripAdvisorDetailsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.LocationID == "ta2" {
			writeBody(t, w, map[string]any{
				"location_id": "ta2", "name": "Q",
				"latitude": "39.7600", "longitude": "-84.1900",
			})
			return
		}
		writeBody(t, w, map[string]any{
			"location_id": "ta1", "name": "River Room",
			"description": longDescription,
			"latitude":    "39.7610", "longitude": "-84.1910",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := NewTripAdvisorAdapter(testConfig(srv.URL), zap.NewNop().Sugar()).Fetch(context.Background(), Query{})
	require.Len(t, out, 1, "one-letter names are dropped")

	v := out[0]
	assert.Equal(t, "ta1", v.ExternalID)
	assert.Equal(t, venues.MaxDescriptionLength, utf8.RuneCountInString(v.Description))
	assert.True(t, strings.HasPrefix(longDescription, v.Description))
}

func TestNewAllMergeOrder(t *testing.T) {
	adapters := NewAll(testConfig("http://127.0.0.1:1"), zap.NewNop().Sugar())
	require.Len(t, adapters, 3)
	for i, a := range adapters {
		assert.Equal(t, venues.ProviderSources[i], a.Source())
	}
}

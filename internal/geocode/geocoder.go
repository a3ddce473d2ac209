// Package geocode turns a city, state and country into coordinates.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lead-pipeline/internal/common/config"
	httpclient "lead-pipeline/internal/common/http"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/metrics"
	"lead-pipeline/internal/models"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Cache is the subset of cache.Cache the geocoder needs.
type Cache interface {
	Get(ctx context.Context, key string, v interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// Google calls the Geocoding API.
type Google struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

func NewGoogle(cfg config.GeocodingConfig) *Google {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Google{baseURL: base, apiKey: cfg.APIKey, http: httpclient.NewClient(timeout)}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Address joins the non-empty parts with ", ".
func Address(city, state, country string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, state, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Geocode returns nil coordinates when the address does not resolve.
func (g *Google) Geocode(ctx context.Context, city, state, country string) (*models.Coordinates, error) {
	address := Address(city, state, country)
	if address == "" {
		return nil, nil
	}

	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse geocode url: %w", err)
	}
	q := u.Query()
	q.Set("address", address)
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	resp, err := g.http.SendJSON(ctx, http.MethodGet, u.String(), nil, nil)
	if err != nil {
		metrics.ExternalCalls.WithLabelValues("geocoding", "geocode", "failure").Inc()
		return nil, err
	}
	if !resp.OK() {
		metrics.ExternalCalls.WithLabelValues("geocoding", "geocode", "failure").Inc()
		return nil, fmt.Errorf("geocoding returned %d: %s", resp.StatusCode, string(resp.Body))
	}
	metrics.ExternalCalls.WithLabelValues("geocoding", "geocode", "success").Inc()

	var out geocodeResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("geocoding status %s: %s", out.Status, out.ErrorMessage)
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	loc := out.Results[0].Geometry.Location
	return &models.Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

// Geocoder is implemented by Google and Cached.
type Geocoder interface {
	Geocode(ctx context.Context, city, state, country string) (*models.Coordinates, error)
}

// Cached memoizes resolved addresses. Misses and errors are not cached.
type Cached struct {
	inner  Geocoder
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

func NewCached(inner Geocoder, cache Cache, ttl time.Duration, log logger.Logger) *Cached {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Cached{inner: inner, cache: cache, ttl: ttl, logger: log.WithFields(map[string]interface{}{"component": "geocode-cache"})}
}

func (c *Cached) Geocode(ctx context.Context, city, state, country string) (*models.Coordinates, error) {
	key := "geocode:" + strings.ToLower(Address(city, state, country))

	var coords models.Coordinates
	found, err := c.cache.Get(ctx, key, &coords)
	if err != nil {
		c.logger.Warn("geocode cache read failed", map[string]interface{}{"error": err.Error()})
	}
	if found {
		return &coords, nil
	}

	resolved, err := c.inner.Geocode(ctx, city, state, country)
	if err != nil || resolved == nil {
		return resolved, err
	}
	if err := c.cache.Set(ctx, key, resolved, c.ttl); err != nil {
		c.logger.Warn("geocode cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return resolved, nil
}

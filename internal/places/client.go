// Package places is the wire-level client for the Places API (New). It owns
// page-size clamping, continuation-token replay and bounded retries.
package places

import (
	"context"
	"errors"
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

// MaxPageSize is the provider's hard page size limit.
const MaxPageSize = 20

// MaxRadiusMeters is the largest location-bias radius the provider accepts.
const MaxRadiusMeters = 50000.0

const (
	opSearchText = "search_text"
	opDetails    = "place_details"
)

type Config struct {
	BaseURL        string
	APIKey         string
	LanguageCode   string
	RegionCode     string
	Timeout        time.Duration
	SearchAttempts int
	DetailAttempts int
	PageDelay      time.Duration
	RetryBackoff   time.Duration
	TokenTTL       time.Duration
	TokenSweepAt   int
}

// ConfigFrom maps the loaded places section to a client Config.
func ConfigFrom(cfg config.PlacesConfig) Config {
	return Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		LanguageCode:   cfg.LanguageCode,
		RegionCode:     cfg.RegionCode,
		Timeout:        time.Duration(cfg.Timeout) * time.Millisecond,
		SearchAttempts: cfg.SearchAttempts,
		DetailAttempts: cfg.DetailAttempts,
		PageDelay:      time.Duration(cfg.PageDelay) * time.Millisecond,
		RetryBackoff:   100 * time.Millisecond,
		TokenTTL:       time.Duration(cfg.TokenTTL) * time.Millisecond,
		TokenSweepAt:   cfg.TokenSweepAt,
	}
}

// Request is one text search. Bias is optional.
type Request struct {
	TextQuery    string
	IncludedType string
	PageSize     int
	PageToken    string
	Bias         *Circle
}

// Circle is a location bias in meters.
type Circle struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Page is one provider page.
type Page struct {
	Places        []models.PlaceRecord
	NextPageToken string
}

// AllPages is the result of a sequential multi-page walk.
type AllPages struct {
	Places []models.PlaceRecord
	Calls  int
}

type Client struct {
	cfg    Config
	http   *httpclient.Client
	tokens *TokenTable
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://places.googleapis.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.SearchAttempts <= 0 {
		cfg.SearchAttempts = 3
	}
	if cfg.DetailAttempts <= 0 {
		cfg.DetailAttempts = 2
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	return &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(cfg.Timeout),
		tokens: NewTokenTable(cfg.TokenTTL, cfg.TokenSweepAt),
		logger: log.WithFields(map[string]interface{}{"component": "places-client"}),
		sleep:  sleepContext,
	}
}

// Tokens exposes the continuation-token table.
func (c *Client) Tokens() *TokenTable {
	return c.tokens
}

// ClampPageSize bounds n to [1, MaxPageSize]; zero or negative means the maximum.
func ClampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// TextSearch runs one searchText call. A request carrying a page token is
// replayed from the body cached when that token was issued; unknown tokens
// fall back to a body rebuilt from req.
func (c *Client) TextSearch(ctx context.Context, req Request) (*Page, error) {
	body := c.buildBody(req)

	if req.PageToken != "" {
		if cached, ok := c.tokens.Get(req.PageToken); ok {
			body = cached
		} else {
			c.logger.Warn("no cached body for page token, rebuilding from request", map[string]interface{}{
				"textQuery": req.TextQuery,
			})
		}
		body.PageToken = req.PageToken
	}

	var out searchTextResponse
	err := c.withRetry(ctx, opSearchText, c.cfg.SearchAttempts, func(ctx context.Context) error {
		resp, err := c.http.SendJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/places:searchText", c.headers(searchFieldMask), body)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return &FetchError{Op: opSearchText, StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}
		return resp.Decode(&out)
	})
	if err != nil {
		return nil, err
	}

	if out.NextPageToken != "" {
		c.tokens.Put(out.NextPageToken, body)
	}

	page := &Page{NextPageToken: out.NextPageToken, Places: make([]models.PlaceRecord, 0, len(out.Places))}
	for _, p := range out.Places {
		page.Places = append(page.Places, p.toRecord())
	}
	return page, nil
}

// PlaceDetails fetches a single place by its external id.
func (c *Client) PlaceDetails(ctx context.Context, id string) (*models.PlaceRecord, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "places/")
	if id == "" {
		return nil, errors.New("place id is required")
	}

	endpoint := c.cfg.BaseURL + "/v1/places/" + url.PathEscape(id)
	if c.cfg.LanguageCode != "" {
		endpoint += "?languageCode=" + url.QueryEscape(c.cfg.LanguageCode)
	}

	var out placeWire
	err := c.withRetry(ctx, opDetails, c.cfg.DetailAttempts, func(ctx context.Context) error {
		resp, err := c.http.SendJSON(ctx, http.MethodGet, endpoint, c.headers(detailsFieldMask), nil)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return &FetchError{Op: opDetails, StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}
		return resp.Decode(&out)
	})
	if err != nil {
		return nil, err
	}

	rec := out.toRecord()
	return &rec, nil
}

// TextSearchAllPages walks pages sequentially until maxPlaces records are
// collected, a page comes back empty, or no token is offered. Location bias
// only applies to the first page. It never issues more than
// ceil(maxPlaces/MaxPageSize) calls.
func (c *Client) TextSearchAllPages(ctx context.Context, req Request, maxPlaces int) (*AllPages, error) {
	if maxPlaces <= 0 {
		maxPlaces = MaxPageSize
	}
	maxCalls := (maxPlaces + MaxPageSize - 1) / MaxPageSize

	result := &AllPages{Places: make([]models.PlaceRecord, 0, maxPlaces)}
	current := req
	current.PageToken = ""
	current.PageSize = ClampPageSize(maxPlaces)

	for result.Calls < maxCalls {
		if current.PageToken != "" {
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				return nil, err
			}
		}

		page, err := c.TextSearch(ctx, current)
		if err != nil {
			return nil, err
		}
		result.Calls++

		if len(page.Places) == 0 {
			break
		}
		remaining := maxPlaces - len(result.Places)
		if len(page.Places) > remaining {
			page.Places = page.Places[:remaining]
		}
		result.Places = append(result.Places, page.Places...)

		if len(result.Places) >= maxPlaces || page.NextPageToken == "" {
			break
		}

		current = Request{
			TextQuery:    req.TextQuery,
			IncludedType: req.IncludedType,
			PageSize:     current.PageSize,
			PageToken:    page.NextPageToken,
		}
	}

	c.logger.Debug("all pages fetched", map[string]interface{}{
		"textQuery": req.TextQuery,
		"calls":     result.Calls,
		"places":    len(result.Places),
	})
	return result, nil
}

func (c *Client) buildBody(req Request) searchTextBody {
	body := searchTextBody{
		TextQuery:    strings.TrimSpace(req.TextQuery),
		IncludedType: req.IncludedType,
		PageSize:     ClampPageSize(req.PageSize),
		LanguageCode: c.cfg.LanguageCode,
		RegionCode:   c.cfg.RegionCode,
	}
	if req.Bias != nil {
		radius := req.Bias.RadiusMeters
		if radius <= 0 || radius > MaxRadiusMeters {
			radius = MaxRadiusMeters
		}
		body.LocationBias = &locationBias{Circle: circle{
			Center: latLng{Latitude: req.Bias.Latitude, Longitude: req.Bias.Longitude},
			Radius: radius,
		}}
	}
	return body
}

func (c *Client) headers(fieldMask string) map[string]string {
	return map[string]string{
		"X-Goog-Api-Key":   c.cfg.APIKey,
		"X-Goog-FieldMask": fieldMask,
	}
}

// withRetry runs call up to attempts times. Transport errors, 429 and 5xx
// are retried with exponential backoff; other statuses return at once.
func (c *Client) withRetry(ctx context.Context, op string, attempts int, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<(attempt-2))
			if err := c.sleep(ctx, backoff); err != nil {
				return err
			}
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		err := call(attemptCtx)
		cancel()
		metrics.ExternalCallDuration.WithLabelValues("places", op).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.ExternalCalls.WithLabelValues("places", op, "success").Inc()
			return nil
		}
		metrics.ExternalCalls.WithLabelValues("places", op, "failure").Inc()
		lastErr = err

		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && !fetchErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("places call failed", map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}
	return fmt.Errorf("places %s: %d attempts exhausted: %w", op, attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

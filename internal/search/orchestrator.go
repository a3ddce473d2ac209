// Package search resolves discovery requests through the cache, the local
// place store and finally the paid places provider.
package search

import (
	"context"
	"time"

	"lead-pipeline/internal/common/config"
	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/metrics"
	"lead-pipeline/internal/common/observability"
	"lead-pipeline/internal/common/task"
	"lead-pipeline/internal/models"
	"lead-pipeline/internal/notify"
	"lead-pipeline/internal/places"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Guard enforces onboarding, quota and rate preconditions.
type Guard interface {
	Check(ctx context.Context, identity models.Identity) (*models.Account, error)
}

// PlaceStore is the local store of previously fetched places.
type PlaceStore interface {
	UpsertPlaces(ctx context.Context, places []models.PlaceRecord) error
	SearchPlaces(ctx context.Context, term string, limit int) ([]models.PlaceRecord, error)
}

// Ledger records search history. RecordBillableSearch charges one quota
// unit and appends the row atomically, returning the updated counters.
type Ledger interface {
	RecordBillableSearch(ctx context.Context, h models.SearchHistory) (used, limit int, err error)
	AppendHistory(ctx context.Context, h models.SearchHistory) error
}

type Cache interface {
	Get(ctx context.Context, key string, v interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

type Geocoder interface {
	Geocode(ctx context.Context, city, state, country string) (*models.Coordinates, error)
}

// PlacesClient is implemented by *places.Client.
type PlacesClient interface {
	TextSearch(ctx context.Context, req places.Request) (*places.Page, error)
	TextSearchAllPages(ctx context.Context, req places.Request, maxPlaces int) (*places.AllPages, error)
}

type Notifier interface {
	QuotaThresholdCrossed(ctx context.Context, alert notify.QuotaAlert) error
}

type UsageRecorder interface {
	Record(ctx context.Context, event models.UsageEvent)
}

// Config holds the tier acceptance thresholds.
type Config struct {
	CacheTTL           time.Duration
	CacheMinResults    int
	LocalMinCandidates int
	LocalMinFiltered   int
	LocalSearchLimit   int
	MaxRadiusKm        float64
	TokenPacing        time.Duration
	WarningThreshold   float64

	// LocationScopedCache keys cache entries by location as well as query.
	LocationScopedCache bool
}

// ConfigFrom maps the loaded search and quota sections.
func ConfigFrom(s config.SearchConfig, q config.QuotaConfig) Config {
	return Config{
		CacheTTL:           time.Duration(s.CacheTTL) * time.Millisecond,
		CacheMinResults:    s.CacheMinResults,
		LocalMinCandidates: s.LocalMinCandidates,
		LocalMinFiltered:   s.LocalMinFiltered,
		MaxRadiusKm:        float64(s.MaxRadiusKm),
		TokenPacing:        time.Duration(s.TokenPacing) * time.Millisecond,
		WarningThreshold:   q.WarningThreshold,

		LocationScopedCache: s.LocationScopedCache,
	}
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.CacheMinResults <= 0 {
		c.CacheMinResults = 5
	}
	if c.LocalMinCandidates <= 0 {
		c.LocalMinCandidates = 10
	}
	if c.LocalMinFiltered <= 0 {
		c.LocalMinFiltered = 5
	}
	if c.LocalSearchLimit <= 0 {
		c.LocalSearchLimit = 100
	}
	if c.MaxRadiusKm <= 0 || c.MaxRadiusKm > places.MaxRadiusMeters/1000 {
		c.MaxRadiusKm = places.MaxRadiusMeters / 1000
	}
	if c.TokenPacing < 0 {
		c.TokenPacing = 0
	}
	return c
}

// Deps are the collaborators of an Orchestrator. Cache, Geocoder, Usage
// and Notifier are optional.
type Deps struct {
	Guard    Guard
	Places   PlacesClient
	Store    PlaceStore
	Ledger   Ledger
	Cache    Cache
	Geocoder Geocoder
	Usage    UsageRecorder
	Notifier Notifier
	Runner   *task.Runner
}

type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func New(cfg Config, deps Deps, log logger.Logger) *Orchestrator {
	if deps.Runner == nil {
		deps.Runner = task.NewRunner(log, 0)
	}
	return &Orchestrator{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "search-orchestrator"}),
		sleep:  sleepContext,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// cachedPage holds no continuation token. The replay body behind a token
// lives only in the issuing process, so a token served from a shared cache
// could not be continued verbatim.
type cachedPage struct {
	Places []models.PlaceRecord `json:"places"`
}

// RunSearch answers one page. Requests without a page token try the cache
// and the local store before paying for a provider call; token requests
// always go to the provider after the pacing delay.
func (o *Orchestrator) RunSearch(ctx context.Context, req models.SearchRequest, identity models.Identity) (result *models.SearchResult, err error) {
	ctx, finish := observability.Track(ctx, "search.run", attribute.Bool("continuation", req.PageToken != ""))
	defer func() { finish(err) }()

	if req.PageToken == "" && req.TextQuery == "" {
		return nil, errs.NewInvalidRequestError("textQuery is required")
	}

	account, err := o.deps.Guard.Check(ctx, identity)
	if err != nil {
		return nil, err
	}
	attr := models.Attribution{WorkspaceID: account.WorkspaceID, UserID: identity.UserID}
	pageSize := places.ClampPageSize(req.PageSize)

	if req.PageToken != "" {
		if err := o.sleep(ctx, o.cfg.TokenPacing); err != nil {
			return nil, err
		}
		return o.external(ctx, req, attr, pageSize)
	}

	key := o.cacheKey(req)
	if res := o.fromCache(ctx, key, req, pageSize); res != nil {
		o.recordHistory(ctx, req, attr, len(res.Places), models.SourceCache)
		metrics.SearchResolutions.WithLabelValues(models.SourceCache).Inc()
		return res, nil
	}

	if res := o.fromLocal(ctx, req, pageSize); res != nil {
		o.recordHistory(ctx, req, attr, len(res.Places), models.SourceLocalDB)
		metrics.SearchResolutions.WithLabelValues(models.SourceLocalDB).Inc()
		return res, nil
	}

	res, err := o.external(ctx, req, attr, pageSize)
	if err != nil {
		return nil, err
	}
	if len(res.Places) > 0 && o.deps.Cache != nil {
		if err := o.deps.Cache.Set(ctx, key, cachedPage{Places: res.Places}, o.cfg.CacheTTL); err != nil {
			o.logger.Warn("search cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return res, nil
}

func (o *Orchestrator) cacheKey(req models.SearchRequest) string {
	if o.cfg.LocationScopedCache {
		return ScopedFingerprint(req)
	}
	return Fingerprint(req)
}

func (o *Orchestrator) fromCache(ctx context.Context, key string, req models.SearchRequest, pageSize int) *models.SearchResult {
	if o.deps.Cache == nil {
		return nil
	}
	var page cachedPage
	found, err := o.deps.Cache.Get(ctx, key, &page)
	if err != nil {
		o.logger.Warn("search cache read failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if !found {
		return nil
	}

	filtered := ApplyPresence(page.Places, req.HasWebsite, req.HasPhone)
	if len(filtered) < min(o.cfg.CacheMinResults, pageSize) {
		o.logger.Debug("cache entry below minimum, ignoring", map[string]interface{}{"count": len(filtered)})
		return nil
	}
	return &models.SearchResult{Places: filtered, FromCache: true}
}

func (o *Orchestrator) fromLocal(ctx context.Context, req models.SearchRequest, pageSize int) *models.SearchResult {
	if o.deps.Store == nil {
		return nil
	}
	candidates, err := o.deps.Store.SearchPlaces(ctx, req.TextQuery, o.cfg.LocalSearchLimit)
	if err != nil {
		o.logger.Warn("local place search failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if len(candidates) < o.cfg.LocalMinCandidates {
		return nil
	}

	filtered := ApplyPresence(candidates, req.HasWebsite, req.HasPhone)
	if len(filtered) < o.cfg.LocalMinFiltered {
		return nil
	}
	if len(filtered) > pageSize {
		filtered = filtered[:pageSize]
	}
	return &models.SearchResult{Places: filtered, FromLocalDB: true}
}

func (o *Orchestrator) external(ctx context.Context, req models.SearchRequest, attr models.Attribution, pageSize int) (*models.SearchResult, error) {
	preq := places.Request{
		TextQuery:    req.TextQuery,
		IncludedType: req.Category,
		PageSize:     pageSize,
		PageToken:    req.PageToken,
	}
	if req.PageToken == "" {
		preq.Bias = o.bias(ctx, req)
	}

	page, err := o.deps.Places.TextSearch(ctx, preq)
	if err != nil {
		return nil, errs.NewPlacesFetchFailedError(err)
	}
	metrics.SearchResolutions.WithLabelValues(models.SourceExternal).Inc()

	filtered := ApplyPresence(page.Places, req.HasWebsite, req.HasPhone)
	result := &models.SearchResult{Places: filtered, NextPageToken: page.NextPageToken}
	if len(page.Places) == 0 {
		return result, nil
	}

	o.recordUsage(ctx, attr, models.UsagePlacesSearch, 1, req)
	o.syncPlaces(ctx, page.Places)
	o.charge(ctx, req, attr, len(filtered))
	return result, nil
}

// RunSearchAllPages walks provider pages until maxPlaces records are
// collected. The walk counts as one logical search: one quota unit and
// one history row.
func (o *Orchestrator) RunSearchAllPages(ctx context.Context, req models.SearchRequest, identity models.Identity, maxPlaces int) (result *models.AllPagesResult, err error) {
	ctx, finish := observability.Track(ctx, "search.run_all_pages", attribute.Int("maxPlaces", maxPlaces))
	defer func() { finish(err) }()

	if req.TextQuery == "" {
		return nil, errs.NewInvalidRequestError("textQuery is required")
	}
	account, err := o.deps.Guard.Check(ctx, identity)
	if err != nil {
		return nil, err
	}
	attr := models.Attribution{WorkspaceID: account.WorkspaceID, UserID: identity.UserID}

	all, err := o.deps.Places.TextSearchAllPages(ctx, places.Request{
		TextQuery:    req.TextQuery,
		IncludedType: req.Category,
		Bias:         o.bias(ctx, req),
	}, maxPlaces)
	if err != nil {
		return nil, errs.NewPlacesFetchFailedError(err)
	}
	metrics.SearchResolutions.WithLabelValues(models.SourceExternal).Inc()

	filtered := ApplyPresence(all.Places, req.HasWebsite, req.HasPhone)
	result = &models.AllPagesResult{Places: filtered, TotalFetched: len(all.Places)}
	if len(all.Places) == 0 {
		return result, nil
	}

	o.recordUsage(ctx, attr, models.UsagePlacesSearch, all.Calls, req)
	o.syncPlaces(ctx, all.Places)
	o.charge(ctx, req, attr, len(filtered))
	return result, nil
}

// bias geocodes the request location. Geocoding failures drop the bias
// rather than failing the search.
func (o *Orchestrator) bias(ctx context.Context, req models.SearchRequest) *places.Circle {
	if !req.HasLocation() || o.deps.Geocoder == nil {
		return nil
	}
	coords, err := o.deps.Geocoder.Geocode(ctx, req.City, req.State, req.Country)
	if err != nil {
		o.logger.Warn("geocoding failed, searching without location bias", map[string]interface{}{
			"city":  req.City,
			"error": err.Error(),
		})
		return nil
	}
	if coords == nil {
		return nil
	}

	radiusKm := req.RadiusKm
	if radiusKm <= 0 || radiusKm > o.cfg.MaxRadiusKm {
		radiusKm = o.cfg.MaxRadiusKm
	}
	return &places.Circle{Latitude: coords.Latitude, Longitude: coords.Longitude, RadiusMeters: radiusKm * 1000}
}

func (o *Orchestrator) recordUsage(ctx context.Context, attr models.Attribution, kind string, quantity int, req models.SearchRequest) {
	if o.deps.Usage == nil {
		return
	}
	o.deps.Usage.Record(ctx, models.UsageEvent{
		WorkspaceID: attr.WorkspaceID,
		UserID:      attr.UserID,
		Kind:        kind,
		Quantity:    quantity,
		Provider:    "places",
		Metadata:    map[string]interface{}{"query": req.TextQuery, "category": req.Category},
	})
}

func (o *Orchestrator) syncPlaces(ctx context.Context, fetched []models.PlaceRecord) {
	if o.deps.Store == nil {
		return
	}
	snapshot := append([]models.PlaceRecord(nil), fetched...)
	o.deps.Runner.Go(ctx, "places.upsert", func(ctx context.Context) error {
		return o.deps.Store.UpsertPlaces(ctx, snapshot)
	})
}

// charge bills the paid call. The caller already holds the results, so a
// ledger failure is logged and the results are still returned.
func (o *Orchestrator) charge(ctx context.Context, req models.SearchRequest, attr models.Attribution, count int) {
	h := o.history(req, attr, count, models.SourceExternal)
	h.Billable = true

	used, limit, err := o.deps.Ledger.RecordBillableSearch(ctx, h)
	if err != nil {
		o.logger.Error("failed to record billable search", map[string]interface{}{
			"workspaceId": attr.WorkspaceID,
			"error":       err.Error(),
		})
		return
	}

	o.logger.Info("billable search recorded", map[string]interface{}{
		"workspaceId": attr.WorkspaceID,
		"used":        used,
		"limit":       limit,
		"results":     count,
	})

	if o.deps.Notifier != nil && notify.Crossed(used, limit, o.cfg.WarningThreshold) {
		alert := notify.QuotaAlert{
			WorkspaceID: attr.WorkspaceID,
			UserID:      attr.UserID,
			Used:        used,
			Limit:       limit,
			Threshold:   o.cfg.WarningThreshold,
			OccurredAt:  o.now(),
		}
		o.deps.Runner.Go(ctx, "notify.quota", func(ctx context.Context) error {
			return o.deps.Notifier.QuotaThresholdCrossed(ctx, alert)
		})
	}
}

func (o *Orchestrator) recordHistory(ctx context.Context, req models.SearchRequest, attr models.Attribution, count int, source string) {
	h := o.history(req, attr, count, source)
	o.deps.Runner.Go(ctx, "history.append", func(ctx context.Context) error {
		return o.deps.Ledger.AppendHistory(ctx, h)
	})
}

func (o *Orchestrator) history(req models.SearchRequest, attr models.Attribution, count int, source string) models.SearchHistory {
	return models.SearchHistory{
		ID:           uuid.NewString(),
		WorkspaceID:  attr.WorkspaceID,
		UserID:       attr.UserID,
		Query:        req.TextQuery,
		Filters:      filtersOf(req),
		ResultsCount: count,
		Source:       source,
		CreatedAt:    o.now(),
	}
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

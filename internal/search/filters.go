package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"lead-pipeline/internal/models"
	"lead-pipeline/internal/places"
)

// Fingerprint is the cache key for a first-page request. Queries that only
// differ in case or spacing share a key.
//
// The key is not scoped by location: the same query biased to two cities
// shares one entry. Use ScopedFingerprint when callers search the same
// query text across locations.
func Fingerprint(req models.SearchRequest) string {
	return fingerprint(keyParts(req))
}

// ScopedFingerprint extends Fingerprint with the normalized city, state,
// country and radius.
func ScopedFingerprint(req models.SearchRequest) string {
	parts := append(keyParts(req),
		normalize(req.City),
		normalize(req.State),
		normalize(req.Country),
		strconv.FormatFloat(req.RadiusKm, 'f', -1, 64),
	)
	return fingerprint(parts)
}

func keyParts(req models.SearchRequest) []string {
	return []string{
		normalize(req.TextQuery),
		normalize(req.Category),
		strconv.Itoa(places.ClampPageSize(req.PageSize)),
		normalizePresence(req.HasWebsite),
		normalizePresence(req.HasPhone),
	}
}

func fingerprint(parts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "search:" + hex.EncodeToString(sum[:16])
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizePresence(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case models.PresenceYes:
		return models.PresenceYes
	case models.PresenceNo:
		return models.PresenceNo
	default:
		return models.PresenceAny
	}
}

// ApplyPresence keeps the places matching the website and phone filters.
// Unset or unrecognised filter values match everything.
func ApplyPresence(in []models.PlaceRecord, hasWebsite, hasPhone string) []models.PlaceRecord {
	website, phone := normalizePresence(hasWebsite), normalizePresence(hasPhone)
	if website == models.PresenceAny && phone == models.PresenceAny {
		return in
	}

	out := make([]models.PlaceRecord, 0, len(in))
	for _, p := range in {
		if !matches(website, p.HasWebsite()) || !matches(phone, p.HasPhone()) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(filter string, present bool) bool {
	switch filter {
	case models.PresenceYes:
		return present
	case models.PresenceNo:
		return !present
	}
	return true
}

func filtersOf(req models.SearchRequest) models.SearchFilters {
	return models.SearchFilters{
		Category:   req.Category,
		HasWebsite: normalizePresence(req.HasWebsite),
		HasPhone:   normalizePresence(req.HasPhone),
		City:       req.City,
		State:      req.State,
		Country:    req.Country,
		RadiusKm:   req.RadiusKm,
		PageSize:   places.ClampPageSize(req.PageSize),
		PageToken:  req.PageToken != "",
	}
}

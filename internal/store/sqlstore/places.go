package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lead-pipeline/internal/models"
)

// UpsertPlaces writes each record keyed by external id. Records without
// an id are skipped.
func (s *Store) UpsertPlaces(ctx context.Context, places []models.PlaceRecord) error {
	if len(places) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO places (external_id, name, address, phone, international_phone, website, rating,
			review_count, categories, business_status, latitude, longitude, maps_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			name = excluded.name, address = excluded.address, phone = excluded.phone,
			international_phone = excluded.international_phone, website = excluded.website,
			rating = excluded.rating, review_count = excluded.review_count, categories = excluded.categories,
			business_status = excluded.business_status, latitude = excluded.latitude,
			longitude = excluded.longitude, maps_url = excluded.maps_url, updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, p := range places {
		if strings.TrimSpace(p.ExternalID) == "" {
			continue
		}
		categories := p.Categories
		if categories == nil {
			categories = []string{}
		}
		cats, err := json.Marshal(categories)
		if err != nil {
			return fmt.Errorf("encode categories: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, p.ExternalID, p.Name, p.Address, p.Phone, p.InternationalPhone,
			p.Website, p.Rating, p.ReviewCount, string(cats), p.BusinessStatus, p.Latitude, p.Longitude,
			p.MapsURL, now); err != nil {
			return fmt.Errorf("upsert place %s: %w", p.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SearchPlaces returns stored places whose name, categories or address
// contain term, most reviewed first.
func (s *Store) SearchPlaces(ctx context.Context, term string, limit int) ([]models.PlaceRecord, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	pattern := "%" + escapeLike(term) + "%"
	op := s.like()

	query := fmt.Sprintf(`
		SELECT external_id, name, address, phone, international_phone, website, rating, review_count,
			categories, business_status, latitude, longitude, maps_url
		FROM places
		WHERE name %[1]s ? ESCAPE '\' OR %[2]s %[1]s ? ESCAPE '\' OR address %[1]s ? ESCAPE '\'
		ORDER BY review_count DESC, external_id
		LIMIT ?`, op, s.text("categories"))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	defer rows.Close()

	var out []models.PlaceRecord
	for rows.Next() {
		var p models.PlaceRecord
		var cats []byte
		if err := rows.Scan(&p.ExternalID, &p.Name, &p.Address, &p.Phone, &p.InternationalPhone, &p.Website,
			&p.Rating, &p.ReviewCount, &cats, &p.BusinessStatus, &p.Latitude, &p.Longitude, &p.MapsURL); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		if len(cats) > 0 {
			if err := json.Unmarshal(cats, &p.Categories); err != nil {
				return nil, fmt.Errorf("decode categories: %w", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

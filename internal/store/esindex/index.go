// Package esindex keeps the place store in an Elasticsearch index so the
// local tier can use full-text matching.
package esindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "places"

type Index struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(es *elasticsearch.Client, index string, log logger.Logger) *Index {
	if index == "" {
		index = DefaultIndex
	}
	return &Index{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "place-index", "index": index}),
	}
}

type document struct {
	ExternalID         string   `json:"external_id"`
	Name               string   `json:"name"`
	Address            string   `json:"address,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	InternationalPhone string   `json:"international_phone,omitempty"`
	Website            string   `json:"website,omitempty"`
	Rating             float64  `json:"rating"`
	ReviewCount        int      `json:"review_count"`
	Categories         []string `json:"categories,omitempty"`
	BusinessStatus     string   `json:"business_status,omitempty"`
	Location           *geoPt   `json:"location,omitempty"`
	MapsURL            string   `json:"maps_url,omitempty"`
}

type geoPt struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toDocument(p models.PlaceRecord) document {
	d := document{
		ExternalID:         p.ExternalID,
		Name:               p.Name,
		Address:            p.Address,
		Phone:              p.Phone,
		InternationalPhone: p.InternationalPhone,
		Website:            p.Website,
		Rating:             p.Rating,
		ReviewCount:        p.ReviewCount,
		Categories:         p.Categories,
		BusinessStatus:     p.BusinessStatus,
		MapsURL:            p.MapsURL,
	}
	if p.Latitude != 0 || p.Longitude != 0 {
		d.Location = &geoPt{Lat: p.Latitude, Lon: p.Longitude}
	}
	return d
}

func (d document) record() models.PlaceRecord {
	p := models.PlaceRecord{
		ExternalID:         d.ExternalID,
		Name:               d.Name,
		Address:            d.Address,
		Phone:              d.Phone,
		InternationalPhone: d.InternationalPhone,
		Website:            d.Website,
		Rating:             d.Rating,
		ReviewCount:        d.ReviewCount,
		Categories:         d.Categories,
		BusinessStatus:     d.BusinessStatus,
		MapsURL:            d.MapsURL,
	}
	if d.Location != nil {
		p.Latitude, p.Longitude = d.Location.Lat, d.Location.Lon
	}
	return p
}

// UpsertPlaces indexes places with one bulk request, using the external
// id as document id.
func (x *Index) UpsertPlaces(ctx context.Context, places []models.PlaceRecord) error {
	var buf bytes.Buffer
	n := 0
	for _, p := range places {
		if strings.TrimSpace(p.ExternalID) == "" {
			continue
		}
		meta := map[string]interface{}{"index": map[string]interface{}{"_id": p.ExternalID}}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return err
		}
		if err := json.NewEncoder(&buf).Encode(toDocument(p)); err != nil {
			return err
		}
		n++
	}
	if n == 0 {
		return nil
	}

	req := esapi.BulkRequest{Index: x.index, Body: &buf}
	res, err := req.Do(ctx, x.es)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index failed: %s", res.String())
	}

	var out struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if out.Errors {
		failed := 0
		for _, item := range out.Items {
			for _, r := range item {
				if r.Status >= 300 {
					failed++
				}
			}
		}
		return fmt.Errorf("bulk index: %d of %d documents failed", failed, n)
	}

	x.logger.Debug("places indexed", map[string]interface{}{"count": n})
	return nil
}

// SearchPlaces matches term against name, categories and address.
func (x *Index) SearchPlaces(ctx context.Context, term string, limit int) ([]models.PlaceRecord, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  term,
				"fields": []string{"name^3", "categories^2", "address"},
				"type":   "best_fields",
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"review_count": "desc"},
		},
		"size": limit,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, x.es)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		if res.StatusCode == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("search places failed: %s", res.String())
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	places := make([]models.PlaceRecord, 0, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		places = append(places, hit.Source.record())
	}
	return places, nil
}

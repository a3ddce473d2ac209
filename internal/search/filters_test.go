package search

import (
	"testing"

	"lead-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	base := models.SearchRequest{TextQuery: "Padarias  Centro", Category: "bakery", PageSize: 20}

	assert.Equal(t, Fingerprint(base), Fingerprint(models.SearchRequest{TextQuery: " padarias centro", Category: "Bakery", PageSize: 50}))
	assert.NotEqual(t, Fingerprint(base), Fingerprint(models.SearchRequest{TextQuery: "padarias centro", Category: "bakery", PageSize: 10}))
	assert.NotEqual(t, Fingerprint(base), Fingerprint(models.SearchRequest{TextQuery: "padarias centro", Category: "bakery", HasPhone: "yes"}))
	// City does not change the key.
	assert.Equal(t, Fingerprint(base), Fingerprint(models.SearchRequest{TextQuery: "padarias centro", Category: "bakery", City: "Recife"}))
}

func TestScopedFingerprint(t *testing.T) {
	recife := models.SearchRequest{TextQuery: "padarias", City: "Recife", State: "PE", RadiusKm: 10}

	assert.Equal(t, ScopedFingerprint(recife), ScopedFingerprint(models.SearchRequest{TextQuery: " Padarias", City: "recife ", State: "pe", RadiusKm: 10}))
	assert.NotEqual(t, ScopedFingerprint(recife), ScopedFingerprint(models.SearchRequest{TextQuery: "padarias", City: "Olinda", State: "PE", RadiusKm: 10}))
	assert.NotEqual(t, ScopedFingerprint(recife), ScopedFingerprint(models.SearchRequest{TextQuery: "padarias", City: "Recife", State: "PE", RadiusKm: 25}))
	assert.NotEqual(t, Fingerprint(recife), ScopedFingerprint(recife))
}

func TestApplyPresence(t *testing.T) {
	in := []models.PlaceRecord{
		{ExternalID: "1", Website: "https://a", Phone: "11 99999-0000"},
		{ExternalID: "2", Website: "https://b"},
		{ExternalID: "3", InternationalPhone: "+55 11 3333-0000"},
		{ExternalID: "4"},
	}

	tests := []struct {
		name    string
		website string
		phone   string
		want    []string
	}{
		{name: "no filters", want: []string{"1", "2", "3", "4"}},
		{name: "has website", website: "yes", want: []string{"1", "2"}},
		{name: "no website", website: "no", want: []string{"3", "4"}},
		{name: "has phone", phone: "yes", want: []string{"1", "3"}},
		{name: "no website no phone", website: "no", phone: "no", want: []string{"4"}},
		{name: "unknown value ignored", website: "maybe", want: []string{"1", "2", "3", "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range ApplyPresence(in, tt.website, tt.phone) {
				got = append(got, p.ExternalID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

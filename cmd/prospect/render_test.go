package main

import (
	"bytes"
	"testing"

	"lead-pipeline/internal/models"
	"lead-pipeline/internal/scoring"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	color.NoColor = true

	ranked := scoring.ScoreAndRankPlaces([]models.PlaceRecord{
		{ExternalID: "a", Name: "Padaria Sem Site", Rating: 3.2, ReviewCount: 4},
		{ExternalID: "b", Name: "Padaria Completa", Website: "https://b.example", Phone: "1133334444", Rating: 4.7, ReviewCount: 210},
	}, 10)

	var buf bytes.Buffer
	renderTable(&buf, ranked, models.SourceCache)
	out := buf.String()

	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "Padaria Sem Site")
	assert.Contains(t, out, "no-site,no-phone,low-rating,few-reviews")
	assert.Contains(t, out, "2 places from cache")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Sem Site")), bytes.Index(buf.Bytes(), []byte("Completa")))
}

func TestRenderAnalysisDegraded(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	renderAnalysis(&buf, "Market", true, "placeholder summary", []string{"trend one"})
	assert.Contains(t, buf.String(), "analysis unavailable")
	assert.Contains(t, buf.String(), "  - trend one")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "curto", truncate("curto", 10))
	assert.Equal(t, "Padar…", truncate("Padaria Central", 6))
}

package scoring

import (
	"fmt"
	"sort"
	"testing"

	"lead-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factorsFromMask(mask int) models.ScoreFactors {
	return models.ScoreFactors{
		NoWebsite:          mask&1 != 0,
		NoPhone:            mask&2 != 0,
		LowRating:          mask&4 != 0,
		FewReviews:         mask&8 != 0,
		BelowMedianReviews: mask&16 != 0,
		MobilePhone:        mask&32 != 0,
		Operational:        mask&64 != 0,
	}
}

func TestComputeScore_MonotonicAndBounded(t *testing.T) {
	for mask := 0; mask < 128; mask++ {
		score := ComputeScore(factorsFromMask(mask))
		require.GreaterOrEqual(t, score, 0)
		require.LessOrEqual(t, score, MaxScore)

		for bit := 0; bit < 7; bit++ {
			if mask&(1<<bit) != 0 {
				continue
			}
			more := ComputeScore(factorsFromMask(mask | 1<<bit))
			assert.GreaterOrEqual(t, more, score, "mask %07b + bit %d", mask, bit)
		}
	}
}

func TestComputeScore_Weights(t *testing.T) {
	assert.Equal(t, 0, ComputeScore(models.ScoreFactors{}))
	assert.Equal(t, 25, ComputeScore(models.ScoreFactors{NoWebsite: true}))
	assert.Equal(t, 40, ComputeScore(models.ScoreFactors{NoWebsite: true, NoPhone: true}))
	assert.Equal(t, 95, ComputeScore(factorsFromMask(127)))
}

func TestComputeFactors(t *testing.T) {
	tests := []struct {
		name   string
		place  models.PlaceRecord
		median int
		want   models.ScoreFactors
	}{
		{
			name:   "bare listing",
			place:  models.PlaceRecord{ReviewCount: 2},
			median: 100,
			want:   models.ScoreFactors{NoWebsite: true, NoPhone: true, FewReviews: true, BelowMedianReviews: true},
		},
		{
			name: "established business",
			place: models.PlaceRecord{
				Website:        "https://padaria.example",
				Phone:          "(11) 3333-4444",
				Rating:         4.7,
				ReviewCount:    250,
				BusinessStatus: models.BusinessStatusOperational,
			},
			median: 100,
			want:   models.ScoreFactors{Operational: true},
		},
		{
			name:   "unrated place is not low rated",
			place:  models.PlaceRecord{Rating: 0, ReviewCount: 50, Website: "x", Phone: "(11) 3333-4444"},
			median: 0,
			want:   models.ScoreFactors{},
		},
		{
			name:   "low rating and mobile",
			place:  models.PlaceRecord{Rating: 3.2, ReviewCount: 40, Website: "x", Phone: "(11) 98765-4321"},
			median: 100,
			want:   models.ScoreFactors{LowRating: true, MobilePhone: true},
		},
		{
			name:   "international phone counts as phone",
			place:  models.PlaceRecord{InternationalPhone: "+55 21 99876-5432", ReviewCount: 40, Website: "x"},
			median: 40,
			want:   models.ScoreFactors{MobilePhone: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeFactors(tt.place, tt.median))
		})
	}
}

func TestIsMobilePhone(t *testing.T) {
	assert.True(t, IsMobilePhone("(11) 98765-4321"))
	assert.True(t, IsMobilePhone("+55 11 98765-4321"))
	assert.True(t, IsMobilePhone("011 98765-4321"))
	assert.False(t, IsMobilePhone("(11) 3333-4444"))
	assert.False(t, IsMobilePhone(""))
	assert.False(t, IsMobilePhone("0800 123 4567"))
}

func TestMedianReviews(t *testing.T) {
	mk := func(counts ...int) []models.PlaceRecord {
		out := make([]models.PlaceRecord, len(counts))
		for i, c := range counts {
			out[i].ReviewCount = c
		}
		return out
	}

	assert.Equal(t, 0, MedianReviews(nil))
	assert.Equal(t, 0, MedianReviews(mk(0, 0)))
	// descending 30,20,10 -> index 1
	assert.Equal(t, 20, MedianReviews(mk(10, 30, 20)))
	// even count takes the lower-index element of the descending list: 40,30,20,10 -> index 2
	assert.Equal(t, 20, MedianReviews(mk(10, 20, 30, 40)))
	// zeros do not enter the cohort
	assert.Equal(t, 20, MedianReviews(mk(0, 0, 0, 10, 20, 30)))
	// only the top ten count: 120..30 -> index 5 is 70
	assert.Equal(t, 70, MedianReviews(mk(1, 2, 3, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120)))
}

func TestAverageRating(t *testing.T) {
	places := []models.PlaceRecord{{Rating: 4.0}, {Rating: 4.5}, {Rating: 0}, {Rating: 3.2}}
	assert.Equal(t, 3.9, AverageRating(places))
	assert.Equal(t, 0.0, AverageRating([]models.PlaceRecord{{Rating: 0}}))
}

func TestScoreAndRankPlaces_SortedStableAndFiltered(t *testing.T) {
	places := []models.PlaceRecord{
		{ExternalID: "a", Name: "A", Website: "x", Phone: "(11) 3333-4444", ReviewCount: 100},
		{ExternalID: "b", Name: "B", ReviewCount: 100},
		{ExternalID: "", Name: "no id"},
		{ExternalID: "c", Name: "C", Website: "x", Phone: "(11) 3333-4444", ReviewCount: 100},
		{ExternalID: "d", Name: ""},
		{ExternalID: "e", Name: "E", ReviewCount: 100},
	}

	res := ScoreAndRankPlaces(places, 0)
	require.Len(t, res.Scored, 4)

	ids := make([]string, len(res.Scored))
	for i, s := range res.Scored {
		ids[i] = s.ExternalID
		assert.Equal(t, i+1, s.Rank)
	}
	assert.Equal(t, []string{"b", "e", "a", "c"}, ids)
	assert.True(t, sort.SliceIsSorted(res.Scored, func(i, j int) bool {
		return res.Scored[i].Score > res.Scored[j].Score
	}))
	assert.Equal(t, 100, res.MedianReviews)
}

func TestScoreAndRankPlaces_TopN(t *testing.T) {
	places := make([]models.PlaceRecord, 8)
	for i := range places {
		places[i] = models.PlaceRecord{ExternalID: fmt.Sprintf("p%d", i), Name: "P", ReviewCount: i * 10}
	}
	res := ScoreAndRankPlaces(places, 3)
	assert.Len(t, res.Scored, 3)
	assert.Equal(t, 3, res.Scored[2].Rank)
}

func TestScoreAndRankPlaces_NoWebsiteCount(t *testing.T) {
	places := make([]models.PlaceRecord, 15)
	for i := range places {
		places[i] = models.PlaceRecord{
			ExternalID:  fmt.Sprintf("place-%d", i),
			Name:        fmt.Sprintf("Padaria %d", i),
			Rating:      4.2,
			ReviewCount: 20 + i,
			Phone:       "(11) 3333-4444",
		}
		if i < 10 {
			places[i].Website = ""
		} else {
			places[i].Website = "https://example.com"
		}
		if i >= 10 {
			places[i].Phone = ""
		}
	}

	res := ScoreAndRankPlaces(places, 0)
	require.Len(t, res.Scored, 15)

	var noWebsite, noPhone int
	for _, s := range res.Scored {
		if s.Factors.NoWebsite {
			noWebsite++
		}
		if s.Factors.NoPhone {
			noPhone++
		}
	}
	assert.Equal(t, 10, noWebsite)
	assert.Equal(t, 5, noPhone)
	assert.Equal(t, 4.2, res.AvgRating)
}

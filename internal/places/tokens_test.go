package places

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenTable_PutStripsToken(t *testing.T) {
	table := NewTokenTable(time.Minute, 10)
	table.Put("tok", searchTextBody{TextQuery: "padarias", PageSize: 20, PageToken: "older"})

	body, ok := table.Get("tok")
	require.True(t, ok)
	assert.Equal(t, "padarias", body.TextQuery)
	assert.Empty(t, body.PageToken)
}

func TestTokenTable_IgnoresEmptyToken(t *testing.T) {
	table := NewTokenTable(time.Minute, 10)
	table.Put("", searchTextBody{TextQuery: "x"})
	assert.Equal(t, 0, table.Len())
}

func TestTokenTable_ExpiresEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	table := NewTokenTable(time.Minute, 10)
	table.now = func() time.Time { return now }

	table.Put("tok", searchTextBody{TextQuery: "padarias"})
	_, ok := table.Get("tok")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = table.Get("tok")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

func TestTokenTable_SweepsPastThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	table := NewTokenTable(time.Minute, 3)
	table.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		table.Put(fmt.Sprintf("old-%d", i), searchTextBody{})
	}
	now = now.Add(5 * time.Minute)

	table.Put("fresh", searchTextBody{TextQuery: "new"})
	assert.Equal(t, 1, table.Len())
	_, ok := table.Get("fresh")
	assert.True(t, ok)
}

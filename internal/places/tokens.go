package places

import (
	"sync"
	"time"
)

// TokenTable remembers the exact request body that produced each
// continuation token so a later {pageToken} request can be replayed
// verbatim. Entries expire after ttl; expired entries are swept when the
// table grows past sweepAt, and lazily on lookup.
type TokenTable struct {
	mu      sync.Mutex
	entries map[string]tokenEntry
	ttl     time.Duration
	sweepAt int
	now     func() time.Time
}

type tokenEntry struct {
	body      searchTextBody
	expiresAt time.Time
}

func NewTokenTable(ttl time.Duration, sweepAt int) *TokenTable {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if sweepAt <= 0 {
		sweepAt = 500
	}
	return &TokenTable{
		entries: make(map[string]tokenEntry),
		ttl:     ttl,
		sweepAt: sweepAt,
		now:     time.Now,
	}
}

// Put stores body under token. The stored copy never carries a token.
func (t *TokenTable) Put(token string, body searchTextBody) {
	if token == "" {
		return
	}
	body.PageToken = ""

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) >= t.sweepAt {
		t.sweepLocked()
	}
	t.entries[token] = tokenEntry{body: body, expiresAt: t.now().Add(t.ttl)}
}

// Get returns the body stored for token, if present and not expired.
func (t *TokenTable) Get(token string) (searchTextBody, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[token]
	if !ok {
		return searchTextBody{}, false
	}
	if t.now().After(entry.expiresAt) {
		delete(t.entries, token)
		return searchTextBody{}, false
	}
	return entry.body, true
}

// Len reports the number of stored entries, expired or not.
func (t *TokenTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *TokenTable) sweepLocked() {
	now := t.now()
	for token, entry := range t.entries {
		if now.After(entry.expiresAt) {
			delete(t.entries, token)
		}
	}
}

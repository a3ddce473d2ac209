package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"lead-pipeline/internal/common/config"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, placesURL, redisAddr string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Name = "lead-pipeline-test"
	cfg.Search.LocalBackend = BackendSQLite
	cfg.Database.SQLite.Path = ":memory:"
	cfg.Database.Redis.Address = redisAddr
	cfg.Places.BaseURL = placesURL
	cfg.Places.APIKey = "test-key"
	return cfg
}

func TestBuild_SQLiteEndToEnd(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places":[
			{"id":"p-1","displayName":{"text":"Padaria Um"},"userRatingCount":3},
			{"id":"p-2","displayName":{"text":"Padaria Dois"},"websiteUri":"https://dois.example","userRatingCount":40},
			{"id":"p-3","displayName":{"text":"Padaria Tres"},"userRatingCount":12}
		]}`))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	ctx := context.Background()

	a, err := Build(ctx, testConfig(t, srv.URL, mr.Addr()), logger.NewTestLogger(t))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.UpsertWorkspace(ctx, "ws-1", 0, 10))
	require.NoError(t, a.Store.UpsertUser(ctx, "u-1", "ws-1", true))
	require.NoError(t, a.HealthCheck(ctx))

	req := models.SearchRequest{TextQuery: "padarias", PageSize: 3}
	identity := models.Identity{UserID: "u-1"}

	first, err := a.Search.RunSearch(ctx, req, identity)
	require.NoError(t, err)
	assert.Len(t, first.Places, 3)
	assert.False(t, first.FromCache)

	second, err := a.Search.RunSearch(ctx, req, identity)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	a.Runner.Wait()

	account, err := a.Store.GetAccount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, account.QuotaUsed)

	history, err := a.Store.ListHistory(ctx, "ws-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	stored, err := a.Store.SearchPlaces(ctx, "Padaria", 10)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestBuild_RunsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	a, err := Build(context.Background(), testConfig(t, "http://127.0.0.1:1", addr), logger.NewTestLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.redis)
	assert.NoError(t, a.HealthCheck(context.Background()))
}

func TestRetryWithBackoff(t *testing.T) {
	var attempts int
	err := retryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, logger.NewTestLogger(t), "probe")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = retryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("down")
	}, 2, time.Millisecond, logger.NewTestLogger(t), "probe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe failed after 2 attempts")
	assert.Equal(t, 2, attempts)
}

func TestNotifiers(t *testing.T) {
	cfg := &config.Config{}
	a := &App{Config: cfg, logger: logger.NewTestLogger(t)}
	assert.Empty(t, a.notifiers(context.Background()))

	cfg.Notifications.AWS.Region = "us-east-1"
	cfg.Notifications.SNS.Enabled = true
	cfg.Notifications.SNS.TopicARN = "arn:aws:sns:us-east-1:123:quota"
	cfg.Notifications.SES.Enabled = true
	cfg.Notifications.SES.From = "alerts@example.com"
	cfg.Notifications.SES.Recipients = []string{"ops@example.com"}
	assert.Len(t, a.notifiers(context.Background()), 2)
}

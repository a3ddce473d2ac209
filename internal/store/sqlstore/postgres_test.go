package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"lead-pipeline/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, Postgres)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestPostgres_RecordBillableSearch(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE workspaces SET quota_used = quota_used + 1, updated_at = $1")).
		WithArgs(sqlmock.AnyArg(), "ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"quota_used", "quota_limit"}).AddRow(6, 100))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_history")).
		WithArgs("h-1", "ws-1", "u-1", "padarias", sqlmock.AnyArg(), 20, models.SourceExternal, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	used, limit, err := s.RecordBillableSearch(context.Background(), models.SearchHistory{
		ID: "h-1", WorkspaceID: "ws-1", UserID: "u-1", Query: "padarias",
		ResultsCount: 20, Source: models.SourceExternal, Billable: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, used)
	assert.Equal(t, 100, limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordBillableSearch_RollsBackOnHistoryFailure(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE workspaces")).
		WillReturnRows(sqlmock.NewRows([]string{"quota_used", "quota_limit"}).AddRow(6, 100))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_history")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, _, err := s.RecordBillableSearch(context.Background(), models.SearchHistory{ID: "h-1", WorkspaceID: "ws-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SearchPlacesUsesILike(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE name ILIKE $1 ESCAPE '\' OR categories::text ILIKE $2 ESCAPE '\' OR address ILIKE $3 ESCAPE '\'`)).
		WithArgs("%pada\\_ria%", "%pada\\_ria%", "%pada\\_ria%", 25).
		WillReturnRows(sqlmock.NewRows([]string{
			"external_id", "name", "address", "phone", "international_phone", "website", "rating", "review_count",
			"categories", "business_status", "latitude", "longitude", "maps_url",
		}).AddRow("p1", "Padaria", "", "", "", "", 4.5, 12, []byte(`["bakery"]`), "OPERATIONAL", 0.0, 0.0, ""))

	places, err := s.SearchPlaces(context.Background(), "pada_ria", 25)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, []string{"bakery"}, places[0].Categories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestAIConfigNoRows(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_provider_configs")).
		WithArgs("viability").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cfg, err := s.LatestAIConfig(context.Background(), models.RoleViability)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

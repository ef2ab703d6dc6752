package checkpoint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindlehq/spindle/internal/spider"
	"github.com/spindlehq/spindle/internal/stats"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := newPostgresStore(mock, "checkpoints")
	require.NoError(t, err)
	return store, mock
}

func TestPostgresSaveUpserts(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	cp := New("crawl-1", "pages",
		[]*spider.Request{spider.NewRequest("https://example.com/a", 0)},
		[]string{"fp-a"},
		stats.Snapshot{Requests: 1},
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	mock.ExpectExec("INSERT INTO checkpoints").
		WithArgs(cp.CrawlID, cp.Version, pgxmock.AnyArg(), cp.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadDecodesPayload(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	cp := New("crawl-2", "pages",
		[]*spider.Request{spider.NewRequest("https://example.com/b", 3)},
		[]string{"fp-b"},
		stats.Snapshot{Requests: 7},
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	payload, err := json.Marshal(cp)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM checkpoints").
		WithArgs("crawl-2").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := store.Load(context.Background(), "crawl-2")
	require.NoError(t, err)
	assert.Equal(t, "crawl-2", got.CrawlID)
	require.Len(t, got.Pending, 1)
	assert.Equal(t, 3, got.Pending[0].Priority)
	assert.Equal(t, int64(7), got.Stats.Requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadMissingRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM checkpoints").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadRejectsVersion(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	payload := []byte(`{"version":99,"crawl_id":"crawl-3","pending":[],"seen":[]}`)
	mock.ExpectQuery("SELECT payload FROM checkpoints").
		WithArgs("crawl-3").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	_, err := store.Load(context.Background(), "crawl-3")
	assert.ErrorIs(t, err, ErrVersion)
}

func TestPostgresClear(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM checkpoints").
		WithArgs("crawl-4").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Clear(context.Background(), "crawl-4"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRejectsBadTableName(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = newPostgresStore(mock, `cp; DROP TABLE users`)
	assert.Error(t, err)
}

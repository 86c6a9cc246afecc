package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	mock.ExpectExec(flexibleSQLMatcher(pgSchema)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	s, err := NewPostgres(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	return s, mock
}

func TestNewPostgres(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		pingErr := errors.New("database unavailable")
		mock.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgres(context.Background(), mock, zap.NewNop())
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should prepare the schema", func(t *testing.T) {
		_, mock := newMockStore(t)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgres_Record(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(flexibleSQLMatcher(pgInsert)).
		WithArgs("https://panel.example", "d", "alice", "50", int64(1500), "Credit updated", true, "fgpunt.com", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Record(context.Background(), schemas.AuditEntry{
		Site:      "https://panel.example",
		Operation: schemas.OpDeposit,
		Account:   "alice",
		Amount:    "50",
		Elapsed:   1500 * time.Millisecond,
		Message:   "Credit updated",
		Succeeded: true,
		Origin:    "fgpunt.com",
		CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(flexibleSQLMatcher(pgInsert)).
		WithArgs(pgxmock.AnyArg(), "w", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err := s.Record(context.Background(), schemas.AuditEntry{Operation: schemas.OpWithdraw})
	assert.ErrorContains(t, err, "disk full")
}

func TestPostgres_Entries(t *testing.T) {
	s, mock := newMockStore(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	at := from.Add(time.Hour)

	rows := pgxmock.NewRows([]string{"id", "site", "kind", "account", "amount", "elapsed_ms", "message", "succeeded", "origin", "created_at"}).
		AddRow(int64(1), "https://panel.example", "d", "alice", "50", int64(1200), "ok", true, "fgpunt.com", at).
		AddRow(int64(2), "https://panel.example", "w", "bob", "20", int64(900), "Your Client Does Not Have Sufficient Balance", false, "fgpunt.com", at.Add(time.Minute))
	mock.ExpectQuery(flexibleSQLMatcher(pgSelect)).WithArgs(from, to, "fgpunt.com").WillReturnRows(rows)

	entries, err := s.Entries(context.Background(), schemas.AuditQuery{From: from, To: to, Origin: "fgpunt.com"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, schemas.OpDeposit, entries[0].Operation)
	assert.Equal(t, 1200*time.Millisecond, entries[0].Elapsed)
	assert.Equal(t, schemas.OpWithdraw, entries[1].Operation)
	assert.False(t, entries[1].Succeeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

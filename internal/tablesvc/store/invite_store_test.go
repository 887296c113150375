package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
)

var inviteCols = []string{"token", "table_id", "expires_at", "max_uses", "used_count", "created_at"}

func TestCreateInvite(t *testing.T) {
	mock := newMock(t)
	clock := quartz.NewMock(t)
	s := NewInviteStore(mock, clock)

	expires := clock.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	created := clock.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invites")).
		WithArgs(pgxmock.AnyArg(), "t1", &expires, 5).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	inv, err := s.Create(context.Background(), "t1", time.Hour, 5)
	require.NoError(t, err)
	assert.Len(t, inv.Token, 36)
	assert.Equal(t, "t1", inv.TableID)
	require.NotNil(t, inv.ExpiresAt)
	assert.True(t, expires.Equal(*inv.ExpiresAt))
	assert.Equal(t, 0, inv.UsedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInviteWithoutExpiry(t *testing.T) {
	mock := newMock(t)
	s := NewInviteStore(mock, quartz.NewMock(t))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invites")).
		WithArgs(pgxmock.AnyArg(), "t1", (*time.Time)(nil), 1).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	inv, err := s.Create(context.Background(), "t1", 0, 1)
	require.NoError(t, err)
	assert.Nil(t, inv.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInviteRejectsBadParameters(t *testing.T) {
	mock := newMock(t)
	s := NewInviteStore(mock, quartz.NewMock(t))

	_, err := s.Create(context.Background(), "t1", time.Hour, 0)
	assert.ErrorIs(t, err, ErrInvalidInvite)
	_, err = s.Create(context.Background(), "t1", -time.Second, 3)
	assert.ErrorIs(t, err, ErrInvalidInvite)
	_, err = s.Create(context.Background(), "", time.Hour, 3)
	assert.ErrorIs(t, err, ErrInvalidInvite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInviteUnknownTable(t *testing.T) {
	mock := newMock(t)
	s := NewInviteStore(mock, quartz.NewMock(t))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invites")).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

	_, err := s.Create(context.Background(), "nope", time.Hour, 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeInvite(t *testing.T) {
	mock := newMock(t)
	clock := quartz.NewMock(t)
	s := NewInviteStore(mock, clock)

	now := clock.Now()
	expires := now.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invites")).
		WithArgs("tok", now).
		WillReturnRows(pgxmock.NewRows(inviteCols).AddRow("tok", "t1", &expires, 3, 1, now))

	inv, err := s.Consume(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.UsedCount)
	assert.Equal(t, 2, inv.RemainingUses())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeInviteClassifiesRejection(t *testing.T) {
	tests := []struct {
		name    string
		row     func(now time.Time) []any
		wantErr error
	}{
		{
			name: "expired",
			row: func(now time.Time) []any {
				past := now.Add(-time.Minute)
				return []any{"tok", "t1", &past, 3, 0, now}
			},
			wantErr: ErrExpired,
		},
		{
			name: "exhausted",
			row: func(now time.Time) []any {
				return []any{"tok", "t1", nil, 2, 2, now}
			},
			wantErr: ErrExhausted,
		},
		{
			name: "expired and exhausted",
			row: func(now time.Time) []any {
				past := now.Add(-time.Minute)
				return []any{"tok", "t1", &past, 1, 1, now}
			},
			wantErr: ErrExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			clock := quartz.NewMock(t)
			s := NewInviteStore(mock, clock)
			now := clock.Now()

			mock.ExpectQuery(regexp.QuoteMeta("UPDATE invites")).
				WithArgs("tok", now).
				WillReturnRows(pgxmock.NewRows(inviteCols))
			mock.ExpectQuery(regexp.QuoteMeta("FROM invites WHERE token")).
				WithArgs("tok").
				WillReturnRows(pgxmock.NewRows(inviteCols).AddRow(tt.row(now)...))

			_, err := s.Consume(context.Background(), "tok")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConsumeUnknownInvite(t *testing.T) {
	mock := newMock(t)
	s := NewInviteStore(mock, quartz.NewMock(t))

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invites")).
		WillReturnRows(pgxmock.NewRows(inviteCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM invites WHERE token")).
		WillReturnRows(pgxmock.NewRows(inviteCols))

	_, err := s.Consume(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveFollowsClock(t *testing.T) {
	mock := newMock(t)
	clock := quartz.NewMock(t)
	s := NewInviteStore(mock, clock)

	created := clock.Now()
	expires := created.Add(time.Hour)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("FROM invites WHERE token")).
			WithArgs("tok").
			WillReturnRows(pgxmock.NewRows(inviteCols).AddRow("tok", "t1", &expires, 3, 0, created))
	}

	res, err := s.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, res.Valid())

	clock.Advance(2 * time.Hour)
	res, err = s.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, models.InviteExpired, res.Status)
	assert.False(t, res.Valid())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListInvitesByTable(t *testing.T) {
	mock := newMock(t)
	s := NewInviteStore(mock, quartz.NewMock(t))

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE table_id = $1 ORDER BY created_at DESC")).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows(inviteCols).
			AddRow("b", "t1", nil, 3, 0, now).
			AddRow("a", "t1", nil, 3, 3, now.Add(-time.Hour)))

	invites, err := s.ListByTable(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, invites, 2)
	assert.Equal(t, "b", invites[0].Token)
	assert.Nil(t, invites[0].ExpiresAt)
	assert.Equal(t, 0, invites[1].RemainingUses())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInviteRetriesTokenCollision(t *testing.T) {
	mock := newMock(t)
	clock := quartz.NewMock(t)
	s := NewInviteStore(mock, clock)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invites")).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invites")).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(clock.Now()))

	inv, err := s.Create(context.Background(), "t1", 0, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

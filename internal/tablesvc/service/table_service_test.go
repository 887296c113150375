package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

func TestSaveAdvancesVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	svc := NewTableService(store.NewTableStore(mock))

	tbl := &engine.Table{ID: "t1", Version: 3}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tables")).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(4)))
	mock.ExpectCommit()

	version, err := svc.Save(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	assert.Equal(t, int64(4), tbl.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveKeepsVersionOnConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	svc := NewTableService(store.NewTableStore(mock))

	tbl := &engine.Table{ID: "t1", Version: 3}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tables")).
		WillReturnRows(pgxmock.NewRows([]string{"version"}))
	mock.ExpectRollback()

	_, err = svc.Save(context.Background(), tbl)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, int64(3), tbl.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

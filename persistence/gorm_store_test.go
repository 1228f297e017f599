package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/BaSui01/flowcanvas/types"
)

func newMockedGormStore(t *testing.T) (*GormGraphStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	// Bypass AutoMigrate; the schema is mocked.
	return &GormGraphStore{db: gormDB}, mock
}

func TestGormGraphStore_PutConflictOnStaleVersion(t *testing.T) {
	store, mock := newMockedGormStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `graphs`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "version", "data"}).
			AddRow("contested", int64(3), []byte(`{"name":"contested"}`)))
	mock.ExpectRollback()

	_, err := store.PutGraph(context.Background(), testGraph("contested"), 1)
	require.Error(t, err)
	fe, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrConflict, fe.Code)
	assert.Equal(t, int64(3), fe.Current)
	assert.Equal(t, int64(1), fe.Expected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormGraphStore_PutConflictOnLostRace(t *testing.T) {
	store, mock := newMockedGormStore(t)

	// The read sees version 1, but the guarded update matches nothing:
	// a concurrent writer bumped the row between read and write.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `graphs`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "version", "data"}).
			AddRow("contested", int64(1), []byte(`{"name":"contested"}`)))
	mock.ExpectExec("UPDATE `graphs`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.PutGraph(context.Background(), testGraph("contested"), 1)
	require.Error(t, err)
	assert.True(t, types.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormGraphStore_DeleteMissing(t *testing.T) {
	store, mock := newMockedGormStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `graphs`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.DeleteGraph(context.Background(), "ghost")
	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

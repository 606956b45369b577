package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gdb, mock
}

func TestDeviceRepoByAndroidID(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewDeviceRepository(gdb)

	rows := sqlmock.NewRows([]string{"id", "android_id", "device_key", "is_active", "last_seen"}).
		AddRow(1, "abc123", "deadbeef", true, time.Now())
	mock.ExpectQuery(`SELECT \* FROM "devices" WHERE android_id = \$1`).
		WithArgs("abc123", 1).
		WillReturnRows(rows)

	device, err := repo.ByAndroidID(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, uint(1), device.ID)
	assert.Equal(t, "deadbeef", device.DeviceKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRepoByAndroidIDNotFound(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewDeviceRepository(gdb)

	mock.ExpectQuery(`SELECT \* FROM "devices" WHERE android_id = \$1`).
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ByAndroidID(context.Background(), "ghost")
	assert.ErrorIs(t, err, servicecore.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandRepoExpireOverdue(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewCommandRepository(gdb)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "commands" SET "status"=\$1`).
		WithArgs(models.CommandExpired, models.CommandQueued, models.CommandSent, now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := repo.ExpireOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/domain"
	"lanwatch/internal/repository"
)

var _ repository.DeviceStore = (*Repository)(nil)

var columns = []string{"address", "display_name", "location", "linked_area", "status", "last_seen_at", "latitude", "longitude", "pinned", "created_at"}

func setupTestDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock, *Repository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, New(db)
}

func TestMigrate(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS devices`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDevices_Success(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(columns).
		AddRow("10.0.0.6", "nas", "Rack", "Lab", "Allowed", now, 12.0, -7.5, true, now).
		AddRow("10.0.0.5", "Device-5", domain.DefaultLocation, domain.DefaultLinkedArea, "Blocked", now.Add(-time.Minute), nil, nil, false, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + deviceColumns + ` FROM devices ORDER BY last_seen_at DESC`)).
		WillReturnRows(rows)

	devices, err := repo.ListDevices(context.Background())

	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "10.0.0.6", devices[0].Address)
	assert.True(t, devices[0].Pinned)
	require.NotNil(t, devices[0].Latitude)
	assert.Equal(t, 12.0, *devices[0].Latitude)
	assert.Equal(t, domain.StatusBlocked, devices[1].Status)
	assert.Nil(t, devices[1].Latitude)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDevices_QueryError(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WillReturnError(errors.New("connection refused"))

	devices, err := repo.ListDevices(context.Background())

	assert.Error(t, err)
	assert.Nil(t, devices)
	assert.Contains(t, err.Error(), "failed to query devices")
}

func TestGetDevice_NotFound(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE address = $1`)).
		WithArgs("10.0.0.9").
		WillReturnRows(sqlmock.NewRows(columns))

	d, err := repo.GetDevice(context.Background(), "10.0.0.9")

	assert.NoError(t, err)
	assert.Nil(t, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDevice_Success(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE address = $1`)).
		WithArgs("10.0.0.5").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("10.0.0.5", "Device-5", domain.DefaultLocation, domain.DefaultLinkedArea, "Blocked", now, nil, nil, false, now))

	d, err := repo.GetDevice(context.Background(), "10.0.0.5")

	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Device-5", d.DisplayName)
	assert.Equal(t, domain.StatusBlocked, d.Status)
	assert.True(t, now.Equal(d.LastSeenAt))
}

func TestInsertDevice_Success(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	d := domain.NewDevice("10.0.0.5", domain.StatusBlocked, time.Now())

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO devices`)).
		WithArgs("10.0.0.5", "Device-5", domain.DefaultLocation, domain.DefaultLinkedArea, "Blocked",
			sqlmock.AnyArg(), nil, nil, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.InsertDevice(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDevice_Duplicate(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (address) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.InsertDevice(context.Background(), domain.NewDevice("10.0.0.5", domain.StatusAllowed, time.Now()))

	assert.True(t, errors.Is(err, domain.ErrDuplicateKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchDevice(t *testing.T) {
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("updates existing row", func(t *testing.T) {
		db, mock, repo := setupTestDB(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`last_seen_at = GREATEST(last_seen_at, $3)`)).
			WithArgs("10.0.0.5", "Blocked", seen).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.TouchDevice(context.Background(), "10.0.0.5", domain.StatusBlocked, seen))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock, repo := setupTestDB(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET status`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.TouchDevice(context.Background(), "10.0.0.5", domain.StatusBlocked, seen)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		db, mock, repo := setupTestDB(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET status`)).
			WillReturnError(errors.New("pq: terminating connection"))

		err := repo.TouchDevice(context.Background(), "10.0.0.5", domain.StatusBlocked, seen)
		assert.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrNotFound))
		assert.Contains(t, err.Error(), "failed to touch device")
	})
}

func TestUpdateDevice(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	lat := 12.0
	d := domain.NewDevice("10.0.0.5", domain.StatusMaintenance, time.Now())
	d.Latitude = &lat
	d.Pinned = true

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET display_name = $2`)).
		WithArgs("10.0.0.5", "Device-5", domain.DefaultLocation, domain.DefaultLinkedArea, "Maintenance",
			sqlmock.AnyArg(), 12.0, nil, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateDevice(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDevice(t *testing.T) {
	db, mock, repo := setupTestDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM devices WHERE address = $1`)).
		WithArgs("10.0.0.5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM devices WHERE address = $1`)).
		WithArgs("10.0.0.5").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.DeleteDevice(context.Background(), "10.0.0.5"))
	assert.ErrorIs(t, repo.DeleteDevice(context.Background(), "10.0.0.5"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

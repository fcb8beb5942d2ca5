package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/shared"
)

// newMockConnectionRepository creates a GormConnectionRepository with a mocked SQL connection
func newMockConnectionRepository(t *testing.T) (*GormConnectionRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormConnectionRepository(gormDB), mock, mockDB
}

func connectionRows(id uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at",
		"nickname", "network", "client_id", "client_secret", "account_number",
		"sandbox", "enabled_services", "status", "last_tested_at", "last_error",
	}).AddRow(
		id, now, now,
		"Warehouse UPS", "ups", "client-id", "client-secret", "A1B2C3",
		false, "{03,02}", "connected", now, "",
	)
}

func TestGormConnectionRepository_FindByID(t *testing.T) {
	t.Run("finds existing connection", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "carrier_connections" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnRows(connectionRows(id))

		conn, err := repo.FindByID(context.Background(), id)

		assert.NoError(t, err)
		require.NotNil(t, conn)
		assert.Equal(t, id, conn.ID)
		assert.Equal(t, carrier.NetworkUPS, conn.Network)
		assert.Equal(t, []string{"03", "02"}, []string(conn.EnabledServices))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing connection", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "carrier_connections" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		conn, err := repo.FindByID(context.Background(), id)

		assert.Nil(t, conn)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormConnectionRepository_FindByNetwork(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "carrier_connections" WHERE network = \$1 ORDER BY created_at DESC`).
		WithArgs(carrier.NetworkUPS).
		WillReturnRows(connectionRows(id))

	conns, err := repo.FindByNetwork(context.Background(), carrier.NetworkUPS)

	assert.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, id, conns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormConnectionRepository_FindConnected(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "carrier_connections" WHERE status = \$1 ORDER BY created_at DESC`).
		WithArgs(carrier.ConnectionStatusConnected).
		WillReturnRows(connectionRows(id))

	conns, err := repo.FindConnected(context.Background())

	assert.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, carrier.ConnectionStatusConnected, conns[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormConnectionRepository_Delete(t *testing.T) {
	t.Run("deletes existing connection", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectExec(`DELETE FROM "carrier_connections" WHERE id = \$1`).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(context.Background(), id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when nothing deleted", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectExec(`DELETE FROM "carrier_connections" WHERE id = \$1`).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), id)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

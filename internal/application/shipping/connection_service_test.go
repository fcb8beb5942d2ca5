package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/shared"
)

func newTestConnectionService(repo carrier.ConnectionRepository) *ConnectionService {
	return NewConnectionService(repo, zap.NewNop())
}

func TestConnectionService_CreateConnection(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		repo.On("Save", mock.Anything, mock.AnythingOfType("*carrier.Connection")).Return(nil)

		service := newTestConnectionService(repo)

		conn, err := service.CreateConnection(context.Background(), &CreateConnectionRequest{
			Nickname:        "Warehouse UPS",
			Network:         "ups",
			ClientID:        "client-id",
			ClientSecret:    "client-secret",
			AccountNumber:   "A1B2C3",
			Sandbox:         true,
			EnabledServices: []string{"03", "02"},
		})
		require.NoError(t, err)

		assert.Equal(t, carrier.NetworkUPS, conn.Network)
		assert.Equal(t, carrier.ConnectionStatusDisconnected, conn.Status)
		assert.Equal(t, []string{"03", "02"}, []string(conn.EnabledServices))
		repo.AssertExpectations(t)
	})

	t.Run("unknown network", func(t *testing.T) {
		service := newTestConnectionService(new(MockConnectionRepository))

		_, err := service.CreateConnection(context.Background(), &CreateConnectionRequest{
			Nickname:      "Warehouse",
			Network:       "dhl",
			ClientID:      "id",
			ClientSecret:  "secret",
			AccountNumber: "acct",
		})
		assert.ErrorIs(t, err, carrier.ErrUnknownNetwork)
	})
}

func TestConnectionService_UpdateConnection(t *testing.T) {
	t.Run("credential change drops status to disconnected", func(t *testing.T) {
		conn, err := carrier.NewConnection("Warehouse", carrier.NetworkUPS, carrier.Credential{
			ClientID: "id", ClientSecret: "secret", AccountNumber: "acct",
		})
		require.NoError(t, err)
		conn.MarkConnected(conn.CreatedAt)

		repo := new(MockConnectionRepository)
		repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
		repo.On("Save", mock.Anything, conn).Return(nil)

		service := newTestConnectionService(repo)

		newSecret := "rotated-secret"
		updated, err := service.UpdateConnection(context.Background(), conn.ID, &UpdateConnectionRequest{
			ClientSecret: &newSecret,
		})
		require.NoError(t, err)

		assert.Equal(t, "rotated-secret", updated.ClientSecret)
		assert.Equal(t, carrier.ConnectionStatusDisconnected, updated.Status)
	})

	t.Run("nickname change keeps status", func(t *testing.T) {
		conn, err := carrier.NewConnection("Warehouse", carrier.NetworkFedEx, carrier.Credential{
			ClientID: "id", ClientSecret: "secret", AccountNumber: "acct",
		})
		require.NoError(t, err)
		conn.MarkConnected(conn.CreatedAt)

		repo := new(MockConnectionRepository)
		repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
		repo.On("Save", mock.Anything, conn).Return(nil)

		service := newTestConnectionService(repo)

		nickname := "Main FedEx"
		updated, err := service.UpdateConnection(context.Background(), conn.ID, &UpdateConnectionRequest{
			Nickname: &nickname,
		})
		require.NoError(t, err)

		assert.Equal(t, "Main FedEx", updated.Nickname)
		assert.Equal(t, carrier.ConnectionStatusConnected, updated.Status)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		id := uuid.New()
		repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		service := newTestConnectionService(repo)

		_, err := service.UpdateConnection(context.Background(), id, &UpdateConnectionRequest{})
		assert.ErrorIs(t, err, carrier.ErrConnectionNotFound)
	})

	t.Run("repository failure is not a missing connection", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		id := uuid.New()
		dbErr := errors.New("pq: connection refused")
		repo.On("FindByID", mock.Anything, id).Return(nil, dbErr)

		service := newTestConnectionService(repo)

		_, err := service.UpdateConnection(context.Background(), id, &UpdateConnectionRequest{})
		assert.NotErrorIs(t, err, carrier.ErrConnectionNotFound)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestConnectionService_ListConnections(t *testing.T) {
	t.Run("filter by network", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		repo.On("FindByNetwork", mock.Anything, carrier.NetworkUPS).Return([]carrier.Connection{}, nil)

		service := newTestConnectionService(repo)

		_, err := service.ListConnections(context.Background(), "ups")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("invalid network filter", func(t *testing.T) {
		service := newTestConnectionService(new(MockConnectionRepository))

		_, err := service.ListConnections(context.Background(), "dhl")
		assert.ErrorIs(t, err, carrier.ErrUnknownNetwork)
	})

	t.Run("no filter lists all", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		repo.On("FindAll", mock.Anything).Return([]carrier.Connection{}, nil)

		service := newTestConnectionService(repo)

		_, err := service.ListConnections(context.Background(), "")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestConnectionService_DeleteConnection(t *testing.T) {
	conn, err := carrier.NewConnection("Warehouse", carrier.NetworkUPS, carrier.Credential{
		ClientID: "id", ClientSecret: "secret", AccountNumber: "acct",
	})
	require.NoError(t, err)

	repo := new(MockConnectionRepository)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
	repo.On("Delete", mock.Anything, conn.ID).Return(nil)

	service := newTestConnectionService(repo)

	require.NoError(t, service.DeleteConnection(context.Background(), conn.ID))
	repo.AssertExpectations(t)
}

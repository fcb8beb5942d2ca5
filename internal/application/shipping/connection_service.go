package shipping

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/shared"
)

// ConnectionService manages stored carrier connections
type ConnectionService struct {
	connections carrier.ConnectionRepository
	logger      *zap.Logger
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(connections carrier.ConnectionRepository, logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		connections: connections,
		logger:      logger,
	}
}

// CreateConnection stores a new connection in the disconnected state. The
// caller is expected to run a connectivity test before the connection is
// offered for dispatch.
func (s *ConnectionService) CreateConnection(ctx context.Context, req *CreateConnectionRequest) (*carrier.Connection, error) {
	cred := carrier.Credential{
		ClientID:      req.ClientID,
		ClientSecret:  req.ClientSecret,
		AccountNumber: req.AccountNumber,
		Sandbox:       req.Sandbox,
	}
	conn, err := carrier.NewConnection(req.Nickname, carrier.Network(req.Network), cred)
	if err != nil {
		return nil, err
	}
	conn.EnabledServices = req.EnabledServices

	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("carrier connection created",
		zap.String("connection_id", conn.ID.String()),
		zap.String("network", string(conn.Network)),
		zap.Bool("sandbox", conn.Sandbox))
	return conn, nil
}

// findConnection loads by id, mapping only a genuine miss to
// ErrConnectionNotFound. Repository failures propagate unchanged.
func (s *ConnectionService) findConnection(ctx context.Context, id uuid.UUID) (*carrier.Connection, error) {
	conn, err := s.connections.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, carrier.ErrConnectionNotFound
		}
		return nil, err
	}
	return conn, nil
}

// UpdateConnection applies a partial update. Changing any credential field
// drops the connection back to disconnected until it is re-tested.
func (s *ConnectionService) UpdateConnection(ctx context.Context, id uuid.UUID, req *UpdateConnectionRequest) (*carrier.Connection, error) {
	conn, err := s.findConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	credentialChanged := false
	if req.Nickname != nil {
		conn.Nickname = *req.Nickname
	}
	if req.ClientID != nil {
		conn.ClientID = *req.ClientID
		credentialChanged = true
	}
	if req.ClientSecret != nil {
		conn.ClientSecret = *req.ClientSecret
		credentialChanged = true
	}
	if req.AccountNumber != nil {
		conn.AccountNumber = *req.AccountNumber
		credentialChanged = true
	}
	if req.Sandbox != nil {
		conn.Sandbox = *req.Sandbox
		credentialChanged = true
	}
	if req.EnabledServices != nil {
		conn.EnabledServices = *req.EnabledServices
	}

	if err := conn.Credential().Validate(); err != nil {
		return nil, err
	}
	if credentialChanged {
		conn.MarkDisconnected()
	}

	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// GetConnection retrieves a connection by id
func (s *ConnectionService) GetConnection(ctx context.Context, id uuid.UUID) (*carrier.Connection, error) {
	return s.findConnection(ctx, id)
}

// ListConnections lists stored connections, optionally filtered by network
func (s *ConnectionService) ListConnections(ctx context.Context, network string) ([]carrier.Connection, error) {
	if network != "" {
		n := carrier.Network(network)
		if !n.IsValid() {
			return nil, carrier.ErrUnknownNetwork
		}
		return s.connections.FindByNetwork(ctx, n)
	}
	return s.connections.FindAll(ctx)
}

// DeleteConnection removes a stored connection
func (s *ConnectionService) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	if _, err := s.findConnection(ctx, id); err != nil {
		return err
	}
	if err := s.connections.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("carrier connection deleted", zap.String("connection_id", id.String()))
	return nil
}

package carrier

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/shared"
)

// ConnectionStatus represents the lifecycle status of a stored connection.
// Only connected connections are offered during rate shopping.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// IsValid returns true if the status is valid
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusConnected, ConnectionStatusDisconnected, ConnectionStatusError:
		return true
	default:
		return false
	}
}

// Connection is a stored carrier account connection. Many connections may
// exist per network (multiple accounts); the credential's client identity
// decides token-cache sharing, not the connection id.
type Connection struct {
	shared.BaseEntity
	Nickname        string           `gorm:"type:varchar(100);not null"`
	Network         Network          `gorm:"type:varchar(10);not null;index"`
	ClientID        string           `gorm:"type:varchar(200);not null"`
	ClientSecret    string           `gorm:"type:varchar(200);not null"`
	AccountNumber   string           `gorm:"type:varchar(50);not null"`
	Sandbox         bool             `gorm:"not null;default:false"`
	EnabledServices pq.StringArray   `gorm:"type:text[]"` // vendor-native codes
	Status          ConnectionStatus `gorm:"type:varchar(20);not null;default:'disconnected'"`
	LastTestedAt    *time.Time
	LastError       string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Connection) TableName() string {
	return "carrier_connections"
}

// NewConnection creates a new connection in the disconnected state
func NewConnection(nickname string, network Network, cred Credential) (*Connection, error) {
	if nickname == "" {
		return nil, errors.New("carrier: connection nickname is required")
	}
	if !network.IsValid() {
		return nil, ErrUnknownNetwork
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return &Connection{
		BaseEntity:    shared.NewBaseEntity(),
		Nickname:      nickname,
		Network:       network,
		ClientID:      cred.ClientID,
		ClientSecret:  cred.ClientSecret,
		AccountNumber: cred.AccountNumber,
		Sandbox:       cred.Sandbox,
		Status:        ConnectionStatusDisconnected,
	}, nil
}

// Credential returns the connection's carrier credential
func (c *Connection) Credential() Credential {
	return Credential{
		ClientID:      c.ClientID,
		ClientSecret:  c.ClientSecret,
		AccountNumber: c.AccountNumber,
		Sandbox:       c.Sandbox,
	}
}

// IsUsable reports whether the connection should be offered for dispatch
func (c *Connection) IsUsable() bool {
	return c.Status == ConnectionStatusConnected
}

// ServiceEnabled reports whether a vendor-native service code is enabled.
// An empty list means all of the network's services are enabled.
func (c *Connection) ServiceEnabled(directCode string) bool {
	if len(c.EnabledServices) == 0 {
		return true
	}
	for _, code := range c.EnabledServices {
		if code == directCode {
			return true
		}
	}
	return false
}

// EnabledServiceCodes returns the vendor-native codes offered by this
// connection, falling back to the full network table when none are pinned
func (c *Connection) EnabledServiceCodes() []string {
	if len(c.EnabledServices) > 0 {
		return c.EnabledServices
	}
	entries := ServicesForNetwork(c.Network)
	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		codes = append(codes, entry.DirectCode)
	}
	return codes
}

// MarkConnected records a successful connectivity test
func (c *Connection) MarkConnected(testedAt time.Time) {
	c.Status = ConnectionStatusConnected
	c.LastTestedAt = &testedAt
	c.LastError = ""
	c.UpdatedAt = testedAt
}

// MarkError records a failed connectivity test
func (c *Connection) MarkError(testedAt time.Time, message string) {
	c.Status = ConnectionStatusError
	c.LastTestedAt = &testedAt
	c.LastError = message
	c.UpdatedAt = testedAt
}

// MarkDisconnected takes the connection out of service
func (c *Connection) MarkDisconnected() {
	c.Status = ConnectionStatusDisconnected
	c.LastError = ""
	c.Touch()
}

// ConnectionRepository is the persistence port for stored connections
type ConnectionRepository interface {
	Save(ctx context.Context, conn *Connection) error
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)
	FindAll(ctx context.Context) ([]Connection, error)
	FindByNetwork(ctx context.Context, network Network) ([]Connection, error)
	FindConnected(ctx context.Context) ([]Connection, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/shared"
)

// GormConnectionRepository implements carrier.ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// Save creates or updates a carrier connection
func (r *GormConnectionRepository) Save(ctx context.Context, conn *carrier.Connection) error {
	return r.db.WithContext(ctx).Save(conn).Error
}

// FindByID finds a connection by its ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*carrier.Connection, error) {
	var conn carrier.Connection
	if err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// FindAll lists every stored connection, newest first
func (r *GormConnectionRepository) FindAll(ctx context.Context) ([]carrier.Connection, error) {
	var conns []carrier.Connection
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// FindByNetwork lists connections for one carrier network
func (r *GormConnectionRepository) FindByNetwork(ctx context.Context, network carrier.Network) ([]carrier.Connection, error) {
	var conns []carrier.Connection
	if err := r.db.WithContext(ctx).
		Where("network = ?", network).
		Order("created_at DESC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// FindConnected lists connections that passed their last connectivity test.
// Only these are offered during rate shopping.
func (r *GormConnectionRepository) FindConnected(ctx context.Context) ([]carrier.Connection, error) {
	var conns []carrier.Connection
	if err := r.db.WithContext(ctx).
		Where("status = ?", carrier.ConnectionStatusConnected).
		Order("created_at DESC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// Delete removes a stored connection
func (r *GormConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&carrier.Connection{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormConnectionRepository implements carrier.ConnectionRepository
var _ carrier.ConnectionRepository = (*GormConnectionRepository)(nil)

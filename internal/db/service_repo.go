package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// ServiceRepository reads the service settings that gate dispatch.
type ServiceRepository struct {
	db DBTX
}

// NewServiceRepository creates a ServiceRepository.
func NewServiceRepository(db DBTX) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// GetByID returns the service, or ErrCodeNotFoundService.
func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*types.Service, error) {
	var (
		s       types.Service
		allowed *string
		channel *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, active, restricted, allowed_broadcast_provider, broadcast_channel
		 FROM services
		 WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Active, &s.Restricted, &allowed, &channel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundService, "service not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve service", err)
	}
	s.AllowedBroadcastProvider = derefString(allowed)
	if s.AllowedBroadcastProvider == "" {
		s.AllowedBroadcastProvider = types.AllowedProviderAll
	}
	s.BroadcastChannel = types.BroadcastChannel(derefString(channel))
	if s.BroadcastChannel == "" {
		s.BroadcastChannel = types.ChannelTest
	}
	return &s, nil
}

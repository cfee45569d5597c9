package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

func serviceScan(allowed, channel *string) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = "svc-1"
		*dest[1].(*string) = "Environment Agency"
		*dest[2].(*bool) = true
		*dest[3].(*bool) = false
		*dest[4].(**string) = allowed
		*dest[5].(**string) = channel
		return nil
	}
}

func TestServiceRepository_GetByID(t *testing.T) {
	db := new(mockDBTX)
	repo := NewServiceRepository(db)

	o2, severe := "o2", "severe"
	db.On("QueryRow", mock.Anything, sqlContains("FROM services"), []any{"svc-1"}).
		Return(&mockRow{scanFn: serviceScan(&o2, &severe)})

	svc, err := repo.GetByID(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, "Environment Agency", svc.Name)
	assert.True(t, svc.Active)
	assert.Equal(t, "o2", svc.AllowedBroadcastProvider)
	assert.Equal(t, types.ChannelSevere, svc.BroadcastChannel)
}

func TestServiceRepository_GetByID_Defaults(t *testing.T) {
	db := new(mockDBTX)
	repo := NewServiceRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFn: serviceScan(nil, nil)})

	svc, err := repo.GetByID(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, types.AllowedProviderAll, svc.AllowedBroadcastProvider)
	assert.Equal(t, types.ChannelTest, svc.BroadcastChannel)
}

func TestServiceRepository_GetByID_Errors(t *testing.T) {
	tests := []struct {
		name    string
		scanErr error
		want    types.ErrorCode
	}{
		{"not found", pgx.ErrNoRows, types.ErrCodeNotFoundService},
		{"database", errors.New("connection refused"), types.ErrCodeInternalDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(&mockRow{scanErr: tt.scanErr})

			_, err := NewServiceRepository(db).GetByID(context.Background(), "svc-1")
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.want, appErr.Code)
		})
	}
}

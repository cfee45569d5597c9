package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

func providerMessageScan(id, eventID, provider, status string, number *int64) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*string) = eventID
		*dest[2].(*string) = provider
		*dest[3].(*string) = status
		*dest[4].(**int64) = number
		*dest[5].(*time.Time) = time.Date(2020, 8, 1, 12, 0, 0, 0, time.UTC)
		return nil
	}
}

func sqlContains(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

func TestProviderMessageRepository_GetForEvent_Absent(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProviderMessageRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, []any{"event-1", "ee"}).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	rec, err := repo.GetForEvent(context.Background(), "event-1", types.ProviderEE)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestProviderMessageRepository_GetForEvent_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProviderMessageRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.GetForEvent(context.Background(), "event-1", types.ProviderEE)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestProviderMessageRepository_EnsureDelivery_Inserts(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProviderMessageRepository(db)
	n := int64(7)

	db.On("QueryRow", mock.Anything, sqlContains("ON CONFLICT (broadcast_event_id, provider) DO NOTHING"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 5 && args[1] == "event-1" && args[2] == "vodafone" && args[3] == "sending" && args[4] == true
	})).Return(&mockRow{scanFn: providerMessageScan("pm-1", "event-1", "vodafone", "sending", &n)})

	rec, created, err := repo.EnsureDelivery(context.Background(), "event-1", types.ProviderVodafone, true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, types.DeliveryStatusSending, rec.Status)
	require.NotNil(t, rec.MessageNumber)
	assert.Equal(t, int64(7), *rec.MessageNumber)
	db.AssertExpectations(t)
}

func TestProviderMessageRepository_EnsureDelivery_ConflictRereads(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProviderMessageRepository(db)

	db.On("QueryRow", mock.Anything, sqlContains("INSERT INTO broadcast_provider_messages"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows}).Once()
	db.On("QueryRow", mock.Anything, sqlContains("SELECT"), []any{"event-1", "ee"}).
		Return(&mockRow{scanFn: providerMessageScan("pm-existing", "event-1", "ee", "sending", nil)}).Once()

	rec, created, err := repo.EnsureDelivery(context.Background(), "event-1", types.ProviderEE, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "pm-existing", rec.ID)
	db.AssertExpectations(t)
}

func TestProviderMessageRepository_UpdateStatus_NeverLeavesAck(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProviderMessageRepository(db)

	db.On("Exec", mock.Anything, sqlContains("status <> $3"), []any{"pm-1", "returned-ack", "returned-ack"}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, repo.UpdateStatus(context.Background(), "pm-1", types.DeliveryStatusAck))
	db.AssertExpectations(t)
}

func TestProviderMessageRepository_NextMessageNumber(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProviderMessageRepository(db)

	db.On("QueryRow", mock.Anything, sqlContains("nextval('broadcast_provider_message_number_seq')"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 42
			return nil
		}})

	n, err := repo.NextMessageNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

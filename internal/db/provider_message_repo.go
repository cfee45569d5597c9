package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// ProviderMessageRepository provides data access for
// broadcast_provider_messages, one row per (event, provider).
type ProviderMessageRepository struct {
	db DBTX
}

// NewProviderMessageRepository creates a ProviderMessageRepository.
func NewProviderMessageRepository(db DBTX) *ProviderMessageRepository {
	return &ProviderMessageRepository{db: db}
}

const providerMessageColumns = `id, broadcast_event_id, provider, status, message_number, created_at, updated_at`

func scanProviderMessage(row pgx.Row) (*types.ProviderDeliveryRecord, error) {
	var (
		rec      types.ProviderDeliveryRecord
		provider string
		status   string
	)
	if err := row.Scan(&rec.ID, &rec.BroadcastEventID, &provider, &status,
		&rec.MessageNumber, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Provider = types.Provider(provider)
	rec.Status = types.DeliveryStatus(status)
	return &rec, nil
}

// GetForEvent returns the record for (eventID, provider), or nil with no
// error when none exists yet.
func (r *ProviderMessageRepository) GetForEvent(ctx context.Context, eventID string, provider types.Provider) (*types.ProviderDeliveryRecord, error) {
	rec, err := scanProviderMessage(r.db.QueryRow(ctx,
		`SELECT `+providerMessageColumns+`
		 FROM broadcast_provider_messages
		 WHERE broadcast_event_id = $1 AND provider = $2`,
		eventID, string(provider),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve provider message", err)
	}
	return rec, nil
}

// EnsureDelivery returns the record for (eventID, provider), inserting it in
// status sending when absent. Concurrent callers race on the unique
// constraint; the loser re-reads the winner's row. When sequenced is true a
// message number is drawn from the shared provider sequence on insert.
func (r *ProviderMessageRepository) EnsureDelivery(ctx context.Context, eventID string, provider types.Provider, sequenced bool) (*types.ProviderDeliveryRecord, bool, error) {
	rec, err := scanProviderMessage(r.db.QueryRow(ctx,
		`INSERT INTO broadcast_provider_messages
		   (id, broadcast_event_id, provider, status, message_number, created_at)
		 VALUES ($1, $2, $3, $4,
		   CASE WHEN $5::boolean THEN nextval('broadcast_provider_message_number_seq') END,
		   NOW())
		 ON CONFLICT (broadcast_event_id, provider) DO NOTHING
		 RETURNING `+providerMessageColumns,
		uuid.NewString(), eventID, string(provider), string(types.DeliveryStatusSending), sequenced,
	))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, types.NewAppError(types.ErrCodeInternalDB, "failed to create provider message", err)
	}

	existing, err := r.GetForEvent(ctx, eventID, provider)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, types.NewAppError(types.ErrCodeInternalDB, "provider message vanished after insert conflict", nil)
	}
	return existing, false, nil
}

// UpdateStatus sets the record's status. A record already acknowledged is
// never moved off returned-ack.
func (r *ProviderMessageRepository) UpdateStatus(ctx context.Context, id string, status types.DeliveryStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE broadcast_provider_messages
		 SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status <> $3`,
		id, string(status), string(types.DeliveryStatusAck),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update provider message status", err)
	}
	return nil
}

// NextMessageNumber draws from the durable provider message number sequence.
// Link tests and alerts share it.
func (r *ProviderMessageRepository) NextMessageNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('broadcast_provider_message_number_seq')`).Scan(&n); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to draw message number", err)
	}
	return n, nil
}

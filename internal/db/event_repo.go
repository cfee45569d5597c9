package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// EventRepository provides data access for broadcast_events. Rows are
// insert-only; nothing in this package updates a transmitted_* column.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates an EventRepository.
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, service_id, broadcast_message_id, message_type, sent_at,
	transmitted_content, transmitted_areas, transmitted_sender,
	transmitted_starts_at, transmitted_finishes_at`

func scanEvent(row pgx.Row) (*types.AlertEvent, error) {
	var (
		e       types.AlertEvent
		msgType string
	)
	err := row.Scan(
		&e.ID,
		&e.ServiceID,
		&e.BroadcastMessageID,
		&msgType,
		&e.SentAt,
		&e.TransmittedContent,
		&e.TransmittedAreas,
		&e.TransmittedSender,
		&e.TransmittedStartsAt,
		&e.TransmittedFinishesAt,
	)
	if err != nil {
		return nil, err
	}
	e.MessageType = types.MessageType(msgType)
	return &e, nil
}

// Create inserts the event snapshot. The caller sets the ID.
func (r *EventRepository) Create(ctx context.Context, e *types.AlertEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO broadcast_events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID,
		e.ServiceID,
		e.BroadcastMessageID,
		string(e.MessageType),
		e.SentAt,
		e.TransmittedContent,
		e.TransmittedAreas,
		e.TransmittedSender,
		e.TransmittedStartsAt,
		e.TransmittedFinishesAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictConcurrent, "broadcast event already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create broadcast event", err)
	}
	return nil
}

// GetByID retrieves an event by ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*types.AlertEvent, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM broadcast_events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBroadcastEvent, "broadcast event not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve broadcast event", err)
	}
	return e, nil
}

// ListForBroadcast returns every event of a broadcast ordered by sent_at,
// oldest first. Ties are broken by id to keep the order stable.
func (r *EventRepository) ListForBroadcast(ctx context.Context, broadcastID string) ([]*types.AlertEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM broadcast_events
		 WHERE broadcast_message_id = $1
		 ORDER BY sent_at ASC, id ASC`,
		broadcastID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list broadcast events", err)
	}
	defer rows.Close()

	var out []*types.AlertEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan broadcast event", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate broadcast events", err)
	}
	return out, nil
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// BroadcastRepository provides data access for the broadcast_messages table.
type BroadcastRepository struct {
	db DBTX
}

// NewBroadcastRepository creates a BroadcastRepository.
func NewBroadcastRepository(db DBTX) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

const broadcastColumns = `id, service_id, template_id, content, areas, status, starts_at,
	finishes_at, duration_seconds, stubbed, created_at, updated_at, created_by_id,
	submitted_at, submitted_by_id, approved_at, approved_by_id, cancelled_at,
	cancelled_by_id, cancelled_by_api_key_id, rejected_at, rejected_by_id, rejection_reason`

func scanBroadcast(row pgx.Row) (*types.Alert, error) {
	var (
		a         types.Alert
		status    string
		duration  *int64
		rejection *string
	)
	err := row.Scan(
		&a.ID,
		&a.ServiceID,
		&a.TemplateID,
		&a.Content,
		&a.Areas,
		&status,
		&a.StartsAt,
		&a.FinishesAt,
		&duration,
		&a.Stubbed,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CreatedBy,
		&a.SubmittedAt,
		&a.SubmittedBy,
		&a.ApprovedAt,
		&a.ApprovedBy,
		&a.CancelledAt,
		&a.CancelledBy,
		&a.CancelledByAPIKey,
		&a.RejectedAt,
		&a.RejectedBy,
		&rejection,
	)
	if err != nil {
		return nil, err
	}
	a.Status = types.BroadcastStatus(status)
	a.Duration = secondsDuration(duration)
	a.RejectionReason = derefString(rejection)
	return &a, nil
}

// GetByID retrieves a broadcast by ID.
func (r *BroadcastRepository) GetByID(ctx context.Context, id string) (*types.Alert, error) {
	return r.get(ctx, `SELECT `+broadcastColumns+` FROM broadcast_messages WHERE id = $1`, id)
}

// GetForService retrieves a broadcast scoped to its owning service, so one
// service cannot address another's alerts.
func (r *BroadcastRepository) GetForService(ctx context.Context, serviceID, id string) (*types.Alert, error) {
	return r.get(ctx,
		`SELECT `+broadcastColumns+` FROM broadcast_messages WHERE id = $1 AND service_id = $2`,
		id, serviceID,
	)
}

func (r *BroadcastRepository) get(ctx context.Context, sql string, args ...any) (*types.Alert, error) {
	a, err := scanBroadcast(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBroadcast, "broadcast not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve broadcast", err)
	}
	return a, nil
}

// UpdateStatus persists the status, broadcast window and audit stamps of a. The write only
// applies while the row is still in expected; otherwise another transition
// won the race and ErrCodeConflictConcurrent is returned.
func (r *BroadcastRepository) UpdateStatus(ctx context.Context, a *types.Alert, expected types.BroadcastStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE broadcast_messages SET
			status = $3,
			starts_at = $15, finishes_at = $16,
			submitted_at = $4, submitted_by_id = $5,
			approved_at = $6, approved_by_id = $7,
			cancelled_at = $8, cancelled_by_id = $9, cancelled_by_api_key_id = $10,
			rejected_at = $11, rejected_by_id = $12, rejection_reason = $13,
			updated_at = $14
		 WHERE id = $1 AND status = $2`,
		a.ID,
		string(expected),
		string(a.Status),
		a.SubmittedAt, a.SubmittedBy,
		a.ApprovedAt, a.ApprovedBy,
		a.CancelledAt, a.CancelledBy, a.CancelledByAPIKey,
		a.RejectedAt, a.RejectedBy, nilIfEmpty(a.RejectionReason),
		a.UpdatedAt,
		a.StartsAt, a.FinishesAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update broadcast", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeConflictConcurrent,
			"broadcast status changed concurrently", nil,
			map[string]any{"broadcast_id": a.ID, "expected_status": expected})
	}
	return nil
}

// ListExpiredBroadcasting returns broadcasting alerts whose finish time is at
// or before now, oldest first.
func (r *BroadcastRepository) ListExpiredBroadcasting(ctx context.Context, now time.Time, limit int) ([]*types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+broadcastColumns+`
		 FROM broadcast_messages
		 WHERE status = $1 AND finishes_at <= $2
		 ORDER BY finishes_at ASC
		 LIMIT $3`,
		string(types.StatusBroadcasting), now, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list expired broadcasts", err)
	}
	defer rows.Close()

	var out []*types.Alert
	for rows.Next() {
		a, err := scanBroadcast(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan broadcast", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate broadcasts", err)
	}
	return out, nil
}

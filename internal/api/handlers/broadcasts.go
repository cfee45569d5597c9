// Package handlers contains the HTTP handlers for the broadcast API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/core"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// AlertReader loads alerts scoped to their owning service.
type AlertReader interface {
	GetForService(ctx context.Context, serviceID, id string) (*types.Alert, error)
}

// StatusChanger applies lifecycle transitions. Implemented by
// broadcast.Lifecycle.
type StatusChanger interface {
	Transition(ctx context.Context, alert *types.Alert, next types.BroadcastStatus, actor types.Actor, reason string) error
	OnStatusChanged(ctx context.Context, alertID string, newStatus types.BroadcastStatus) (*types.AlertEvent, error)
}

// UpdateStatusRequest is the body of POST .../broadcasts/{broadcast_id}/status.
type UpdateStatusRequest struct {
	Status          types.BroadcastStatus `json:"status" validate:"required,broadcast_status"`
	Actor           types.Actor           `json:"actor"`
	RejectionReason string                `json:"rejection_reason,omitempty" validate:"max=1000"`
}

// StatusChangedRequest is the body of POST /broadcasts/{broadcast_id}/status-changed.
// Status is the status the caller persisted.
type StatusChangedRequest struct {
	Status types.BroadcastStatus `json:"status" validate:"required,broadcast_status"`
}

// StatusChangedResponse reports the event emitted by a status-changed
// notification. EventID is empty when the alert's status emits nothing.
type StatusChangedResponse struct {
	BroadcastMessageID string            `json:"broadcast_message_id"`
	EventID            string            `json:"event_id,omitempty"`
	MessageType        types.MessageType `json:"message_type,omitempty"`
}

// BroadcastHandler serves the broadcast status endpoints.
type BroadcastHandler struct {
	alerts    AlertReader
	lifecycle StatusChanger
	validator *core.Validator
	logger    *slog.Logger
}

func NewBroadcastHandler(alerts AlertReader, lifecycle StatusChanger, v *core.Validator, logger *slog.Logger) *BroadcastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BroadcastHandler{alerts: alerts, lifecycle: lifecycle, validator: v, logger: logger}
}

// RegisterRoutes mounts the handler under /v1.
func (h *BroadcastHandler) RegisterRoutes(r chi.Router) {
	r.Post("/services/{service_id}/broadcasts/{broadcast_id}/status", h.UpdateStatus)
	r.Post("/broadcasts/{broadcast_id}/status-changed", h.StatusChanged)
}

// UpdateStatus handles POST /v1/services/{service_id}/broadcasts/{broadcast_id}/status.
func (h *BroadcastHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "service_id")
	broadcastID := chi.URLParam(r, "broadcast_id")

	var req UpdateStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Actor.Type == "" {
		req.Actor.Type = types.ActorTypeUser
	}

	alert, err := h.alerts.GetForService(r.Context(), serviceID, broadcastID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.lifecycle.Transition(r.Context(), alert, req.Status, req.Actor, req.RejectionReason); err != nil {
		h.logger.WarnContext(r.Context(), "status transition failed",
			"broadcast_message_id", broadcastID,
			"service_id", serviceID,
			"to", string(req.Status),
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, alert)
}

// StatusChanged handles POST /v1/broadcasts/{broadcast_id}/status-changed,
// the trigger used when the status was persisted by another process. Retried
// calls return the event emitted by the first one.
func (h *BroadcastHandler) StatusChanged(w http.ResponseWriter, r *http.Request) {
	broadcastID := chi.URLParam(r, "broadcast_id")

	var req StatusChangedRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	event, err := h.lifecycle.OnStatusChanged(r.Context(), broadcastID, req.Status)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := StatusChangedResponse{BroadcastMessageID: broadcastID}
	if event == nil {
		core.JSON(w, r, http.StatusOK, resp)
		return
	}
	resp.EventID = event.ID
	resp.MessageType = event.MessageType
	core.JSON(w, r, http.StatusAccepted, resp)
}

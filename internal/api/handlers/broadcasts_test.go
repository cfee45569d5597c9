package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/core"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

type mockAlertReader struct {
	getFn func(ctx context.Context, serviceID, id string) (*types.Alert, error)
}

func (m *mockAlertReader) GetForService(ctx context.Context, serviceID, id string) (*types.Alert, error) {
	if m.getFn != nil {
		return m.getFn(ctx, serviceID, id)
	}
	return &types.Alert{ID: id, ServiceID: serviceID, Status: types.StatusPendingApproval}, nil
}

type transitionCall struct {
	next   types.BroadcastStatus
	actor  types.Actor
	reason string
}

type mockStatusChanger struct {
	transitionErr error
	calls         []transitionCall
	changedFn     func(ctx context.Context, alertID string, status types.BroadcastStatus) (*types.AlertEvent, error)
}

func (m *mockStatusChanger) Transition(_ context.Context, alert *types.Alert, next types.BroadcastStatus, actor types.Actor, reason string) error {
	m.calls = append(m.calls, transitionCall{next, actor, reason})
	if m.transitionErr != nil {
		return m.transitionErr
	}
	alert.Status = next
	return nil
}

func (m *mockStatusChanger) OnStatusChanged(ctx context.Context, alertID string, status types.BroadcastStatus) (*types.AlertEvent, error) {
	if m.changedFn != nil {
		return m.changedFn(ctx, alertID, status)
	}
	return nil, nil
}

func newTestRouter(alerts AlertReader, lifecycle StatusChanger) http.Handler {
	h := NewBroadcastHandler(alerts, lifecycle, core.NewValidator(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, &buf))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

const statusPath = "/v1/services/svc-1/broadcasts/alert-1/status"

func TestUpdateStatus_Approve(t *testing.T) {
	var gotService, gotID string
	alerts := &mockAlertReader{getFn: func(_ context.Context, serviceID, id string) (*types.Alert, error) {
		gotService, gotID = serviceID, id
		return &types.Alert{ID: id, ServiceID: serviceID, Status: types.StatusPendingApproval}, nil
	}}
	lifecycle := &mockStatusChanger{}

	rec := postJSON(t, newTestRouter(alerts, lifecycle), statusPath, map[string]any{
		"status": "broadcasting",
		"actor":  map[string]string{"id": "user-b"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "svc-1", gotService)
	assert.Equal(t, "alert-1", gotID)
	require.Len(t, lifecycle.calls, 1)
	assert.Equal(t, types.StatusBroadcasting, lifecycle.calls[0].next)
	assert.Equal(t, types.Actor{ID: "user-b", Type: types.ActorTypeUser}, lifecycle.calls[0].actor)

	var alert types.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alert))
	assert.Equal(t, types.StatusBroadcasting, alert.Status)
}

func TestUpdateStatus_RejectPassesReason(t *testing.T) {
	lifecycle := &mockStatusChanger{}
	rec := postJSON(t, newTestRouter(&mockAlertReader{}, lifecycle), statusPath, map[string]any{
		"status":           "rejected",
		"actor":            map[string]string{"id": "user-b", "type": "user"},
		"rejection_reason": "wrong area",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, lifecycle.calls, 1)
	assert.Equal(t, "wrong area", lifecycle.calls[0].reason)
}

func TestUpdateStatus_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode types.ErrorCode
	}{
		{"unknown status", map[string]any{"status": "live", "actor": map[string]string{"id": "u"}}, types.ErrCodeValidationInvalidStatus},
		{"missing status", map[string]any{"actor": map[string]string{"id": "u"}}, types.ErrCodeValidationMissingField},
		{"missing actor", map[string]any{"status": "cancelled"}, types.ErrCodeValidationMissingField},
		{"bad actor type", map[string]any{"status": "cancelled", "actor": map[string]string{"id": "u", "type": "robot"}}, types.ErrCodeValidationInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle := &mockStatusChanger{}
			rec := postJSON(t, newTestRouter(&mockAlertReader{}, lifecycle), statusPath, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.wantCode), errorCode(t, rec))
			assert.Empty(t, lifecycle.calls)
		})
	}
}

func TestUpdateStatus_MalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&mockAlertReader{}, &mockStatusChanger{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, statusPath, bytes.NewBufferString(`{"status":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_invalid_json", errorCode(t, rec))
}

func TestUpdateStatus_AlertNotFound(t *testing.T) {
	alerts := &mockAlertReader{getFn: func(context.Context, string, string) (*types.Alert, error) {
		return nil, types.NewAppError(types.ErrCodeNotFoundBroadcast, "broadcast message not found", nil)
	}}
	rec := postJSON(t, newTestRouter(alerts, &mockStatusChanger{}), statusPath, map[string]any{
		"status": "cancelled", "actor": map[string]string{"id": "u"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus_TransitionErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid transition", types.NewAppError(types.ErrCodeValidationInvalidTransition, "cannot move", nil), http.StatusBadRequest},
		{"self approval", types.NewAppError(types.ErrCodeValidationSelfApproval, "own broadcast", nil), http.StatusBadRequest},
		{"concurrent update", types.NewAppError(types.ErrCodeConflictConcurrent, "status changed", nil), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, newTestRouter(&mockAlertReader{}, &mockStatusChanger{transitionErr: tt.err}), statusPath,
				map[string]any{"status": "broadcasting", "actor": map[string]string{"id": "u"}})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestStatusChanged(t *testing.T) {
	cancelled := StatusChangedRequest{Status: types.StatusCancelled}

	t.Run("event emitted", func(t *testing.T) {
		var gotStatus types.BroadcastStatus
		lifecycle := &mockStatusChanger{changedFn: func(_ context.Context, id string, status types.BroadcastStatus) (*types.AlertEvent, error) {
			gotStatus = status
			return &types.AlertEvent{ID: "evt-1", BroadcastMessageID: id, MessageType: types.MessageTypeCancel}, nil
		}}
		rec := postJSON(t, newTestRouter(&mockAlertReader{}, lifecycle), "/v1/broadcasts/alert-1/status-changed", cancelled)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, types.StatusCancelled, gotStatus)
		var resp StatusChangedResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatusChangedResponse{BroadcastMessageID: "alert-1", EventID: "evt-1", MessageType: types.MessageTypeCancel}, resp)
	})

	t.Run("nothing to emit", func(t *testing.T) {
		rec := postJSON(t, newTestRouter(&mockAlertReader{}, &mockStatusChanger{}), "/v1/broadcasts/alert-1/status-changed", cancelled)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "event_id")
	})

	t.Run("status required", func(t *testing.T) {
		lifecycle := &mockStatusChanger{changedFn: func(context.Context, string, types.BroadcastStatus) (*types.AlertEvent, error) {
			t.Fatal("lifecycle must not be called")
			return nil, nil
		}}
		router := newTestRouter(&mockAlertReader{}, lifecycle)

		rec := postJSON(t, router, "/v1/broadcasts/alert-1/status-changed", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = postJSON(t, router, "/v1/broadcasts/alert-1/status-changed", map[string]string{"status": "paused"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("alert missing", func(t *testing.T) {
		lifecycle := &mockStatusChanger{changedFn: func(context.Context, string, types.BroadcastStatus) (*types.AlertEvent, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBroadcast, "not found", nil)
		}}
		rec := postJSON(t, newTestRouter(&mockAlertReader{}, lifecycle), "/v1/broadcasts/alert-1/status-changed", cancelled)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

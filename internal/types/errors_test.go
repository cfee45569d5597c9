package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationNoAreas,
		Message: "broadcast has no areas",
	}

	expected := "validation_no_areas: broadcast has no areas"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrapAndAs(t *testing.T) {
	underlying := errors.New("connection reset")
	appErr := NewAppError(ErrCodeInternalDB, "failed to load event", underlying)
	wrapped := fmt.Errorf("dispatch: %w", appErr)

	if !errors.Is(wrapped, underlying) {
		t.Error("errors.Is should find the underlying error through AppError")
	}

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should extract *AppError from the chain")
	}
	if target.Code != ErrCodeInternalDB {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeInternalDB)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidTransition, http.StatusBadRequest},
		{ErrCodeValidationSelfApproval, http.StatusBadRequest},
		{ErrCodeNotFoundBroadcast, http.StatusNotFound},
		{ErrCodeConflictConcurrent, http.StatusConflict},
		{ErrCodeIntegrityPriorEventIncomplete, http.StatusUnprocessableEntity},
		{ErrCodeUpstreamCBC, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusServiceUnavailable},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorCodeIsIntegrity(t *testing.T) {
	integrity := []ErrorCode{
		ErrCodeIntegrityUnauthorised,
		ErrCodeIntegrityAlreadyResolved,
		ErrCodeIntegrityExpired,
		ErrCodeIntegrityPriorEventNotStarted,
		ErrCodeIntegrityPriorEventIncomplete,
	}
	for _, c := range integrity {
		if !c.IsIntegrity() {
			t.Errorf("%s should be an integrity code", c)
		}
	}
	if ErrCodeUpstreamCBC.IsIntegrity() {
		t.Error("upstream codes are not integrity codes")
	}
}

func TestAppErrorWithDetailsDoesNotMutate(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeIntegrityExpired, "expired", nil, map[string]any{"provider": "ee"})
	merged := orig.WithDetails(map[string]any{"event_id": "e1"})

	if len(orig.Details) != 1 {
		t.Errorf("original details mutated: %v", orig.Details)
	}
	if merged.Details["provider"] != "ee" || merged.Details["event_id"] != "e1" {
		t.Errorf("merged details = %v", merged.Details)
	}
}

package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Basic error",
			code:      CodeInvalidInput,
			message:   "Invalid dropout rate",
			details:   "dropout_rate must be within [0, 100]",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      CodeDatabaseError,
			message:   "Database connection failed",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"invalid rate", fmt.Errorf("recruitment: %w", ErrInvalidRate), CodeInvalidInput, http.StatusBadRequest},
		{"infeasible", ErrInfeasible, CodeInvalidInput, http.StatusBadRequest},
		{"validation error", NewValidationError("cv_intra", "must be positive", -1.0), CodeInvalidInput, http.StatusBadRequest},
		{"project not found", fmt.Errorf("loading: %w", ErrProjectNotFound), CodeNotFound, http.StatusNotFound},
		{"missing critical parameter", ErrCriticalParameterMissing, CodePreconditionFailed, http.StatusUnprocessableEntity},
		{"design not generated", ErrDesignNotYetGenerated, CodePreconditionFailed, http.StatusUnprocessableEntity},
		{"no articles", ErrNoArticlesFound, CodeExternalAPI, http.StatusBadGateway},
		{"api error passthrough", NewAPIError(CodeDatabaseError, "boom", "", ""), CodeDatabaseError, http.StatusInternalServerError},
		{"unknown", errors.New("unexpected"), CodeInternalServer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := ErrorCode(tt.err)
			if code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, code)
			}
			if status := HTTPStatus(code); status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("dosage", "must not be empty", "")

	expected := "validation error for field 'dosage': must not be empty"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if !errors.Is(ErrProjectNotFound, ErrNotFound) {
		t.Error("ErrProjectNotFound should match ErrNotFound")
	}
}

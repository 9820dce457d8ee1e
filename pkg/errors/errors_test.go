package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeConfig, "test error")
	expected := "CONFIG_INVALID: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodePublish, "wrapped error")

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is should find the cause")
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeParse, "test error")
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestFetchErrors_Kinds(t *testing.T) {
	transport := NewFetchTransportError(errors.New("connection refused"), "http://ice:8000/admin/listmounts")
	if transport.Kind != FetchKindTransport {
		t.Errorf("Kind = %v, want %v", transport.Kind, FetchKindTransport)
	}
	if transport.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", transport.StatusCode)
	}

	status := NewFetchStatusError(http.StatusUnauthorized, "http://ice:8000/admin/listmounts")
	if status.Kind != FetchKindStatus {
		t.Errorf("Kind = %v, want %v", status.Kind, FetchKindStatus)
	}
	if status.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", status.StatusCode)
	}
	if !IsFetchError(transport) || !IsFetchError(status) {
		t.Error("both kinds should be fetch errors")
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewParseError(errors.New("eof"), "bad document")

	if result := GetAppError(appErr); result != appErr {
		t.Errorf("GetAppError() = %v, want %v", result, appErr)
	}

	wrapped := fmt.Errorf("cycle failed: %w", appErr)
	if result := GetAppError(wrapped); result != appErr {
		t.Error("GetAppError() should extract AppError from wrapped error")
	}

	if result := GetAppError(errors.New("regular error")); result != nil {
		t.Error("GetAppError() should return nil for regular error")
	}
}

func TestHasCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"parse", NewParseError(nil, "x"), IsParseError},
		{"map", NewMapError(nil, "x"), IsMapError},
		{"publish", NewPublishError(errors.New("down"), "x"), IsPublishError},
		{"config", NewConfigError("x"), IsConfigError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.is(fmt.Errorf("wrap: %w", tc.err)) {
				t.Errorf("expected %s error to be detected through wrapping", tc.name)
			}
			if IsFetchError(tc.err) {
				t.Errorf("%s error must not be a fetch error", tc.name)
			}
		})
	}
	if IsAppError(errors.New("plain")) {
		t.Error("IsAppError() should return false for regular error")
	}
}

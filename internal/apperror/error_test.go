package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestDefaultStatusCode(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeDescriptorNotFound, http.StatusNotFound},
		{CodeChainNotConfigured, http.StatusNotFound},
		{CodeInvalidState, http.StatusConflict},
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeStorageUnsupported, http.StatusBadRequest},
		{CodeRequiredField, http.StatusBadRequest},
		{CodeVerificationFailed, http.StatusUnprocessableEntity},
		{CodeChainConnectionFailed, http.StatusServiceUnavailable},
		{CodeChainPoolExhausted, http.StatusServiceUnavailable},
		{CodeServiceTimeout, http.StatusServiceUnavailable},
		{CodeCircuitOpen, http.StatusServiceUnavailable},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeInternalError, http.StatusInternalServerError},
		{CodeStoreFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code).StatusCode; got != tt.want {
				t.Errorf("New(%s).StatusCode = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestNew_Options(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := New(CodeChainConnectionFailed,
		WithMessage("could not reach endpoint"),
		WithContext("wss://rpc.example"),
		WithCause(cause),
	)

	if err.Message != "could not reach endpoint" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Context != "wss://rpc.example" {
		t.Errorf("Context = %q", err.Context)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if err.Error() != "CHAIN_CONNECTION_FAILED: could not reach endpoint (context: wss://rpc.example)" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if Wrap(nil, CodeInternalError, "anything") != nil {
			t.Error("wrapping nil should return nil")
		}
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		err := Wrap(errors.New("disk full"), CodeStoreFailed, "save descriptor")
		if err.Code != CodeStoreFailed {
			t.Errorf("Code = %s, want %s", err.Code, CodeStoreFailed)
		}
		if err.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d", err.StatusCode)
		}
	})

	t.Run("existing app error passes through", func(t *testing.T) {
		orig := NotFound(CodeDescriptorNotFound, "")
		wrapped := Wrap(fmt.Errorf("handler: %w", orig), CodeInternalError, "GET /api/v1/ddo/x")
		if wrapped.Code != CodeDescriptorNotFound {
			t.Errorf("Code = %s, want original %s", wrapped.Code, CodeDescriptorNotFound)
		}
		if wrapped.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want 404", wrapped.StatusCode)
		}
		if wrapped.Context != "GET /api/v1/ddo/x" {
			t.Errorf("Context = %q, want the wrap context filled in", wrapped.Context)
		}
	})
}

func TestGetCode(t *testing.T) {
	if got := GetCode(errors.New("plain")); got != CodeUnknownError {
		t.Errorf("GetCode(plain) = %s", got)
	}
	if got := GetCode(Validation(CodeInvalidInput, "chain id")); got != CodeInvalidInput {
		t.Errorf("GetCode(app error) = %s", got)
	}
	wrapped := fmt.Errorf("outer: %w", New(CodeChainPoolExhausted))
	if got := GetCode(wrapped); got != CodeChainPoolExhausted {
		t.Errorf("GetCode(wrapped) = %s", got)
	}
}

func TestToResponse(t *testing.T) {
	err := NotFound(CodeDescriptorNotFound, "did:op:missing").WithTraceID("abc123")

	resp := err.ToResponse()
	body, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error object: %#v", resp)
	}
	if body["code"] != CodeDescriptorNotFound {
		t.Errorf("code = %v", body["code"])
	}
	if body["context"] != "did:op:missing" {
		t.Errorf("context = %v", body["context"])
	}
	if body["traceId"] != "abc123" {
		t.Errorf("traceId = %v", body["traceId"])
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := New(CodeChainPoolExhausted, WithContext("chain 1"))
	if !errors.Is(err, New(CodeChainPoolExhausted)) {
		t.Error("errors with the same code should match")
	}
	if errors.Is(err, New(CodeChainConnectionFailed)) {
		t.Error("errors with different codes should not match")
	}
}

package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantMsg string
	}{
		{
			name:    "simple error message",
			err:     New(Validation, "invalid input", nil),
			wantMsg: "invalid input",
		},
		{
			name:    "error with underlying error",
			err:     New(ServiceUnavailable, "identity provider down", errors.New("connection refused")),
			wantMsg: "identity provider down",
		},
		{
			name:    "empty message",
			err:     New(Internal, "", nil),
			wantMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestError_UnwrapChain(t *testing.T) {
	root := errors.New("root cause")
	apiErr := New(Internal, "api error", root)

	if !errors.Is(apiErr, root) {
		t.Error("errors.Is should find wrapped error")
	}
	if apiErr.Unwrap() != root {
		t.Errorf("Unwrap() = %v, want %v", apiErr.Unwrap(), root)
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", New(Unauthorized, "bad credentials", nil))

	if got := TypeOf(wrapped); got != Unauthorized {
		t.Errorf("TypeOf(wrapped) = %v, want %v", got, Unauthorized)
	}
	if got := TypeOf(errors.New("plain")); got != Internal {
		t.Errorf("TypeOf(plain) = %v, want %v", got, Internal)
	}
	if !Is(wrapped, Unauthorized) {
		t.Error("Is should match the wrapped type")
	}
	if Is(wrapped, NotFound) {
		t.Error("Is should not match a different type")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(Unauthorized, "", nil), http.StatusUnauthorized},
		{New(ServiceUnavailable, "", nil), http.StatusServiceUnavailable},
		{New(NotFound, "", nil), http.StatusNotFound},
		{New(Validation, "", nil), http.StatusBadRequest},
		{New(Conflict, "", nil), http.StatusConflict},
		{New(Internal, "", nil), http.StatusInternalServerError},
		{errors.New("untyped"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessage_HidesUntypedErrors(t *testing.T) {
	if got := Message(errors.New("sql: database is locked")); got != "internal server error" {
		t.Errorf("Message(untyped) = %q", got)
	}
	if got := Message(New(NotFound, "Favourite not found", nil)); got != "Favourite not found" {
		t.Errorf("Message(typed) = %q", got)
	}
}

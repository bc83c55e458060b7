package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(KindServerRejected, 404, "Not Found", nil)
	if got := err.Error(); got != "server_rejected (404): Not Found" {
		t.Fatalf("unexpected message %q", got)
	}

	wrapped := New(KindTimeout, 0, "request timed out", context.DeadlineExceeded)
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Fatalf("expected cause to unwrap")
	}
}

func TestKindHelpers(t *testing.T) {
	err := fmt.Errorf("loading grades: %w", Newf(KindSessionExpired, "session expired"))
	if KindOf(err) != KindSessionExpired {
		t.Fatalf("expected session_expired, got %q", KindOf(err))
	}
	if !Is(err, KindSessionExpired) {
		t.Fatalf("expected Is to match")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind for plain error")
	}
	if As(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  *Error
		want bool
	}{
		{New(KindTimeout, 0, "timeout", nil), true},
		{New(KindNetwork, 0, "unreachable", nil), true},
		{New(KindServerRejected, 503, "unavailable", nil), true},
		{New(KindServerRejected, 429, "slow down", nil), true},
		{New(KindServerRejected, 404, "missing", nil), false},
		{New(KindValidation, 400, "bad grade", nil), false},
		{New(KindSessionExpired, 401, "expired", nil), false},
		{New(KindAuthorizationDenied, 403, "denied", nil), false},
		{New(KindAuthenticationRequired, 0, "login", nil), false},
		{New(KindConfiguration, 0, "bad template", nil), false},
		{New(KindCanceled, 0, "canceled", nil), false},
	}
	for _, tc := range cases {
		if got := tc.err.Retryable(); got != tc.want {
			t.Fatalf("%s/%d: expected retryable=%v, got %v", tc.err.Kind, tc.err.Status, tc.want, got)
		}
	}
	if Retryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
}

package fop

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify_Taxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		reason string
		status int
	}{
		{ErrPasswordMismatch, "invalid_credentials", http.StatusUnauthorized},
		{ErrUserNotFound, "invalid_credentials", http.StatusUnauthorized},
		{ErrTokenInvalid, "token_invalid", http.StatusUnauthorized},
		{ErrTooManyRequests, "rate_limited", http.StatusTooManyRequests},
		{ErrUserNameNotValid, "username_invalid", http.StatusBadRequest},
		{ErrEmailNotValid, "email_invalid", http.StatusBadRequest},
		{ErrUserTooBig, "capacity_exceeded", http.StatusBadRequest},
	}

	for _, tt := range tests {
		c := Classify(tt.err)
		if c.Reason != tt.reason || c.Status != tt.status {
			t.Errorf("Classify(%v) = %+v, want reason=%s status=%d", tt.err, c, tt.reason, tt.status)
		}
	}
}

func TestClassify_WrappedErrorsStillMatch(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("login: %w", ErrPasswordMismatch)
	c := Classify(wrapped)
	if c.Reason != "invalid_credentials" {
		t.Fatalf("wrapped sentinel lost its class: %+v", c)
	}
}

func TestClassify_OtherReasons(t *testing.T) {
	t.Parallel()

	c := Classify(Other(ReasonUpstreamUnreachable, errors.New("dial tcp: connection refused")))
	if c.Status != http.StatusBadGateway || c.Reason != ReasonUpstreamUnreachable {
		t.Fatalf("upstream unreachable misclassified: %+v", c)
	}

	c = Classify(Other(ReasonUpstreamDenied, nil))
	if c.Status != http.StatusUnauthorized {
		t.Fatalf("upstream denied misclassified: %+v", c)
	}

	c = Classify(errors.New("some unexpected thing"))
	if c.Status != http.StatusInternalServerError || c.Category != "internal" {
		t.Fatalf("unknown error misclassified: %+v", c)
	}
}

func TestMessage_NeverLeaksTransportDetail(t *testing.T) {
	t.Parallel()

	err := Other(ReasonUpstreamUnreachable, errors.New("dial tcp 10.0.0.1:443: i/o timeout"))
	msg := Message(err)
	if msg != "authentication server unreachable" {
		t.Fatalf("unexpected message %q", msg)
	}

	if Message(errors.New("panic: stack")) != "internal error" {
		t.Fatal("unknown errors must surface as a generic message")
	}
}

func TestMessage_CredentialFailuresShareOneMessage(t *testing.T) {
	t.Parallel()

	if Message(ErrUserNotFound) != Message(ErrPasswordMismatch) {
		t.Fatal("messages differ between unknown user and wrong password")
	}
}

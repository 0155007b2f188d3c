package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeInvalidStateTransition, status: http.StatusConflict, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeCapacityExceeded, status: http.StatusUnprocessableEntity, publicMsg: "cart capacity exceeded", detailsOK: true},
		{code: CodeTransientUnavailable, status: http.StatusServiceUnavailable, publicMsg: "cart store temporarily unavailable", retryable: true, detailsOK: true},
		{code: CodeAuthenticationFailure, status: http.StatusServiceUnavailable, publicMsg: "cart store unavailable"},
		{code: CodeIntegrity, status: http.StatusInternalServerError, publicMsg: "cart integrity error"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error"},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeIntegrity, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeIntegrity {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeInvalidStateTransition, "already started"))
	if got := As(err); got == nil || got.Code() != CodeInvalidStateTransition {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeInvalidStateTransition) {
		t.Fatalf("IsCode should match wrapped typed error")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode matched the wrong code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpCapturesRedisReply(t *testing.T) {
	err := Wrap(CodeIntegrity, fmt.Errorf("evalsha: %w", stubReplyError("ERR user_script:1: boom")), "script failed")
	dump := Dump(err)
	if dump.Code != CodeIntegrity {
		t.Fatalf("expected integrity code, got %s", dump.Code)
	}
	if dump.RedisReply != "ERR user_script:1: boom" {
		t.Fatalf("unexpected redis reply %q", dump.RedisReply)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected three chain entries, got %d", len(dump.Chain))
	}
}

type stubReplyError string

var _ redis.Error = stubReplyError("")

func (e stubReplyError) Error() string { return string(e) }

func (stubReplyError) RedisError() {}

package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/rs/zerolog"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code    pkgerrors.Code
		status  int
		message string
	}{
		{pkgerrors.CodeValidation, http.StatusBadRequest, "bad input"},
		{pkgerrors.CodeUnauthorized, http.StatusUnauthorized, "bad input"},
		{pkgerrors.CodeNotFound, http.StatusNotFound, "bad input"},
		{pkgerrors.CodeInvalidStateTransition, http.StatusConflict, "bad input"},
		{pkgerrors.CodeCapacityExceeded, http.StatusUnprocessableEntity, "bad input"},
		{pkgerrors.CodeTransientUnavailable, http.StatusServiceUnavailable, "cart store temporarily unavailable"},
		{pkgerrors.CodeAuthenticationFailure, http.StatusServiceUnavailable, "cart store unavailable"},
		{pkgerrors.CodeIntegrity, http.StatusInternalServerError, "cart integrity error"},
		{pkgerrors.CodeInternal, http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, pkgerrors.New(tc.code, "bad input"))

			if w.Code != tc.status {
				t.Fatalf("expected status %d but got %d", tc.status, w.Code)
			}
			var body ErrorEnvelope
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error envelope: %v", err)
			}
			if body.Error.Code != string(tc.code) {
				t.Fatalf("unexpected code %s", body.Error.Code)
			}
			if body.Error.Message != tc.message {
				t.Fatalf("unexpected message %q", body.Error.Message)
			}
		})
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeCapacityExceeded, "cart is full").
		WithDetails(map[string]any{"limit": "items", "max": 3})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 but got %d", got)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	details, ok := body.Error.Details.(map[string]any)
	if !ok || details["limit"] != "items" {
		t.Fatalf("expected details in public payload, got %v", body.Error.Details)
	}
}

func TestWriteErrorTransientSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeTransientUnavailable, "pool exhausted"))

	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After header, got %q", got)
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})

	w := httptest.NewRecorder()
	WriteError(context.Background(), logg, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
	if !strings.Contains(buf.String(), "request.error") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected error log, got %s", buf.String())
	}
}

func TestWriteErrorHidesIntegrityDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeIntegrity, "items decode failed").
		WithDetails(map[string]any{"raw": "secret"})
	WriteError(context.Background(), nil, w, err)

	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Details != nil || body.Error.Message != "cart integrity error" {
		t.Fatalf("integrity internals leaked: %+v", body.Error)
	}
}

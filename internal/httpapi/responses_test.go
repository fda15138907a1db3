package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ourpainthub/internal/domain"
)

func TestWriteDomainErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewValidationError(map[string]string{"email": "required"}), http.StatusBadRequest, "validation_error"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{domain.ErrUserDisabled, http.StatusForbidden, "user_disabled"},
		{fmt.Errorf("get project: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{domain.ErrEmailTaken, http.StatusConflict, "email_taken"},
		{domain.ErrVersionConflict, http.StatusConflict, "version_conflict"},
		{fmt.Errorf("share: %w", domain.ErrAlreadyShared), http.StatusConflict, "already_shared"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		WriteDomainError(rr, tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: status %d, want %d", tc.err, rr.Code, tc.status)
		}
		if e := decodeErr(t, rr); e.Code != tc.code {
			t.Fatalf("%v: code %q, want %q", tc.err, e.Code, tc.code)
		}
	}
}

func TestWriteDomainErrorIncludesFields(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteDomainError(rr, domain.NewValidationError(map[string]string{"project_name": "required"}))

	e := decodeErr(t, rr)
	if e.Fields["project_name"] != "required" {
		t.Fatalf("unexpected fields: %v", e.Fields)
	}
	if e.Message == "" {
		t.Fatalf("expected a message")
	}
}

func TestWriteBadJSONTooLarge(t *testing.T) {
	rr := httptest.NewRecorder()
	writeBadJSON(rr, &http.MaxBytesError{Limit: 10})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	writeBadJSON(rr, errors.New("unexpected EOF"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Code != "bad_json" {
		t.Fatalf("unexpected error code: %s", e.Code)
	}
}

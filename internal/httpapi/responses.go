package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ourpainthub/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

var errorMessages = map[string]string{
	"validation_error":        "invalid request",
	"invalid_credentials":     "invalid email or password",
	"unauthorized":            "unauthorized",
	"forbidden":               "forbidden",
	"user_disabled":           "user is disabled",
	"not_found":               "not found",
	"payload_too_large":       "payload too large",
	"conflict":                "conflict",
	"email_taken":             "email already taken",
	"external_account_exists": "account already linked",
	"request_exists":          "friend request already sent",
	"already_friends":         "already friends",
	"already_shared":          "project already shared with this user",
	"version_conflict":        "project was changed by someone else",
	"internal_error":          "internal server error",
}

func statusForCode(code string, err error) int {
	switch code {
	case "validation_error":
		return http.StatusBadRequest
	case "invalid_credentials", "unauthorized":
		return http.StatusUnauthorized
	case "forbidden", "user_disabled":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "payload_too_large":
		return http.StatusRequestEntityTooLarge
	case "internal_error":
		return http.StatusInternalServerError
	}
	if errors.Is(err, domain.ErrConflict) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func WriteDomainError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	resp := apiError{Code: code, Message: errorMessages[code]}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	WriteJSON(w, statusForCode(code, err), errorEnvelope{Error: resp})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/server/models"
)

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func newTokenResponse(pair *models.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(pair.ExpiresAt.Sub(pair.CreatedAt).Seconds()),
		TokenType:    "Bearer",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}

// readJSON decodes the request body into v. Unknown fields are ignored.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	return true
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{common.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{common.ErrInvalidCredentials, http.StatusBadRequest, "invalid_credentials"},
	{common.ErrAlreadySetup, http.StatusBadRequest, "already_setup"},
	{common.ErrConflict, http.StatusConflict, "conflict"},
	{common.ErrExpiredToken, http.StatusUnauthorized, "expired_token"},
	{common.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{common.ErrUserNotFound, http.StatusUnauthorized, "invalid_token"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{context.Canceled, http.StatusServiceUnavailable, "canceled"},
	{common.ErrHashingFailure, http.StatusInternalServerError, "hashing_failure"},
	{common.ErrStorageFailure, http.StatusInternalServerError, "storage_failure"},
}

// errorStatus maps a service error onto an HTTP status and error code.
// Server-side failures never expose the underlying cause.
func errorStatus(err error) (status int, code, message string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			message = m.target.Error()
			if m.status >= http.StatusInternalServerError {
				message = http.StatusText(m.status)
			}
			return m.status, m.code, message
		}
	}
	return http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError)
}

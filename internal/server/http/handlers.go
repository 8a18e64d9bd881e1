package http

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/models"
	"github.com/fastid/fastid/internal/server/ratelimit"
	"github.com/fastid/fastid/internal/server/services"
)

// Authenticator is the part of the auth service the HTTP layer calls.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*models.TokenPair, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	SignOut(ctx context.Context, refreshToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
}

type SetupService interface {
	IsSetup(ctx context.Context) (bool, error)
	BootstrapAdmin(ctx context.Context, email, password string) (*models.TokenPair, error)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userInfoResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

type handlers struct {
	auth    Authenticator
	setup   SetupService
	limiter ratelimit.Limiter
	metrics *Metrics
	logger  logging.Logger
}

func (h *handlers) failure(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, message := errorStatus(err)
	log := logging.FromContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "operation", op, "error", err)
	} else {
		log.Debug(r.Context(), "request rejected", "operation", op, "code", code)
	}
	writeError(w, status, code, message)
}

func (h *handlers) healthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func (h *handlers) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}

	if !h.allowSignIn(w, r, req.Email) {
		h.metrics.AuthEvent("signin", OutcomeThrottled)
		return
	}

	pair, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.AuthEvent("signin", OutcomeFailure)
		h.failure(w, r, "signin", err)
		return
	}

	h.metrics.AuthEvent("signin", OutcomeSuccess)
	writeJSON(w, http.StatusCreated, newTokenResponse(pair))
}

// allowSignIn applies the per email and client address throttle. A limiter
// error lets the request through.
func (h *handlers) allowSignIn(w http.ResponseWriter, r *http.Request, email string) bool {
	key := services.NormalizeEmail(email) + "|" + clientIP(r)

	res, err := h.limiter.Allow(r.Context(), key)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Warn(r.Context(), "rate limiter unavailable", "error", err)
		return true
	}
	if res.Allowed {
		return true
	}

	retry := int(math.Ceil(res.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many sign-in attempts")
	return false
}

func (h *handlers) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !readJSON(w, r, &req) {
		return
	}

	pair, err := h.auth.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		h.metrics.AuthEvent("refresh", OutcomeFailure)
		h.failure(w, r, "refresh", err)
		return
	}

	h.metrics.AuthEvent("refresh", OutcomeSuccess)
	writeJSON(w, http.StatusCreated, newTokenResponse(pair))
}

func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !readJSON(w, r, &req) {
		return
	}

	if err := h.auth.SignOut(r.Context(), req.RefreshToken); err != nil {
		h.failure(w, r, "signout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), token)
	if err != nil {
		h.failure(w, r, "info", err)
		return
	}

	writeJSON(w, http.StatusOK, userInfoResponse{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin})
}

func (h *handlers) config(w http.ResponseWriter, r *http.Request) {
	done, err := h.setup.IsSetup(r.Context())
	if err != nil {
		h.failure(w, r, "config", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_setup": done})
}

func (h *handlers) bootstrap(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}

	pair, err := h.setup.BootstrapAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.failure(w, r, "setup", err)
		return
	}

	logging.FromContext(r.Context(), h.logger).Info(r.Context(), "service set up", "user_id", pair.UserID)
	writeJSON(w, http.StatusCreated, newTokenResponse(pair))
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/botio91514/gym-backend/internal/auth"
	"github.com/botio91514/gym-backend/internal/transport/httpserver/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	token, err := h.Auth.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.log.BusinessError("auth.login: rejected", err)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	case errors.Is(err, auth.ErrNotConfigured):
		h.log.InternalError("auth.login: admin credentials not configured", err)
		writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth not configured")
		return
	case err != nil:
		h.log.InternalError("auth.login: failed", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token.Value, ExpiresAt: token.ExpiresAt})
}

func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.AdminFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Email: admin.Email})
}

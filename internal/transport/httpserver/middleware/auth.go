package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/botio91514/gym-backend/internal/auth"
	"github.com/botio91514/gym-backend/pkg/logger"
)

type contextKey int

const adminKey contextKey = iota

type Admin struct {
	Email string
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AdminAuth guards admin routes with a bearer token.
type AdminAuth struct {
	verifier  TokenVerifier
	skipAuth  bool
	mockAdmin Admin
	log       logger.Logger
}

func NewAdminAuth(verifier TokenVerifier, skipAuth bool, log logger.Logger) *AdminAuth {
	return &AdminAuth{
		verifier:  verifier,
		skipAuth:  skipAuth,
		mockAdmin: Admin{Email: "dev-admin@localhost"},
		log:       log,
	}
}

func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), a.mockAdmin)))
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}

		claims, err := a.verifier.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrNotConfigured) {
				writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth not configured")
				return
			}
			a.log.Debug("auth: token rejected", "err", err)
			unauthorized(w)
			return
		}

		ctx := WithAdmin(r.Context(), Admin{Email: claims.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
}

func WithAdmin(ctx context.Context, admin Admin) context.Context {
	return context.WithValue(ctx, adminKey, admin)
}

func AdminFromContext(ctx context.Context) (Admin, bool) {
	admin, ok := ctx.Value(adminKey).(Admin)
	if !ok || admin.Email == "" {
		return Admin{}, false
	}
	return admin, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

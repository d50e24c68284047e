package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	apiContext "courierly/internal/api/context"
	"courierly/internal/pkg/errors"
	"courierly/internal/platform/auth"
	"courierly/internal/platform/repositories"
)

// AuthMiddleware authenticates requests either with a platform-issued JWT
// (Authorization: Bearer) or with a service API key (X-API-Key). Both paths
// resolve to Claims carrying the owner account id.
type AuthMiddleware struct {
	tokenSvc *auth.TokenService
	keyRepo  *repositories.APIKeyRepository
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, keyRepo *repositories.APIKeyRepository) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, keyRepo: keyRepo}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			m.handleAPIKey(w, r, next, apiKey)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing credentials", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}

func (m *AuthMiddleware) handleAPIKey(w http.ResponseWriter, r *http.Request, next http.HandlerFunc, rawKey string) {
	hash := sha256.Sum256([]byte(rawKey))
	key, err := m.keyRepo.GetByHash(hex.EncodeToString(hash[:]))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if key == nil || key.RevokedAt != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid API key", nil)
		return
	}
	if key.ExpiresAt != nil && *key.ExpiresAt < time.Now().Unix() {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "API key expired", nil)
		return
	}

	// Best effort; auth must not fail on a bookkeeping write.
	m.keyRepo.TouchLastUsed(key.ID)

	claims := &auth.Claims{
		UserID: key.OwnerID,
		Scopes: key.Scopes,
	}
	ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
	next(w, r.WithContext(ctx))
}

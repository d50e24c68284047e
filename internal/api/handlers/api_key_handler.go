package handlers

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"courierly/internal/pkg/errors"
	"courierly/internal/platform/audit"
	"courierly/internal/platform/models"
	"courierly/internal/platform/repositories"
)

type APIKeyHandler struct {
	keys  *repositories.APIKeyRepository
	audit *audit.Logger
}

func NewAPIKeyHandler(keys *repositories.APIKeyRepository, auditLogger *audit.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, audit: auditLogger}
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string   `json:"name"`
		Scopes        []string `json:"scopes"`
		ExpiresInDays int      `json:"expires_in_days"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	rawKey := "cly_live_" + uuid.New().String()
	hash := sha256.Sum256([]byte(rawKey))

	apiKey := &models.APIKey{
		OwnerID:   callerID(r),
		Name:      req.Name,
		KeyHash:   hex.EncodeToString(hash[:]),
		KeyPrefix: rawKey[:12] + "...",
		Scopes:    req.Scopes,
	}

	if req.ExpiresInDays > 0 {
		exp := time.Now().Add(time.Duration(req.ExpiresInDays) * 24 * time.Hour).Unix()
		apiKey.ExpiresAt = &exp
	}

	if err := h.keys.Create(apiKey); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	h.audit.Record(r, callerID(r), "api_key.created", "api_key", apiKey.ID, map[string]interface{}{
		"name":   apiKey.Name,
		"scopes": apiKey.Scopes,
	})

	// The raw key is returned only once.
	response := struct {
		ID        string   `json:"id"`
		Key       string   `json:"key"`
		Name      string   `json:"name"`
		Scopes    []string `json:"scopes"`
		CreatedAt int64    `json:"created_at"`
	}{
		ID:        apiKey.ID,
		Key:       rawKey,
		Name:      apiKey.Name,
		Scopes:    apiKey.Scopes,
		CreatedAt: apiKey.CreatedAt,
	}
	writeJSON(w, http.StatusCreated, response)
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListByOwner(callerID(r))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "key_id")
	err := h.keys.Revoke(id, callerID(r))
	if err == sql.ErrNoRows {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found", nil)
		return
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	h.audit.Record(r, callerID(r), "api_key.revoked", "api_key", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

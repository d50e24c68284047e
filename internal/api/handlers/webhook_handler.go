package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "courierly/internal/api/context"
	"courierly/internal/engine/webhooks"
	"courierly/internal/pkg/errors"
	"courierly/internal/pkg/secrets"
	"courierly/internal/platform/audit"
	"courierly/internal/platform/auth"
	"courierly/internal/platform/models"
	"courierly/internal/platform/repositories"
)

type WebhookHandler struct {
	registry   *webhooks.Registry
	dispatcher *webhooks.Dispatcher
	deliveries *repositories.DeliveryRepository
	audit      *audit.Logger
}

func NewWebhookHandler(registry *webhooks.Registry, dispatcher *webhooks.Dispatcher, deliveries *repositories.DeliveryRepository, auditLogger *audit.Logger) *WebhookHandler {
	return &WebhookHandler{
		registry:   registry,
		dispatcher: dispatcher,
		deliveries: deliveries,
		audit:      auditLogger,
	}
}

func callerID(r *http.Request) string {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	return claims.UserID
}

func pathParam(r *http.Request, name string) string {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

// redacted returns the API shape of a webhook with the secret reduced to its
// display prefix.
func redacted(w *models.Webhook) *models.Webhook {
	out := *w
	out.SecretPreview = secrets.Redact(w.Secret)
	out.Secret = ""
	return &out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type createWebhookRequest struct {
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Description string   `json:"description"`
}

type createWebhookResponse struct {
	*models.Webhook
	// Secret is returned in full only here and on rotation.
	Secret string `json:"secret"`
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	webhook, err := h.registry.Create(callerID(r), req.URL, req.Events, req.Description)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r, callerID(r), "webhook.created", "webhook", webhook.ID, map[string]interface{}{
		"url":    webhook.URL,
		"events": webhook.Events,
	})

	secret := webhook.Secret
	writeJSON(w, http.StatusCreated, createWebhookResponse{Webhook: redacted(webhook), Secret: secret})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.registry.List(callerID(r))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	out := make([]*models.Webhook, 0, len(hooks))
	for _, wh := range hooks {
		out = append(out, redacted(wh))
	}
	writeJSON(w, http.StatusOK, out)
}

type webhookDetailResponse struct {
	Webhook          *models.Webhook           `json:"webhook"`
	Stats            *models.DeliveryStats     `json:"stats"`
	RecentDeliveries []*models.WebhookDelivery `json:"recent_deliveries"`
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.registry.Get(pathParam(r, "webhook_id"), callerID(r))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	stats, err := h.deliveries.Stats(webhook.ID, webhooks.MaxAttempts)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	recent, err := h.deliveries.ListByWebhook(webhook.ID, 10)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	writeJSON(w, http.StatusOK, webhookDetailResponse{
		Webhook:          redacted(webhook),
		Stats:            stats,
		RecentDeliveries: recent,
	})
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch webhooks.UpdatePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	webhook, err := h.registry.Update(pathParam(r, "webhook_id"), callerID(r), patch)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r, callerID(r), "webhook.updated", "webhook", webhook.ID, map[string]interface{}{
		"url":       webhook.URL,
		"events":    webhook.Events,
		"is_active": webhook.IsActive,
	})
	writeJSON(w, http.StatusOK, redacted(webhook))
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "webhook_id")
	if err := h.registry.Delete(id, callerID(r)); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r, callerID(r), "webhook.deleted", "webhook", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type rotateSecretResponse struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

func (h *WebhookHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.registry.RotateSecret(pathParam(r, "webhook_id"), callerID(r))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r, callerID(r), "webhook.secret_rotated", "webhook", webhook.ID, nil)
	writeJSON(w, http.StatusOK, rotateSecretResponse{ID: webhook.ID, Secret: webhook.Secret})
}

type testWebhookResponse struct {
	Success  bool                    `json:"success"`
	Delivery *models.WebhookDelivery `json:"delivery,omitempty"`
}

// Test performs the delivery inline and reports its real outcome rather than
// firing asynchronously and polling.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.registry.Get(pathParam(r, "webhook_id"), callerID(r))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	delivery, err := h.dispatcher.SendTest(r.Context(), webhook.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Test delivery failed", nil)
		return
	}
	if delivery == nil {
		// Webhook was deactivated between the ownership check and the send.
		writeJSON(w, http.StatusOK, testWebhookResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, testWebhookResponse{Success: delivery.Success, Delivery: delivery})
}

func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.registry.Get(pathParam(r, "webhook_id"), callerID(r))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	deliveries, err := h.deliveries.ListByWebhook(webhook.ID, limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "courierly/internal/api/context"
	"courierly/internal/api/handlers"
	"courierly/internal/api/middleware"
)

type Dependencies struct {
	WebhookHandler *handlers.WebhookHandler
	EventHandler   *handlers.EventHandler
	APIKeyHandler  *handlers.APIKeyHandler
	AuditHandler   *handlers.AuditHandler
	HealthHandler  *handlers.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	authMid := deps.AuthMiddleware
	rl := deps.RateLimiter

	// Webhook subscriptions
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, authMid.Handle, rl.Limit("api_read")))
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, authMid.Handle, rl.Limit("api_write")))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Get, authMid.Handle, rl.Limit("api_read")))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Update, authMid.Handle, rl.Limit("api_write")))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Delete, authMid.Handle, rl.Limit("api_write")))
	router.POST("/api/v1/webhooks/:webhook_id/rotate-secret",
		chain(deps.WebhookHandler.RotateSecret, authMid.Handle, rl.Limit("api_write")))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(deps.WebhookHandler.Test, authMid.Handle, rl.Limit("webhook_test")))
	router.GET("/api/v1/webhooks/:webhook_id/deliveries",
		chain(deps.WebhookHandler.ListDeliveries, authMid.Handle, rl.Limit("api_read")))

	// Domain event ingestion (platform services)
	router.POST("/api/v1/events",
		chain(deps.EventHandler.Publish, authMid.Handle, rl.Limit("event_publish")))

	// API key management
	router.POST("/api/v1/api-keys",
		chain(deps.APIKeyHandler.Create, authMid.Handle, rl.Limit("api_write")))
	router.GET("/api/v1/api-keys",
		chain(deps.APIKeyHandler.List, authMid.Handle, rl.Limit("api_read")))
	router.DELETE("/api/v1/api-keys/:key_id",
		chain(deps.APIKeyHandler.Revoke, authMid.Handle, rl.Limit("api_write")))

	// Configuration change history
	router.GET("/api/v1/audit-logs",
		chain(deps.AuditHandler.List, authMid.Handle, rl.Limit("api_read")))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

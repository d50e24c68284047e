package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"courierly/internal/api"
	"courierly/internal/api/handlers"
	"courierly/internal/api/middleware"
	"courierly/internal/engine/webhooks"
	"courierly/internal/pkg/logger"
	"courierly/internal/platform/audit"
	"courierly/internal/platform/auth"
	"courierly/internal/platform/config"
	"courierly/internal/platform/database"
	"courierly/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	// Repositories
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)

	// Engine
	registry := webhooks.NewRegistry(webhookRepo)
	scheduler := webhooks.NewScheduler(deliveryRepo, cfg.Sweeper.BatchSize)
	dispatcher := webhooks.NewDispatcher(webhookRepo, deliveryRepo, scheduler, cfg.Webhooks)

	// Auth
	tokenSvc := auth.NewTokenService(cfg.JWT)
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc, keyRepo)

	auditLogger := audit.NewLogger(db)

	// Handlers
	deps := &api.Dependencies{
		WebhookHandler: handlers.NewWebhookHandler(registry, dispatcher, deliveryRepo, auditLogger),
		EventHandler:   handlers.NewEventHandler(dispatcher),
		APIKeyHandler:  handlers.NewAPIKeyHandler(keyRepo, auditLogger),
		AuditHandler:   handlers.NewAuditHandler(auditLogger),
		HealthHandler:  handlers.NewHealthHandler(db),
		AuthMiddleware: authMiddleware,
		RateLimiter:    middleware.NewRateLimiter(),
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info().Str("addr", addr).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

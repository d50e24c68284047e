package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"courierly/internal/engine/webhooks"
	"courierly/internal/pkg/logger"
	"courierly/internal/platform/config"
	"courierly/internal/platform/database"
	"courierly/internal/platform/repositories"
)

// The sweeper re-attempts overdue webhook deliveries. By default it runs a
// single sweep and exits, which is how an external cron or job runner is
// expected to invoke it. With a schedule configured it stays resident and
// sweeps on that cadence instead. Run at most one sweeper per deployment;
// the per-row claim guards against overlap but is not a substitute for it.
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

	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)

	scheduler := webhooks.NewScheduler(deliveryRepo, cfg.Sweeper.BatchSize)
	dispatcher := webhooks.NewDispatcher(webhookRepo, deliveryRepo, scheduler, cfg.Webhooks)

	sweep := func() {
		attempted, err := scheduler.Sweep(context.Background(), dispatcher)
		if err != nil {
			log.Error().Err(err).Msg("sweep failed")
			return
		}
		log.Info().Int("attempted", attempted).Msg("sweep complete")
	}

	if cfg.Sweeper.Schedule == "" {
		sweep()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Sweeper.Schedule, sweep); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Sweeper.Schedule).Msg("invalid sweep schedule")
	}
	c.Start()
	log.Info().Str("schedule", cfg.Sweeper.Schedule).Msg("sweeper started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	<-c.Stop().Done()
}

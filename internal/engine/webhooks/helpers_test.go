package webhooks

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"courierly/internal/platform/config"
	"courierly/internal/platform/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// :memory: must stay on one connection or each conn gets its own db.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE webhooks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		url TEXT NOT NULL,
		events TEXT NOT NULL,
		secret TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		description TEXT,
		last_triggered_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE webhook_deliveries (
		id TEXT PRIMARY KEY,
		webhook_id TEXT NOT NULL,
		event TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		response_code INTEGER NOT NULL DEFAULT 0,
		response_body TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL DEFAULT 0,
		next_retry_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

type testEnv struct {
	db         *sql.DB
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	registry   *Registry
	scheduler  *Scheduler
	dispatcher *Dispatcher
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	scheduler := NewScheduler(deliveryRepo, 100)
	dispatcher := NewDispatcher(webhookRepo, deliveryRepo, scheduler, config.WebhooksConfig{
		DeliveryTimeout: 5 * time.Second,
		MaxResponseBody: 1000,
	})

	return &testEnv{
		db:         db,
		webhooks:   webhookRepo,
		deliveries: deliveryRepo,
		registry:   NewRegistry(webhookRepo),
		scheduler:  scheduler,
		dispatcher: dispatcher,
	}
}

// forceDue rewinds a delivery's next_retry_at so a sweep picks it up.
func forceDue(t *testing.T, db *sql.DB, deliveryID string) {
	t.Helper()
	past := time.Now().Add(-time.Minute).Unix()
	if _, err := db.Exec(`UPDATE webhook_deliveries SET next_retry_at = ? WHERE id = ?`, past, deliveryID); err != nil {
		t.Fatalf("Failed to rewind next_retry_at: %v", err)
	}
}

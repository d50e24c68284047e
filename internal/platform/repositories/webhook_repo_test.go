package repositories

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"courierly/internal/platform/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
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

func TestWebhookRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepository(db)

	webhook := &models.Webhook{
		OwnerID:     "usr_1",
		URL:         "https://example.com/hook",
		Events:      []string{"user.created", "message.sent"},
		Secret:      "whsec_abc",
		Description: "primary",
	}
	if err := repo.Create(webhook); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if webhook.ID == "" || !webhook.IsActive {
		t.Errorf("Create() did not initialize the record: %+v", webhook)
	}

	fetched, err := repo.GetByID(webhook.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if fetched.OwnerID != "usr_1" || fetched.Secret != "whsec_abc" || fetched.Description != "primary" {
		t.Errorf("Round trip mismatch: %+v", fetched)
	}
	if len(fetched.Events) != 2 || fetched.Events[0] != "user.created" {
		t.Errorf("Events round trip mismatch: %v", fetched.Events)
	}

	missing, err := repo.GetByID("wh_missing")
	if err != nil || missing != nil {
		t.Errorf("GetByID() for missing row: got (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestWebhookRepositoryListByOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepository(db)

	for _, owner := range []string{"usr_1", "usr_1", "usr_2"} {
		if err := repo.Create(&models.Webhook{OwnerID: owner, URL: "https://example.com", Events: []string{"user.created"}, Secret: "s"}); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	list, err := repo.ListByOwner("usr_1")
	if err != nil {
		t.Fatalf("ListByOwner() error: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected 2 webhooks for usr_1, got %d", len(list))
	}
	for _, w := range list {
		if w.OwnerID != "usr_1" {
			t.Errorf("ListByOwner leaked a record owned by %s", w.OwnerID)
		}
	}
}

func TestWebhookRepositoryGetActiveByEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepository(db)

	matching := &models.Webhook{OwnerID: "usr_1", URL: "https://a.example.com", Events: []string{"user.created"}, Secret: "s"}
	other := &models.Webhook{OwnerID: "usr_1", URL: "https://b.example.com", Events: []string{"message.sent"}, Secret: "s"}
	paused := &models.Webhook{OwnerID: "usr_1", URL: "https://c.example.com", Events: []string{"user.created"}, Secret: "s"}
	for _, w := range []*models.Webhook{matching, other, paused} {
		if err := repo.Create(w); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	paused.IsActive = false
	if err := repo.Update(paused); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	matched, err := repo.GetActiveByEvent("user.created")
	if err != nil {
		t.Fatalf("GetActiveByEvent() error: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != matching.ID {
		t.Errorf("Expected only the active subscribed webhook, got %d rows", len(matched))
	}
}

func TestWebhookRepositoryUpdateSecret(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepository(db)

	webhook := &models.Webhook{OwnerID: "usr_1", URL: "https://example.com", Events: []string{"user.created"}, Secret: "whsec_old"}
	if err := repo.Create(webhook); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.UpdateSecret(webhook.ID, "whsec_new"); err != nil {
		t.Fatalf("UpdateSecret() error: %v", err)
	}
	fetched, _ := repo.GetByID(webhook.ID)
	if fetched.Secret != "whsec_new" {
		t.Errorf("Expected rotated secret, got %s", fetched.Secret)
	}
}

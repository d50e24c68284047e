package webhooks

import (
	"errors"
	"strings"
	"testing"

	pkgerrors "courierly/internal/pkg/errors"
)

func TestRegistryCreate(t *testing.T) {
	env := setupEnv(t)

	webhook, err := env.registry.Create("usr_1", "https://example.com/hook", []string{EventUserCreated, EventMessageSent}, "primary hook")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if !strings.HasPrefix(webhook.ID, "wh_") {
		t.Errorf("Expected wh_ id prefix, got %s", webhook.ID)
	}
	if !webhook.IsActive {
		t.Error("New webhook should be active")
	}
	if !strings.HasPrefix(webhook.Secret, "whsec_") || len(webhook.Secret) != len("whsec_")+64 {
		t.Errorf("Unexpected secret format: %s", webhook.Secret)
	}

	fetched, err := env.registry.Get(webhook.ID, "usr_1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if fetched.URL != "https://example.com/hook" {
		t.Errorf("Unexpected URL: %s", fetched.URL)
	}
	if len(fetched.Events) != 2 {
		t.Errorf("Expected 2 events, got %v", fetched.Events)
	}
}

func TestRegistryCreateValidation(t *testing.T) {
	env := setupEnv(t)

	cases := []struct {
		name   string
		url    string
		events []string
		field  string
	}{
		{"relative url", "/hook", []string{EventUserCreated}, "url"},
		{"missing host", "https://", []string{EventUserCreated}, "url"},
		{"bad scheme", "ftp://example.com/hook", []string{EventUserCreated}, "url"},
		{"empty events", "https://example.com/hook", nil, "events"},
		{"unknown event", "https://example.com/hook", []string{"order.shipped"}, "events"},
		{"reserved test event", "https://example.com/hook", []string{EventWebhookTest}, "events"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.registry.Create("usr_1", tc.url, tc.events, "")
			var ve *pkgerrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("Expected field %s, got %s", tc.field, ve.Field)
			}
		})
	}
}

func TestRegistryOwnerIsolation(t *testing.T) {
	env := setupEnv(t)

	webhook, err := env.registry.Create("usr_1", "https://example.com/hook", []string{EventUserCreated}, "")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := env.registry.Get(webhook.ID, "usr_2"); !errors.Is(err, pkgerrors.ErrForbidden) {
		t.Errorf("Get() by non-owner: expected ErrForbidden, got %v", err)
	}
	if _, err := env.registry.RotateSecret(webhook.ID, "usr_2"); !errors.Is(err, pkgerrors.ErrForbidden) {
		t.Errorf("RotateSecret() by non-owner: expected ErrForbidden, got %v", err)
	}
	if err := env.registry.Delete(webhook.ID, "usr_2"); !errors.Is(err, pkgerrors.ErrForbidden) {
		t.Errorf("Delete() by non-owner: expected ErrForbidden, got %v", err)
	}

	if _, err := env.registry.Get("wh_missing", "usr_1"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("Get() unknown id: expected ErrNotFound, got %v", err)
	}

	list, err := env.registry.List("usr_2")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() for another owner should be empty, got %d", len(list))
	}
}

func TestRegistryUpdate(t *testing.T) {
	env := setupEnv(t)

	webhook, _ := env.registry.Create("usr_1", "https://example.com/hook", []string{EventUserCreated}, "")

	newURL := "https://example.org/other"
	inactive := false
	updated, err := env.registry.Update(webhook.ID, "usr_1", UpdatePatch{
		URL:      &newURL,
		Events:   []string{EventMessageSent},
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.URL != newURL || updated.IsActive || updated.Events[0] != EventMessageSent {
		t.Errorf("Update() did not apply patch: %+v", updated)
	}
	if updated.Secret != webhook.Secret {
		t.Error("Update() must not change the secret")
	}

	badURL := "nonsense"
	if _, err := env.registry.Update(webhook.ID, "usr_1", UpdatePatch{URL: &badURL}); err == nil {
		t.Error("Update() accepted a malformed URL")
	}
}

func TestRegistryRotateSecret(t *testing.T) {
	env := setupEnv(t)

	webhook, _ := env.registry.Create("usr_1", "https://example.com/hook", []string{EventUserCreated}, "")
	oldSecret := webhook.Secret

	rotated, err := env.registry.RotateSecret(webhook.ID, "usr_1")
	if err != nil {
		t.Fatalf("RotateSecret() error: %v", err)
	}
	if rotated.Secret == oldSecret {
		t.Error("RotateSecret() returned the old secret")
	}

	payload := []byte(`{"event":"user.created"}`)
	oldSig := Sign(oldSecret, payload)
	if Verify(rotated.Secret, payload, oldSig) {
		t.Error("Old-secret signature still verifies after rotation")
	}

	stored, _ := env.registry.Get(webhook.ID, "usr_1")
	if stored.Secret != rotated.Secret {
		t.Error("Rotated secret was not persisted")
	}
}

func TestRegistryDeleteRetainsDeliveries(t *testing.T) {
	env := setupEnv(t)

	webhook, _ := env.registry.Create("usr_1", "https://example.com/hook", []string{EventUserCreated}, "")

	// Orphan delivery row surviving webhook deletion.
	if _, err := env.db.Exec(`
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, attempts, success, created_at, updated_at)
		VALUES ('whd_1', ?, 'user.created', '{}', 1, 1, 1, 1)
	`, webhook.ID); err != nil {
		t.Fatalf("Failed to insert delivery: %v", err)
	}

	if err := env.registry.Delete(webhook.ID, "usr_1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	var count int
	env.db.QueryRow(`SELECT COUNT(*) FROM webhook_deliveries WHERE webhook_id = ?`, webhook.ID).Scan(&count)
	if count != 1 {
		t.Errorf("Expected delivery history to be retained, got %d rows", count)
	}
}

package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"courierly/internal/platform/models"
	"github.com/google/uuid"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *models.Webhook) error {
	webhook.ID = "wh_" + uuid.New().String()
	webhook.CreatedAt = time.Now().Unix()
	webhook.UpdatedAt = webhook.CreatedAt
	webhook.IsActive = true

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (id, owner_id, url, events, secret, is_active, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, webhook.ID, webhook.OwnerID, webhook.URL, string(eventsJSON), webhook.Secret, webhook.IsActive, webhook.Description, webhook.CreatedAt, webhook.UpdatedAt)
	return err
}

const webhookColumns = `id, owner_id, url, events, secret, is_active, description, last_triggered_at, created_at, updated_at`

func scanWebhook(row interface{ Scan(...interface{}) error }) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr string
	var description sql.NullString
	var lastTriggeredAt sql.NullInt64

	err := row.Scan(&w.ID, &w.OwnerID, &w.URL, &eventsStr, &w.Secret, &w.IsActive, &description, &lastTriggeredAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		w.Description = description.String
	}
	if lastTriggeredAt.Valid {
		w.LastTriggeredAt = &lastTriggeredAt.Int64
	}
	json.Unmarshal([]byte(eventsStr), &w.Events)

	return &w, nil
}

func (r *WebhookRepository) GetByID(id string) (*models.Webhook, error) {
	row := r.db.QueryRow(`SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id)
	w, err := scanWebhook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func (r *WebhookRepository) ListByOwner(ownerID string) ([]*models.Webhook, error) {
	rows, err := r.db.Query(`SELECT `+webhookColumns+` FROM webhooks WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (r *WebhookRepository) Update(webhook *models.Webhook) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}
	webhook.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE webhooks
		SET url = ?, events = ?, is_active = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.Exec(query, webhook.URL, string(eventsJSON), webhook.IsActive, webhook.Description, webhook.UpdatedAt, webhook.ID)
	return err
}

func (r *WebhookRepository) UpdateSecret(id, secret string) error {
	_, err := r.db.Exec(`UPDATE webhooks SET secret = ?, updated_at = ? WHERE id = ?`, secret, time.Now().Unix(), id)
	return err
}

// Delete removes the subscription only. Delivery history is retained for
// audit; the sweep query joins on webhooks, so orphaned deliveries are never
// re-attempted.
func (r *WebhookRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhooks WHERE id = ?`, id)
	return err
}

func (r *WebhookRepository) UpdateLastTriggered(id string, timestamp int64) error {
	_, err := r.db.Exec(`UPDATE webhooks SET last_triggered_at = ? WHERE id = ?`, timestamp, id)
	return err
}

// GetActiveByEvent returns active webhooks subscribed to the given event
// type. Events are stored as a JSON array, so matching happens in app code.
func (r *WebhookRepository) GetActiveByEvent(eventType string) ([]*models.Webhook, error) {
	rows, err := r.db.Query(`SELECT ` + webhookColumns + ` FROM webhooks WHERE is_active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range w.Events {
			if e == eventType {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched, rows.Err()
}

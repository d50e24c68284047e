package repositories

import (
	"database/sql"
	"time"

	"courierly/internal/platform/models"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create persists the delivery record before the first network attempt, so a
// crash mid-flight cannot lose the audit trail. Attempts starts at 1.
func (r *DeliveryRepository) Create(delivery *models.WebhookDelivery) error {
	delivery.Attempts = 1
	delivery.CreatedAt = time.Now().Unix()
	delivery.UpdatedAt = delivery.CreatedAt

	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, attempts, response_code, response_body, success, next_retry_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, '', 0, NULL, ?, ?)
	`
	_, err := r.db.Exec(query, delivery.ID, delivery.WebhookID, delivery.Event, delivery.Payload, delivery.Attempts, delivery.CreatedAt, delivery.UpdatedAt)
	return err
}

const deliveryColumns = `id, webhook_id, event, payload, attempts, response_code, response_body, success, next_retry_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...interface{}) error }) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	var nextRetryAt sql.NullInt64

	err := row.Scan(&d.ID, &d.WebhookID, &d.Event, &d.Payload, &d.Attempts, &d.ResponseCode, &d.ResponseBody, &d.Success, &nextRetryAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if nextRetryAt.Valid {
		d.NextRetryAt = &nextRetryAt.Int64
	}
	return &d, nil
}

func (r *DeliveryRepository) GetByID(id string) (*models.WebhookDelivery, error) {
	row := r.db.QueryRow(`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = ?`, id)
	d, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// IncrementAttempts bumps the attempt counter before a retry's network call.
// The counter must reflect the true number of attempts even across a crash.
func (r *DeliveryRepository) IncrementAttempts(id string) error {
	_, err := r.db.Exec(`UPDATE webhook_deliveries SET attempts = attempts + 1, updated_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

// RecordOutcome stores the result of one attempt. nextRetryAt is nil on
// success and on terminal failure.
func (r *DeliveryRepository) RecordOutcome(id string, responseCode int, responseBody string, success bool, nextRetryAt *int64) error {
	query := `
		UPDATE webhook_deliveries
		SET response_code = ?, response_body = ?, success = ?, next_retry_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, responseCode, responseBody, success, nextRetryAt, time.Now().Unix(), id)
	return err
}

func (r *DeliveryRepository) ListByWebhook(webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE webhook_id = ? ORDER BY created_at DESC LIMIT ?`, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (r *DeliveryRepository) Stats(webhookID string, maxAttempts int) (*models.DeliveryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 AND attempts >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 AND attempts < ? THEN 1 ELSE 0 END), 0)
		FROM webhook_deliveries WHERE webhook_id = ?
	`
	var stats models.DeliveryStats
	err := r.db.QueryRow(query, maxAttempts, maxAttempts, webhookID).Scan(&stats.Total, &stats.Succeeded, &stats.Failed, &stats.Pending)
	if err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
	}
	return &stats, nil
}

// GetDue returns deliveries whose retry time has passed, excluding terminal
// failures and deliveries whose webhook was deleted or deactivated.
func (r *DeliveryRepository) GetDue(now int64, maxAttempts, limit int) ([]*models.WebhookDelivery, error) {
	query := `
		SELECT d.id, d.webhook_id, d.event, d.payload, d.attempts, d.response_code, d.response_body, d.success, d.next_retry_at, d.created_at, d.updated_at
		FROM webhook_deliveries d
		JOIN webhooks w ON w.id = d.webhook_id
		WHERE d.success = 0 AND d.attempts < ? AND d.next_retry_at IS NOT NULL AND d.next_retry_at <= ? AND w.is_active = 1
		ORDER BY d.next_retry_at ASC
		LIMIT ?
	`
	rows, err := r.db.Query(query, maxAttempts, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// Claim atomically advances next_retry_at so a concurrent sweep cannot pick
// up the same due delivery. Returns false when another sweeper won the row.
func (r *DeliveryRepository) Claim(id string, now, claimUntil int64) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE webhook_deliveries
		SET next_retry_at = ?, updated_at = ?
		WHERE id = ? AND success = 0 AND next_retry_at IS NOT NULL AND next_retry_at <= ?
	`, claimUntil, now, id, now)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

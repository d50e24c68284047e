package models

type Webhook struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id"`
	URL             string   `json:"url"`
	Events          []string `json:"events"` // JSON array in DB
	Secret          string   `json:"-"`
	SecretPreview   string   `json:"secret_preview,omitempty"`
	IsActive        bool     `json:"is_active"`
	Description     string   `json:"description,omitempty"`
	LastTriggeredAt *int64   `json:"last_triggered_at,omitempty"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

// WebhookDelivery tracks one event occurrence sent to one webhook. The row is
// updated in place on each retry attempt rather than inserting a new row.
type WebhookDelivery struct {
	ID           string `json:"id"`
	WebhookID    string `json:"webhook_id"`
	Event        string `json:"event"`
	Payload      string `json:"payload"` // exact wire bytes, retained for replay
	Attempts     int    `json:"attempts"`
	ResponseCode int    `json:"response_code"` // 0 means network-level failure
	ResponseBody string `json:"response_body,omitempty"`
	Success      bool   `json:"success"`
	NextRetryAt  *int64 `json:"next_retry_at,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type DeliveryStats struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Pending     int     `json:"pending"`
	SuccessRate float64 `json:"success_rate"`
}

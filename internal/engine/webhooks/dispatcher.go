package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"courierly/internal/platform/config"
	"courierly/internal/platform/models"
	"courierly/internal/platform/repositories"
)

// wirePayload is the JSON body POSTed to subscriber endpoints. It is
// serialized exactly once per delivery; the same bytes are signed, sent and
// stored for retries.
type wirePayload struct {
	Event      string      `json:"event"`
	Timestamp  string      `json:"timestamp"`
	Data       interface{} `json:"data"`
	WebhookID  string      `json:"webhookId"`
	DeliveryID string      `json:"deliveryId"`
}

// Dispatcher fans out domain events to matching active webhooks and performs
// single delivery attempts. All HTTP state is injected at construction so
// tests can point it at local sinks.
type Dispatcher struct {
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	scheduler  *Scheduler
	client     *http.Client
	userAgent  string
	maxBody    int
}

func NewDispatcher(webhooks *repositories.WebhookRepository, deliveries *repositories.DeliveryRepository, scheduler *Scheduler, cfg config.WebhooksConfig) *Dispatcher {
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := cfg.MaxResponseBody
	if maxBody <= 0 {
		maxBody = 1000
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Courierly-Webhooks/1.0"
	}
	return &Dispatcher{
		webhooks:   webhooks,
		deliveries: deliveries,
		scheduler:  scheduler,
		client:     &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxBody:    maxBody,
	}
}

// Trigger delivers an event to every active webhook subscribed to it.
// Deliveries run concurrently and independently; one slow or failing
// subscriber neither blocks nor fails the others, and no error ever
// propagates back to the emitter of the event.
func (d *Dispatcher) Trigger(ctx context.Context, eventType string, data interface{}) {
	matched, err := d.webhooks.GetActiveByEvent(eventType)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to query webhooks for event")
		return
	}

	var wg sync.WaitGroup
	for _, webhook := range matched {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := d.Deliver(ctx, id, eventType, data); err != nil {
				log.Error().Err(err).Str("webhook_id", id).Str("event", eventType).Msg("delivery error")
			}
		}(webhook.ID)
	}
	wg.Wait()
}

// Deliver performs the first attempt of a new delivery. The delivery record
// is persisted before the network call so the attempt counter survives a
// crash mid-flight. The returned record reflects the attempt's outcome.
func (d *Dispatcher) Deliver(ctx context.Context, webhookID, eventType string, data interface{}) (*models.WebhookDelivery, error) {
	webhook, err := d.webhooks.GetByID(webhookID)
	if err != nil {
		return nil, err
	}
	if webhook == nil || !webhook.IsActive {
		return nil, nil
	}

	deliveryID := "whd_" + uuid.New().String()
	payload, err := json.Marshal(wirePayload{
		Event:      eventType,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Data:       data,
		WebhookID:  webhook.ID,
		DeliveryID: deliveryID,
	})
	if err != nil {
		return nil, err
	}

	delivery := &models.WebhookDelivery{
		ID:        deliveryID,
		WebhookID: webhook.ID,
		Event:     eventType,
		Payload:   string(payload),
	}
	if err := d.deliveries.Create(delivery); err != nil {
		return nil, err
	}

	d.attempt(ctx, webhook, delivery, payload)
	return delivery, nil
}

// Redeliver re-attempts a previously failed delivery using its stored wire
// bytes. The attempt counter is bumped before the network call.
func (d *Dispatcher) Redeliver(ctx context.Context, delivery *models.WebhookDelivery) error {
	webhook, err := d.webhooks.GetByID(delivery.WebhookID)
	if err != nil {
		return err
	}
	if webhook == nil || !webhook.IsActive {
		return nil
	}

	if err := d.deliveries.IncrementAttempts(delivery.ID); err != nil {
		return err
	}
	delivery.Attempts++

	d.attempt(ctx, webhook, delivery, []byte(delivery.Payload))
	return nil
}

// attempt performs one signed POST and records its outcome. The payload is
// signed as-is; receivers verify the HMAC over the raw body bytes.
func (d *Dispatcher) attempt(ctx context.Context, webhook *models.Webhook, delivery *models.WebhookDelivery, payload []byte) {
	signature := Sign(webhook.Secret, payload)

	responseCode := 0
	responseBody := ""

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		responseBody = err.Error()
	} else {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", d.userAgent)
		req.Header.Set("X-Courierly-Signature", signature)
		req.Header.Set("X-Courierly-Event", delivery.Event)
		req.Header.Set("X-Courierly-Webhook", webhook.ID)
		req.Header.Set("X-Courierly-Delivery", delivery.ID)

		resp, err := d.client.Do(req)
		if err != nil {
			// Network-level failure: sentinel code 0, error text as body.
			responseBody = err.Error()
		} else {
			responseCode = resp.StatusCode
			body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(d.maxBody)))
			resp.Body.Close()
			responseBody = string(body)
		}
	}
	if len(responseBody) > d.maxBody {
		responseBody = responseBody[:d.maxBody]
	}

	success := responseCode >= 200 && responseCode < 300

	var nextRetryAt *int64
	if !success {
		nextRetryAt = d.scheduler.NextRetryAt(delivery.Attempts)
	}

	if err := d.deliveries.RecordOutcome(delivery.ID, responseCode, responseBody, success, nextRetryAt); err != nil {
		log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to record delivery outcome")
	}
	if err := d.webhooks.UpdateLastTriggered(webhook.ID, time.Now().Unix()); err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("failed to update last_triggered_at")
	}

	delivery.ResponseCode = responseCode
	delivery.ResponseBody = responseBody
	delivery.Success = success
	delivery.NextRetryAt = nextRetryAt

	evt := log.Info()
	if !success {
		evt = log.Warn()
	}
	evt.Str("webhook_id", webhook.ID).
		Str("delivery_id", delivery.ID).
		Str("event", delivery.Event).
		Int("attempt", delivery.Attempts).
		Int("status", responseCode).
		Bool("success", success).
		Msg("webhook delivery attempt")
}

// SendTest performs a synchronous test delivery of the reserved test event
// to one webhook and returns the real outcome of the single attempt.
func (d *Dispatcher) SendTest(ctx context.Context, webhookID string) (*models.WebhookDelivery, error) {
	data := map[string]interface{}{
		"message": "This is a test event from Courierly.",
	}
	return d.Deliver(ctx, webhookID, EventWebhookTest, data)
}

package webhooks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"courierly/internal/platform/models"
	"courierly/internal/platform/repositories"
)

// MaxAttempts bounds how many times a single delivery is tried. A delivery
// that fails this many times is terminally failed and never swept again.
const MaxAttempts = 5

// backoffSchedule is indexed by the attempt number that just failed:
// 1 min, 5 min, 15 min, 1 hour, 6 hours.
var backoffSchedule = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
}

// claimWindow is how far a sweep pushes next_retry_at forward while a
// redelivery is in flight. If the process dies mid-attempt, a later sweep
// re-picks the row after the window elapses.
const claimWindow = 15 * time.Minute

// Redeliverer re-attempts a previously failed delivery using its stored
// payload. Implemented by Dispatcher.
type Redeliverer interface {
	Redeliver(ctx context.Context, delivery *models.WebhookDelivery) error
}

// Scheduler owns the bounded-retry policy and the externally triggered
// sweep over overdue deliveries.
type Scheduler struct {
	deliveries *repositories.DeliveryRepository
	batchSize  int
}

func NewScheduler(deliveries *repositories.DeliveryRepository, batchSize int) *Scheduler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{deliveries: deliveries, batchSize: batchSize}
}

// NextRetryAt returns the unix time of the next attempt given how many
// attempts have already been made, or nil once the budget is exhausted.
func (s *Scheduler) NextRetryAt(attempts int) *int64 {
	if attempts >= MaxAttempts {
		return nil
	}
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	at := time.Now().Add(backoffSchedule[idx]).Unix()
	return &at
}

// Sweep finds deliveries whose retry time has passed and re-attempts each.
// Every due row is claimed with a conditional update before dispatch, so a
// concurrent sweep loses the race on the same row and skips it instead of
// double-sending. Returns the number of deliveries re-attempted.
func (s *Scheduler) Sweep(ctx context.Context, redeliver Redeliverer) (int, error) {
	now := time.Now().Unix()
	due, err := s.deliveries.GetDue(now, MaxAttempts, s.batchSize)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for _, delivery := range due {
		claimed, err := s.deliveries.Claim(delivery.ID, now, time.Now().Add(claimWindow).Unix())
		if err != nil {
			log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to claim delivery")
			continue
		}
		if !claimed {
			// Another sweeper got there first.
			continue
		}

		if err := redeliver.Redeliver(ctx, delivery); err != nil {
			log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("redelivery failed")
			continue
		}
		attempted++
	}
	return attempted, nil
}

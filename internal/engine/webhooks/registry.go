package webhooks

import (
	"net/url"

	"courierly/internal/pkg/errors"
	"courierly/internal/pkg/secrets"
	"courierly/internal/platform/models"
	"courierly/internal/platform/repositories"
)

// Registry owns webhook subscription records and enforces ownership on every
// read and mutation.
type Registry struct {
	webhooks *repositories.WebhookRepository
}

func NewRegistry(webhooks *repositories.WebhookRepository) *Registry {
	return &Registry{webhooks: webhooks}
}

// UpdatePatch carries the mutable fields of a subscription. Nil pointers and
// a nil Events slice mean "leave unchanged". The secret is not patchable;
// that is what RotateSecret is for.
type UpdatePatch struct {
	URL         *string  `json:"url"`
	Events      []string `json:"events"`
	IsActive    *bool    `json:"is_active"`
	Description *string  `json:"description"`
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.NewValidationError("url", "must be a valid absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewValidationError("url", "scheme must be http or https")
	}
	return nil
}

func validateEvents(events []string) error {
	if len(events) == 0 {
		return errors.NewValidationError("events", "at least one event type is required")
	}
	for _, e := range events {
		if !IsRecognized(e) {
			return errors.NewValidationError("events", "unrecognized event type: "+e)
		}
	}
	return nil
}

// Create validates input, generates a fresh secret and persists the
// subscription. The returned record carries the full secret; this is the
// only time it is exposed outside rotation.
func (r *Registry) Create(ownerID, rawURL string, events []string, description string) (*models.Webhook, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if err := validateEvents(events); err != nil {
		return nil, err
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, err
	}

	webhook := &models.Webhook{
		OwnerID:     ownerID,
		URL:         rawURL,
		Events:      events,
		Secret:      secret,
		Description: description,
	}
	if err := r.webhooks.Create(webhook); err != nil {
		return nil, err
	}
	return webhook, nil
}

// Get returns the subscription after checking the caller owns it. Forbidden
// is returned without leaking any field of the record.
func (r *Registry) Get(id, callerID string) (*models.Webhook, error) {
	webhook, err := r.webhooks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if webhook == nil {
		return nil, errors.ErrNotFound
	}
	if webhook.OwnerID != callerID {
		return nil, errors.ErrForbidden
	}
	return webhook, nil
}

func (r *Registry) List(ownerID string) ([]*models.Webhook, error) {
	return r.webhooks.ListByOwner(ownerID)
}

func (r *Registry) Update(id, callerID string, patch UpdatePatch) (*models.Webhook, error) {
	webhook, err := r.Get(id, callerID)
	if err != nil {
		return nil, err
	}

	if patch.URL != nil {
		if err := validateURL(*patch.URL); err != nil {
			return nil, err
		}
		webhook.URL = *patch.URL
	}
	if patch.Events != nil {
		if err := validateEvents(patch.Events); err != nil {
			return nil, err
		}
		webhook.Events = patch.Events
	}
	if patch.IsActive != nil {
		webhook.IsActive = *patch.IsActive
	}
	if patch.Description != nil {
		webhook.Description = *patch.Description
	}

	if err := r.webhooks.Update(webhook); err != nil {
		return nil, err
	}
	return webhook, nil
}

// RotateSecret replaces the stored secret, invalidating signatures produced
// with the old one. The new secret is returned in full exactly once.
func (r *Registry) RotateSecret(id, callerID string) (*models.Webhook, error) {
	webhook, err := r.Get(id, callerID)
	if err != nil {
		return nil, err
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	if err := r.webhooks.UpdateSecret(id, secret); err != nil {
		return nil, err
	}
	webhook.Secret = secret
	return webhook, nil
}

func (r *Registry) Delete(id, callerID string) error {
	if _, err := r.Get(id, callerID); err != nil {
		return err
	}
	return r.webhooks.Delete(id)
}

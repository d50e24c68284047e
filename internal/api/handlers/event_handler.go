package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"courierly/internal/engine/webhooks"
	"courierly/internal/pkg/errors"
)

// EventHandler accepts domain events from the rest of the platform and hands
// them to the dispatcher. Fan-out happens in the background; emitting an
// event can never fail because a subscriber is down.
type EventHandler struct {
	dispatcher *webhooks.Dispatcher
}

func NewEventHandler(dispatcher *webhooks.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: dispatcher}
}

type publishEventRequest struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if !webhooks.IsRecognized(req.Event) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unrecognized event type", map[string]string{"field": "event"})
		return
	}

	// The request context dies when this handler returns; deliveries get a
	// fresh one so in-flight POSTs are not cancelled.
	go h.dispatcher.Trigger(context.Background(), req.Event, req.Data)

	w.WriteHeader(http.StatusAccepted)
}

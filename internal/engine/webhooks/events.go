package webhooks

// Event types emitted by the platform. Webhook subscriptions may only
// reference names from this set.
const (
	EventUserCreated            = "user.created"
	EventUserUpdated            = "user.updated"
	EventUserDeleted            = "user.deleted"
	EventProfileUpdated         = "profile.updated"
	EventCollaborationCreated   = "collaboration.created"
	EventCollaborationUpdated   = "collaboration.updated"
	EventCollaborationCompleted = "collaboration.completed"
	EventGroupCreated           = "group.created"
	EventGroupMemberAdded       = "group.member.added"
	EventGroupMemberRemoved     = "group.member.removed"
	EventMessageSent            = "message.sent"
	EventNotificationSent       = "notification.sent"

	// EventWebhookTest is reserved for the synchronous test endpoint and is
	// not subscribable.
	EventWebhookTest = "webhook.test"
)

var recognizedEvents = map[string]bool{
	EventUserCreated:            true,
	EventUserUpdated:            true,
	EventUserDeleted:            true,
	EventProfileUpdated:         true,
	EventCollaborationCreated:   true,
	EventCollaborationUpdated:   true,
	EventCollaborationCompleted: true,
	EventGroupCreated:           true,
	EventGroupMemberAdded:       true,
	EventGroupMemberRemoved:     true,
	EventMessageSent:            true,
	EventNotificationSent:       true,
}

// IsRecognized reports whether the event name belongs to the subscribable
// enumeration. The test event is deliberately excluded.
func IsRecognized(event string) bool {
	return recognizedEvents[event]
}

// RecognizedEvents returns the subscribable event names, for API responses.
func RecognizedEvents() []string {
	events := make([]string, 0, len(recognizedEvents))
	for e := range recognizedEvents {
		events = append(events, e)
	}
	return events
}

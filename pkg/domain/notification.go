package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification types the backend currently dispatches. The backend filters
// the list by the caller's role permissions, and may add types over time.
const (
	NotifTypeNewPublicCase               = "new_public_case"
	NotifTypeFieldSearchParticipantAdded = "field_search_participant_added"
)

// KnownNotificationTypes lists the types this client has labels for.
var KnownNotificationTypes = []string{
	NotifTypeNewPublicCase,
	NotifTypeFieldSearchParticipantAdded,
}

// KnownNotificationType returns true if t is one of KnownNotificationTypes.
func KnownNotificationType(t string) bool {
	for _, k := range KnownNotificationTypes {
		if k == t {
			return true
		}
	}
	return false
}

// NotificationSetting controls whether one notification type is dispatched
// to the owner. It is independent of whether a subscription exists.
type NotificationSetting struct {
	NotificationType string `json:"notification_type"`
	Enabled          bool   `json:"enabled"`
	Label            string `json:"label"`
	Description      string `json:"description"`
}

// TestNotificationRequest asks the backend to push a test message to the caller.
type TestNotificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// TestNotificationResponse is the backend's report for a test push.
type TestNotificationResponse struct {
	Message string         `json:"message"`
	Result  map[string]any `json:"result"`
}

// NotificationOptions are the display options of a rendered notification.
type NotificationOptions struct {
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge"`
	Tag                string         `json:"tag"`
	Data               map[string]any `json:"data"`
	RequireInteraction bool           `json:"requireInteraction"`
}

// Notification is a notification the delivery worker has shown to the user.
type Notification struct {
	ID      uuid.UUID           `json:"id"`
	Title   string              `json:"title"`
	Options NotificationOptions `json:"options"`
	ShownAt time.Time           `json:"shown_at"`
}

// URL returns the data.url value of the notification, or "" if none.
func (n Notification) URL() string {
	if n.Options.Data == nil {
		return ""
	}
	s, _ := n.Options.Data["url"].(string) //nolint:errcheck // non-string means no url
	return s
}

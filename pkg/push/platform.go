package push

import (
	"context"

	"github.com/naveenspark/beacon/pkg/domain"
)

// Platform is the device's push capability: a capability query, the
// permission prompt and the subscription primitive. Implementations own
// the single live subscription handle of the device.
type Platform interface {
	// Supported reports whether the device can receive push messages at all.
	Supported() bool
	// Permission returns the current permission grant without prompting.
	Permission() domain.PermissionState
	// RequestPermission prompts the user and blocks until they answer.
	// A device that already has a decision returns it without prompting.
	RequestPermission(ctx context.Context) (domain.PermissionState, error)
	// Ready blocks until the delivery worker registration is active.
	Ready(ctx context.Context) (PushManager, error)
}

// PushManager creates and looks up the device subscription.
type PushManager interface {
	// Subscription returns the live subscription, or nil if there is none.
	Subscription(ctx context.Context) (Subscription, error)
	// Subscribe opens a new push channel authorized against the server key.
	Subscribe(ctx context.Context, applicationServerKey []byte) (Subscription, error)
}

// Subscription is an opaque handle to the device's open push channel.
type Subscription interface {
	Endpoint() string
	Keys() domain.SubscriptionKeys
	Unsubscribe(ctx context.Context) error
}

// Registry is the backend subscription registry. *client.Client satisfies it.
type Registry interface {
	VAPIDPublicKey(ctx context.Context) (string, error)
	RegisterSubscription(ctx context.Context, req domain.SubscriptionRequest) (*domain.PushSubscription, error)
	ListSubscriptions(ctx context.Context) ([]domain.PushSubscription, error)
	DeleteSubscription(ctx context.Context, id int64) error
}

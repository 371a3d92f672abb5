// Package push drives the device's notification permission, its platform
// push subscription and the backend subscription registry into agreement.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/naveenspark/beacon/pkg/domain"
)

// DefaultUserAgent is attached to registered subscriptions unless overridden.
var DefaultUserAgent = "beacon (" + runtime.GOOS + "/" + runtime.GOARCH + ")"

// State is the client-visible view of the controller. Subscribed is a
// cache of the last platform query, not the source of truth.
type State struct {
	Supported  bool
	Permission domain.PermissionState
	Subscribed bool
	Loading    bool
	LastError  error
}

// Controller is the subscription state machine. Operations are not
// serialized: callers must not trigger a second operation while Loading.
// If they race anyway, the last writer wins on Loading and LastError.
type Controller struct {
	platform  Platform
	registry  Registry
	userAgent string
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithUserAgent sets the user agent recorded with registered subscriptions.
func WithUserAgent(ua string) Option {
	return func(c *Controller) {
		c.userAgent = ua
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates a controller over the given platform and registry.
func New(platform Platform, registry Registry, opts ...Option) *Controller {
	c := &Controller{
		platform:  platform,
		registry:  registry,
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Permission = domain.PermissionDefault
	c.state.Supported = platform.Supported()
	if c.state.Supported {
		c.state.Permission = platform.Permission()
	}
	return c
}

// State returns a snapshot of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CheckSubscription refreshes Subscribed from the platform. It never
// talks to the backend and is safe to call any number of times.
func (c *Controller) CheckSubscription(ctx context.Context) (err error) {
	c.begin()
	defer func() { c.finish("check", err) }()

	if !c.platform.Supported() {
		return ErrUnsupported
	}
	c.setPermission(c.platform.Permission())

	pm, err := c.platform.Ready(ctx)
	if err != nil {
		return fmt.Errorf("push.CheckSubscription: wait for worker: %w", err)
	}
	sub, err := pm.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("push.CheckSubscription: get subscription: %w", err)
	}
	c.setSubscribed(sub != nil)
	return nil
}

// RequestPermission prompts the user and, when they grant permission,
// continues straight into subscribing. It blocks for as long as the user
// takes to answer.
func (c *Controller) RequestPermission(ctx context.Context) (err error) {
	c.begin()
	defer func() { c.finish("request_permission", err) }()

	if !c.platform.Supported() {
		return ErrUnsupported
	}
	result, err := c.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("push.RequestPermission: %w", err)
	}
	c.setPermission(result)

	switch result {
	case domain.PermissionGranted:
		return c.subscribe(ctx)
	case domain.PermissionDenied:
		return ErrPermissionDenied
	}
	return nil
}

// Subscribe replaces any existing platform subscription with a fresh one
// and registers it with the backend.
//
// If registration fails, the new platform subscription stays live while
// the backend has no record of it. The next Subscribe or Unsubscribe
// resolves that; nothing is rolled back here.
func (c *Controller) Subscribe(ctx context.Context) (err error) {
	c.begin()
	defer func() { c.finish("subscribe", err) }()
	return c.subscribe(ctx)
}

func (c *Controller) subscribe(ctx context.Context) error {
	if !c.platform.Supported() {
		return ErrUnsupported
	}
	if p := c.platform.Permission(); p != domain.PermissionGranted {
		c.setPermission(p)
		return fmt.Errorf("%w: permission is %s", ErrPermissionDenied, p)
	}

	if err := c.resubscribe(ctx); err != nil {
		c.setSubscribed(false)
		return err
	}
	c.setSubscribed(true)
	return nil
}

func (c *Controller) resubscribe(ctx context.Context) error {
	pm, err := c.platform.Ready(ctx)
	if err != nil {
		return fmt.Errorf("push.Subscribe: wait for worker: %w", err)
	}

	// Release first: at most one live handle per device.
	existing, err := pm.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("push.Subscribe: get subscription: %w", err)
	}
	if existing != nil {
		if err := existing.Unsubscribe(ctx); err != nil {
			return fmt.Errorf("push.Subscribe: release previous subscription: %w", err)
		}
		c.logger.Debug("released previous push subscription", "endpoint", existing.Endpoint())
	}

	// The server key may rotate, so it is never cached.
	rawKey, err := c.registry.VAPIDPublicKey(ctx)
	if err != nil {
		return &TransportError{Op: "fetch server key", Err: err}
	}
	key, err := DecodeServerKey(rawKey)
	if err != nil {
		return err
	}

	sub, err := pm.Subscribe(ctx, key)
	if err != nil {
		return fmt.Errorf("push.Subscribe: platform subscribe: %w", err)
	}

	if sub == nil {
		return ErrInvalidSubscription
	}
	endpoint, keys := sub.Endpoint(), sub.Keys()
	if endpoint == "" || keys.P256dh == "" || keys.Auth == "" {
		return ErrInvalidSubscription
	}

	rec, err := c.registry.RegisterSubscription(ctx, domain.SubscriptionRequest{
		Endpoint:  endpoint,
		Keys:      keys,
		UserAgent: c.userAgent,
	})
	if err != nil {
		return &TransportError{Op: "register subscription", Err: err}
	}
	c.logger.Info("push subscription registered", "id", rec.ID, "endpoint", endpoint)
	return nil
}

// Unsubscribe releases the platform subscription and then deletes every
// backend record the caller owns, including records left behind by other
// devices and sessions. Deletions run concurrently; the operation only
// fails if every one of them fails.
func (c *Controller) Unsubscribe(ctx context.Context) (err error) {
	c.begin()
	defer func() { c.finish("unsubscribe", err) }()

	if !c.platform.Supported() {
		return ErrUnsupported
	}
	pm, err := c.platform.Ready(ctx)
	if err != nil {
		return fmt.Errorf("push.Unsubscribe: wait for worker: %w", err)
	}
	sub, err := pm.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("push.Unsubscribe: get subscription: %w", err)
	}
	if sub == nil {
		c.setSubscribed(false)
		return nil
	}
	if err := sub.Unsubscribe(ctx); err != nil {
		return fmt.Errorf("push.Unsubscribe: release subscription: %w", err)
	}
	c.setSubscribed(false)

	records, err := c.registry.ListSubscriptions(ctx)
	if err != nil {
		return &TransportError{Op: "list subscriptions", Err: err}
	}
	return c.deleteAll(ctx, records)
}

func (c *Controller) deleteAll(ctx context.Context, records []domain.PushSubscription) error {
	if len(records) == 0 {
		return nil
	}

	// Plain Group, not WithContext: one failed delete must not cancel the rest.
	var g errgroup.Group
	errs := make([]error, len(records))
	for i, rec := range records {
		g.Go(func() error {
			err := c.registry.DeleteSubscription(ctx, rec.ID)
			if err != nil {
				c.logger.Warn("delete push subscription record", "id", rec.ID, "error", err)
			}
			errs[i] = err
			return err
		})
	}
	g.Wait() //nolint:errcheck // per-record errors are collected in errs

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(records) {
		return &TransportError{
			Op:  "delete subscriptions",
			Err: fmt.Errorf("%w: %w", ErrUnsubscribeIncomplete, errors.Join(errs...)),
		}
	}
	if failed > 0 {
		c.logger.Info("some push subscription records were left for later cleanup", "failed", failed, "total", len(records))
	}
	return nil
}

func (c *Controller) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Loading = true
	c.state.LastError = nil
}

func (c *Controller) finish(op string, err error) {
	c.mu.Lock()
	c.state.Loading = false
	c.state.LastError = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("push operation failed", "op", op, "error", err)
	}
}

func (c *Controller) setPermission(p domain.PermissionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Permission = p
}

func (c *Controller) setSubscribed(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Subscribed = v
}

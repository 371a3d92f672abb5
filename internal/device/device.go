// Package device is a local Web Push user agent. It owns the permission
// grant and the single live push channel of this machine, and receives
// encrypted push messages over HTTP on behalf of the delivery worker.
package device

import (
	"context"
	"crypto/ecdh"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/naveenspark/beacon/pkg/domain"
	"github.com/naveenspark/beacon/pkg/push"
)

// Prompter asks the user whether origin may show notifications. Returning
// PermissionDefault means the prompt was dismissed without an answer.
type Prompter interface {
	PromptPermission(ctx context.Context, origin string) (domain.PermissionState, error)
}

// Activation reports when the delivery worker is active.
// *worker.Registration satisfies it.
type Activation interface {
	Active() <-chan struct{}
}

// Options configures a Device.
type Options struct {
	// PublicURL is the base of every endpoint handed to the backend.
	PublicURL string
	// Origin is the application origin shown in the permission prompt.
	Origin     string
	StateDir   string
	Prompter   Prompter
	Activation Activation
	// Disabled turns the device into one without push support.
	Disabled bool
	Logger   *slog.Logger
}

// Device implements push.Platform.
type Device struct {
	base       *url.URL
	origin     string
	store      *Store
	prompter   Prompter
	activation Activation
	disabled   bool
	logger     *slog.Logger

	mu   sync.Mutex
	st   state
	live *channel
	// seen is the state file version st was read from or written as.
	seen os.FileInfo
}

// New loads the persisted device state and restores the live channel, if any.
func New(opts Options) (*Device, error) {
	base, err := url.Parse(strings.TrimRight(opts.PublicURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("device.New: invalid public url %q", opts.PublicURL)
	}
	if opts.StateDir == "" {
		return nil, fmt.Errorf("device.New: state dir is required")
	}

	d := &Device{
		base:       base,
		origin:     opts.Origin,
		store:      NewStore(opts.StateDir),
		prompter:   opts.Prompter,
		activation: opts.Activation,
		disabled:   opts.Disabled,
		logger:     opts.Logger,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}

	seen := d.store.stat()
	st, err := d.store.load()
	if err != nil {
		return nil, err
	}
	d.apply(st)
	d.seen = seen
	return d, nil
}

// apply installs st as the current state. The live channel pointer is kept
// when st still describes it, so existing handles stay valid.
func (d *Device) apply(st state) {
	d.st = st
	switch {
	case st.Subscription == nil:
		d.live = nil
	case d.live != nil && d.live.creds.ID == st.Subscription.ID:
	default:
		ch, err := restoreChannel(st.Subscription)
		if err != nil {
			d.logger.Warn("discarding unreadable push channel", "error", err)
			d.st.Subscription = nil
			d.live = nil
			return
		}
		d.live = ch
	}
}

// syncLocked reloads the state when another process has rewritten the
// state file since it was last read or written here. d.mu must be held.
func (d *Device) syncLocked() {
	info := d.store.stat()
	if unchanged(info, d.seen) {
		return
	}
	if info == nil {
		d.apply(state{Permission: domain.PermissionDefault})
		d.seen = nil
		return
	}
	st, err := d.store.load()
	if err != nil {
		d.logger.Warn("ignoring unreadable device state", "error", err)
		d.seen = info
		return
	}
	prev := d.endpointLocked()
	d.apply(st)
	d.seen = info
	if next := d.endpointLocked(); next != prev {
		d.logger.Info("push channel changed on disk", "endpoint", next)
	}
}

// persistLocked writes st and makes it current only once it is on disk.
// d.mu must be held.
func (d *Device) persistLocked(st state) error {
	info, err := d.store.save(st)
	if err != nil {
		return err
	}
	d.apply(st)
	d.seen = info
	return nil
}

// Supported reports whether the device can receive push messages.
func (d *Device) Supported() bool {
	return !d.disabled
}

// Permission returns the persisted grant.
func (d *Device) Permission() domain.PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncLocked()
	return d.st.Permission
}

// RequestPermission prompts only while no decision has been made.
func (d *Device) RequestPermission(ctx context.Context) (domain.PermissionState, error) {
	if d.disabled {
		return domain.PermissionDenied, push.ErrUnsupported
	}
	current := d.Permission()
	if current != domain.PermissionDefault {
		return current, nil
	}
	if d.prompter == nil {
		return domain.PermissionDefault, nil
	}

	answer, err := d.prompter.PromptPermission(ctx, d.origin)
	if err != nil {
		return domain.PermissionDefault, fmt.Errorf("device.RequestPermission: %w", err)
	}
	if answer == domain.PermissionDefault || !domain.ValidPermission(answer) {
		return domain.PermissionDefault, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncLocked()
	next := d.st
	next.Permission = answer
	if err := d.persistLocked(next); err != nil {
		return domain.PermissionDefault, err
	}
	d.logger.Info("notification permission decided", "permission", answer)
	return answer, nil
}

// ResetPermission forgets the decision so the next request prompts again.
func (d *Device) ResetPermission() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncLocked()
	next := d.st
	next.Permission = domain.PermissionDefault
	return d.persistLocked(next)
}

// Ready blocks until the worker registration is active.
func (d *Device) Ready(ctx context.Context) (push.PushManager, error) {
	if d.disabled {
		return nil, push.ErrUnsupported
	}
	if d.activation != nil {
		select {
		case <-d.activation.Active():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &manager{d: d}, nil
}

// Endpoint returns the endpoint of the live channel, or "".
func (d *Device) Endpoint() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncLocked()
	return d.endpointLocked()
}

func (d *Device) endpointLocked() string {
	if d.live == nil {
		return ""
	}
	return d.live.creds.Endpoint
}

// lookup returns the live channel behind endpoint id, or nil. A channel
// opened or closed by another process sharing the state dir is picked up
// here.
func (d *Device) lookup(id string) *channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncLocked()
	if d.live == nil || d.live.creds.ID != id {
		return nil
	}
	return d.live
}

// audience is the origin push services sign VAPID tokens for.
func (d *Device) audience() string {
	return d.base.Scheme + "://" + d.base.Host
}

func (d *Device) endpointFor(id string) string {
	return d.base.JoinPath("push", id).String()
}

// channel is an open push channel with its decryption key.
type channel struct {
	creds credentials
	priv  *ecdh.PrivateKey
}

func restoreChannel(c *credentials) (*channel, error) {
	priv, err := ecdh.P256().NewPrivateKey(c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("restore private key: %w", err)
	}
	if len(c.Auth) != authSecretLen {
		return nil, fmt.Errorf("restore auth secret: got %d bytes", len(c.Auth))
	}
	return &channel{creds: *c, priv: priv}, nil
}

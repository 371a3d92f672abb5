package device

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/beacon/pkg/domain"
	"github.com/naveenspark/beacon/pkg/push"
)

const authSecretLen = 16

type manager struct {
	d *Device
}

func (m *manager) Subscription(ctx context.Context) (push.Subscription, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	m.d.syncLocked()
	if m.d.live == nil {
		return nil, nil
	}
	return &handle{d: m.d, ch: m.d.live}, nil
}

// Subscribe replaces any live channel with a new one bound to the server key.
func (m *manager) Subscribe(ctx context.Context, applicationServerKey []byte) (push.Subscription, error) {
	if _, err := ecdh.P256().NewPublicKey(applicationServerKey); err != nil {
		return nil, fmt.Errorf("%w: not an uncompressed P-256 point", push.ErrInvalidServerKey)
	}

	d := m.d
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncLocked()
	if d.st.Permission != domain.PermissionGranted {
		return nil, push.ErrPermissionDenied
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("device.Subscribe: %w", err)
	}
	auth := make([]byte, authSecretLen)
	if _, err := rand.Read(auth); err != nil {
		return nil, fmt.Errorf("device.Subscribe: %w", err)
	}
	id := uuid.NewString()
	creds := credentials{
		ID:         id,
		Endpoint:   d.endpointFor(id),
		PrivateKey: priv.Bytes(),
		Auth:       auth,
		ServerKey:  append([]byte(nil), applicationServerKey...),
		CreatedAt:  time.Now().UTC(),
	}

	prev := d.live
	ch := &channel{creds: creds, priv: priv}
	next := d.st
	next.Subscription = &creds
	info, err := d.store.save(next)
	if err != nil {
		return nil, err
	}
	d.st = next
	d.live = ch
	d.seen = info
	if prev != nil {
		d.logger.Info("released previous push channel", "endpoint", prev.creds.Endpoint)
	}
	d.logger.Info("push channel opened", "endpoint", creds.Endpoint)
	return &handle{d: d, ch: ch}, nil
}

// handle is the push.Subscription view of one channel. It stays valid only
// while its channel is the live one.
type handle struct {
	d  *Device
	ch *channel
}

func (h *handle) Endpoint() string {
	return h.ch.creds.Endpoint
}

func (h *handle) Keys() domain.SubscriptionKeys {
	return domain.SubscriptionKeys{
		P256dh: base64.RawURLEncoding.EncodeToString(h.ch.priv.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(h.ch.creds.Auth),
	}
}

// Unsubscribe closes the channel. Releasing a stale handle is a no-op.
func (h *handle) Unsubscribe(ctx context.Context) error {
	d := h.d
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncLocked()
	if d.live != h.ch {
		return nil
	}
	next := d.st
	next.Subscription = nil
	if err := d.persistLocked(next); err != nil {
		return err
	}
	d.logger.Info("push channel closed", "endpoint", h.ch.creds.Endpoint)
	return nil
}

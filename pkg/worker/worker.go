// Package worker is the detached delivery worker. It runs its own event
// loop, independent of the subscription controller, and is reached only
// through dispatched events: install, activate, push and notification click.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/beacon/pkg/domain"
)

// Defaults applied to every field a push payload leaves out.
const (
	DefaultTitle = "Milena CRM"
	DefaultIcon  = "/android-chrome-192x192.png"
	DefaultBadge = "/favicon-32x32.png"
	DefaultTag   = "default"
)

// ErrStopped is returned by Dispatch once the worker loop has exited.
var ErrStopped = errors.New("worker stopped")

// Renderer shows a notification to the user.
type Renderer interface {
	ShowNotification(ctx context.Context, n domain.Notification) error
}

// Window is an open application window.
type Window interface {
	URL() string
	Focus(ctx context.Context) error
}

// MatchOptions filters the windows returned by Clients.MatchAll.
type MatchOptions struct {
	// IncludeUncontrolled also returns windows this worker does not control yet.
	IncludeUncontrolled bool
}

// Clients is the worker's view of open application windows.
type Clients interface {
	Claim(ctx context.Context) error
	MatchAll(ctx context.Context, opts MatchOptions) ([]Window, error)
	OpenWindow(ctx context.Context, url string) (Window, error)
}

// Precacher stores static assets for offline use during install.
type Precacher interface {
	Precache(ctx context.Context) error
}

// Event is one of InstallEvent, ActivateEvent, PushEvent or ClickEvent.
type Event interface {
	eventName() string
}

// InstallEvent installs the worker.
type InstallEvent struct{}

// ActivateEvent activates the worker and claims open windows.
type ActivateEvent struct{}

// PushEvent carries the decrypted payload of an inbound push message.
type PushEvent struct {
	Data []byte
}

// ClickEvent is the user's interaction with a delivered notification.
type ClickEvent struct {
	Notification domain.Notification
}

func (InstallEvent) eventName() string  { return "install" }
func (ActivateEvent) eventName() string { return "activate" }
func (PushEvent) eventName() string     { return "push" }
func (ClickEvent) eventName() string    { return "notificationclick" }

// Config holds the worker's collaborators.
type Config struct {
	// Origin is the application origin click targets are resolved against.
	Origin string
	// AppName is the fallback notification title.
	AppName   string
	Renderer  Renderer
	Clients   Clients
	Precacher Precacher
	Logger    *slog.Logger
	// Now is used for notification timestamps; defaults to time.Now.
	Now func() time.Time
}

type envelope struct {
	ctx   context.Context
	event Event
	done  chan error
}

// Worker processes events one at a time on its own goroutine.
type Worker struct {
	origin    *url.URL
	appName   string
	renderer  Renderer
	clients   Clients
	precacher Precacher
	logger    *slog.Logger
	now       func() time.Time

	inbox    chan envelope
	stopped  chan struct{}
	reg      *Registration
	stopOnce sync.Once
}

// New validates cfg and creates a worker. Call Run to start its loop.
func New(cfg Config) (*Worker, error) {
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("worker.New: Renderer is required")
	}
	if cfg.Clients == nil {
		return nil, fmt.Errorf("worker.New: Clients is required")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("worker.New: invalid origin %q", cfg.Origin)
	}
	origin = &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: "/"}

	w := &Worker{
		origin:    origin,
		appName:   cfg.AppName,
		renderer:  cfg.Renderer,
		clients:   cfg.Clients,
		precacher: cfg.Precacher,
		logger:    cfg.Logger,
		now:       cfg.Now,
		inbox:     make(chan envelope),
		stopped:   make(chan struct{}),
		reg:       newRegistration(),
	}
	if w.appName == "" {
		w.appName = DefaultTitle
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

// Registration returns the worker's registration, which reports activation.
func (w *Worker) Registration() *Registration {
	return w.reg
}

// Run processes events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer w.stopOnce.Do(func() { close(w.stopped) })
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-w.inbox:
			env.done <- w.handle(env.ctx, env.event)
		}
	}
}

// Dispatch hands an event to the worker and waits until it is fully
// handled. The event stays open until its side effects complete.
func (w *Worker) Dispatch(ctx context.Context, ev Event) error {
	env := envelope{ctx: ctx, event: ev, done: make(chan error, 1)}
	select {
	case w.inbox <- env:
	case <-w.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start installs and activates the worker.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Dispatch(ctx, InstallEvent{}); err != nil {
		return err
	}
	return w.Dispatch(ctx, ActivateEvent{})
}

// Push delivers a decrypted push payload.
func (w *Worker) Push(ctx context.Context, data []byte) error {
	return w.Dispatch(ctx, PushEvent{Data: data})
}

// Click routes the user's click on a delivered notification.
func (w *Worker) Click(ctx context.Context, n domain.Notification) error {
	return w.Dispatch(ctx, ClickEvent{Notification: n})
}

func (w *Worker) handle(ctx context.Context, ev Event) error {
	var err error
	switch ev := ev.(type) {
	case InstallEvent:
		err = w.install(ctx)
	case ActivateEvent:
		err = w.activate(ctx)
	case PushEvent:
		_, err = w.showPush(ctx, ev.Data)
	case ClickEvent:
		err = w.routeClick(ctx, ev.Notification)
	default:
		err = fmt.Errorf("unknown event %T", ev)
	}
	if err != nil {
		w.logger.Error("worker event failed", "event", ev.eventName(), "error", err)
	}
	return err
}

func (w *Worker) install(ctx context.Context) error {
	if w.precacher != nil {
		if err := w.precacher.Precache(ctx); err != nil {
			return fmt.Errorf("precache: %w", err)
		}
	}
	// Skip waiting: a new worker never waits for older ones to finish.
	w.reg.setState(StateInstalled)
	w.logger.Info("worker installed")
	return nil
}

func (w *Worker) activate(ctx context.Context) error {
	w.reg.setState(StateActivating)
	if err := w.clients.Claim(ctx); err != nil {
		return fmt.Errorf("claim clients: %w", err)
	}
	w.reg.setState(StateActivated)
	w.logger.Info("worker activated")
	return nil
}

func (w *Worker) showPush(ctx context.Context, data []byte) (domain.Notification, error) {
	title, opts := ParsePayload(data, w.appName)
	n := domain.Notification{
		ID:      uuid.New(),
		Title:   title,
		Options: opts,
		ShownAt: w.now(),
	}
	w.logger.Info("push received", "tag", opts.Tag, "title", title)
	if err := w.renderer.ShowNotification(ctx, n); err != nil {
		return n, fmt.Errorf("show notification: %w", err)
	}
	return n, nil
}

// routeClick focuses a window already at the target URL, or opens one.
// It never closes the notification: the user dismisses it.
func (w *Worker) routeClick(ctx context.Context, n domain.Notification) error {
	target := w.ResolveURL(n.URL())

	windows, err := w.clients.MatchAll(ctx, MatchOptions{IncludeUncontrolled: true})
	if err != nil {
		return fmt.Errorf("match clients: %w", err)
	}
	for _, win := range windows {
		if win.URL() == target {
			w.logger.Info("focusing window", "url", target)
			return win.Focus(ctx)
		}
	}

	w.logger.Info("opening window", "url", target)
	if _, err := w.clients.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("open window: %w", err)
	}
	return nil
}

// ResolveURL resolves a notification target against the worker origin.
// Targets that resolve to another origin fall back to the application root.
func (w *Worker) ResolveURL(raw string) string {
	root := w.origin.String()
	if raw == "" {
		return root
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return root
	}
	u := w.origin.ResolveReference(ref)
	if u.Scheme != w.origin.Scheme || u.Host != w.origin.Host {
		w.logger.Warn("ignoring cross-origin notification url", "url", raw)
		return root
	}
	return u.String()
}

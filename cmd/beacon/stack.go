package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/naveenspark/beacon/internal/browser"
	"github.com/naveenspark/beacon/internal/config"
	"github.com/naveenspark/beacon/internal/device"
	"github.com/naveenspark/beacon/internal/logging"
	"github.com/naveenspark/beacon/pkg/client"
	"github.com/naveenspark/beacon/pkg/push"
	"github.com/naveenspark/beacon/pkg/worker"
)

var errNotLoggedIn = errors.New("not logged in - run 'beacon login' first or set BEACON_TOKEN")

// stack is everything between the terminal and the backend: the API
// client, the delivery worker, the local push device and the controller
// that keeps them in agreement.
type stack struct {
	cfg      config.Config
	logger   *slog.Logger
	client   *client.Client
	worker   *worker.Worker
	device   *device.Device
	receiver *device.Receiver
	ctrl     *push.Controller
}

func newStack(cfg config.Config, logger *slog.Logger, renderer worker.Renderer, prompter device.Prompter) (*stack, error) {
	c := client.New(cfg.APIURL, cfg.Token, client.WithTimeout(cfg.HTTPTimeout))

	w, err := worker.New(worker.Config{
		Origin:   cfg.AppOrigin,
		AppName:  cfg.AppName,
		Renderer: renderer,
		Clients:  browser.NewWindows(nil, logger),
		Logger:   logger.With("component", "worker"),
	})
	if err != nil {
		return nil, err
	}

	d, err := device.New(device.Options{
		PublicURL:  cfg.PublicBase(),
		Origin:     cfg.AppOrigin,
		StateDir:   cfg.StateDir,
		Prompter:   prompter,
		Activation: w.Registration(),
		Disabled:   cfg.NoReceiver,
		Logger:     logger.With("component", "device"),
	})
	if err != nil {
		return nil, err
	}

	return &stack{
		cfg:      cfg,
		logger:   logger,
		client:   c,
		worker:   w,
		device:   d,
		receiver: device.NewReceiver(d, w, logger.With("component", "receiver")),
		ctrl:     push.New(d, c, push.WithLogger(logger.With("component", "controller"))),
	}, nil
}

// start runs the worker loop in g and activates it. With listen set the
// push receiver is served in g as well.
func (s *stack) start(ctx context.Context, g *errgroup.Group, listen bool) error {
	g.Go(func() error {
		s.worker.Run(ctx)
		return nil
	})
	if err := s.worker.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if listen && s.device.Supported() {
		g.Go(func() error {
			return s.receiver.ListenAndServe(ctx, s.cfg.ListenAddr)
		})
	}
	return nil
}

// launch starts s in a group bound to a cancellable child of ctx. When
// starting fails the group is cancelled and drained before returning.
func (s *stack) launch(ctx context.Context, listen bool) (context.Context, context.CancelFunc, *errgroup.Group, error) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	if err := s.start(gctx, g, listen); err != nil {
		cancel()
		g.Wait() //nolint:errcheck // the start error is the one worth reporting
		return nil, nil, nil, err
	}
	return gctx, cancel, g, nil
}

// withStack runs fn against a started stack without the receiver, for
// commands that only change subscription state.
func withStack(ctx context.Context, cfg config.Config, logger *slog.Logger, prompter device.Prompter, fn func(context.Context, *stack) error) error {
	s, err := newStack(cfg, logger, discardRenderer{}, prompter)
	if err != nil {
		return err
	}
	ctx, cancel, g, err := s.launch(ctx, false)
	if err != nil {
		return err
	}
	err = fn(ctx, s)
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// fileLogger sends logs to <state dir>/beacon.log so command output and
// the TUI stay clean.
func fileLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	f, err := logging.OpenFile(cfg.LogPath())
	if err != nil {
		return nil, nil, err
	}
	return logging.Init(cfg.Env, cfg.LogLevel, f), f, nil
}

func requireToken(cfg config.Config) error {
	if cfg.Token == "" {
		return errNotLoggedIn
	}
	return nil
}

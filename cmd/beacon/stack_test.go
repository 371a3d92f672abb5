package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/beacon/pkg/worker"
)

// unclaimable fails activation.
type unclaimable struct{}

func (unclaimable) Claim(context.Context) error { return errors.New("no windows") }

func (unclaimable) MatchAll(context.Context, worker.MatchOptions) ([]worker.Window, error) {
	return nil, nil
}

func (unclaimable) OpenWindow(context.Context, string) (worker.Window, error) { return nil, nil }

func TestLaunchStopsWorkerWhenStartFails(t *testing.T) {
	w, err := worker.New(worker.Config{
		Origin:   "http://localhost:5173",
		AppName:  "Beacon",
		Renderer: discardRenderer{},
		Clients:  unclaimable{},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	s := &stack{worker: w}

	_, _, _, err = s.launch(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim clients")

	// The worker loop has exited, so nothing is left serving events.
	assert.ErrorIs(t, w.Push(context.Background(), []byte(`{"title":"late"}`)), worker.ErrStopped)
}

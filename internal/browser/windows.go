package browser

import (
	"context"
	"log/slog"
	"sync"

	"github.com/naveenspark/beacon/pkg/worker"
)

// Windows tracks the application pages this process has opened. It
// implements worker.Clients.
//
// A page opened in an external browser cannot be raised from here, so
// Focus only records the request.
type Windows struct {
	open   Opener
	logger *slog.Logger

	mu      sync.Mutex
	claimed bool
	windows []*window
}

// NewWindows returns a window set that opens pages with open. A nil
// opener uses Open.
func NewWindows(open Opener, logger *slog.Logger) *Windows {
	if open == nil {
		open = Open
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Windows{open: open, logger: logger}
}

// Claim marks every tracked window as controlled by the worker.
func (ws *Windows) Claim(context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.claimed = true
	for _, w := range ws.windows {
		w.controlled = true
	}
	return nil
}

// MatchAll returns the tracked windows, oldest first.
func (ws *Windows) MatchAll(_ context.Context, opts worker.MatchOptions) ([]worker.Window, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]worker.Window, 0, len(ws.windows))
	for _, w := range ws.windows {
		if w.controlled || opts.IncludeUncontrolled {
			out = append(out, w)
		}
	}
	return out, nil
}

// OpenWindow opens url and starts tracking it.
func (ws *Windows) OpenWindow(ctx context.Context, url string) (worker.Window, error) {
	if err := ws.open(ctx, url); err != nil {
		return nil, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w := &window{url: url, controlled: ws.claimed, logger: ws.logger}
	ws.windows = append(ws.windows, w)
	return w, nil
}

type window struct {
	url        string
	controlled bool
	logger     *slog.Logger
}

func (w *window) URL() string { return w.url }

func (w *window) Focus(context.Context) error {
	w.logger.Info("focus requested for open window", "url", w.url)
	return nil
}

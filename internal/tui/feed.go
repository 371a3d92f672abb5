package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/beacon/pkg/domain"
)

// Feed is the worker's renderer while the TUI is running. Notifications
// shown by the worker arrive in the inbox panel. It implements
// worker.Renderer.
type Feed struct {
	ch chan domain.Notification
}

// NewFeed creates a feed buffering up to size undisplayed notifications.
func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan domain.Notification, size)}
}

// ShowNotification queues n for the inbox. It blocks while the buffer is full.
func (f *Feed) ShowNotification(ctx context.Context, n domain.Notification) error {
	select {
	case f.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type notificationMsg struct {
	n domain.Notification
}

func waitForNotification(f *Feed) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		return notificationMsg{n: <-f.ch}
	}
}

package tui

import (
	"context"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/beacon/pkg/domain"
)

// inboxLimit caps how many delivered notifications are kept on screen.
const inboxLimit = 50

// Clicker routes a notification click. *worker.Worker satisfies it.
type Clicker interface {
	Click(ctx context.Context, n domain.Notification) error
}

type clickDoneMsg struct {
	err error
}

// inboxModel lists delivered notifications, newest first. Entries stay
// until the user dismisses them; opening one does not remove it.
type inboxModel struct {
	worker Clicker
	items  []domain.Notification
	cursor int
	err    error
}

func newInboxModel(w Clicker) inboxModel {
	return inboxModel{worker: w}
}

func (m inboxModel) add(n domain.Notification) inboxModel {
	m.items = append([]domain.Notification{n}, m.items...)
	if len(m.items) > inboxLimit {
		m.items = m.items[:inboxLimit]
	}
	if len(m.items) > 1 {
		m.cursor++
	}
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	return m
}

func (m inboxModel) Update(msg tea.Msg) (inboxModel, tea.Cmd) {
	switch msg := msg.(type) {
	case clickDoneMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "enter":
			if m.cursor >= len(m.items) || m.worker == nil {
				return m, nil
			}
			n := m.items[m.cursor]
			w := m.worker
			return m, func() tea.Msg {
				return clickDoneMsg{err: w.Click(context.Background(), n)}
			}
		case "x":
			if m.cursor >= len(m.items) {
				return m, nil
			}
			m.items = append(m.items[:m.cursor:m.cursor], m.items[m.cursor+1:]...)
			if m.cursor >= len(m.items) && m.cursor > 0 {
				m.cursor--
			}
		}
	}
	return m, nil
}

func (m inboxModel) View(width int, focused bool) string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("INBOX"))
	if len(m.items) > 0 {
		b.WriteString(" " + metaStyle.Render("("+strconv.Itoa(len(m.items))+")"))
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(rejectStyle.Render("  "+m.err.Error()) + "\n")
	}
	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("  nothing yet") + "\n")
		return b.String()
	}

	for i, n := range m.items {
		cursor := "  "
		title := normalStyle.Render(n.Title)
		if focused && i == m.cursor {
			cursor = accentStyle.Render("> ")
			title = selectedStyle.Render(n.Title)
		}
		tag := TagStyle(n.Options.Tag).Render("●")
		line := cursor + tag + " " + title + "  " + metaStyle.Render(formatTime(n.ShownAt))
		if body := oneLine(n.Options.Body); body != "" {
			line += "\n      " + dimStyle.Render(truncStr(body, width-8))
		}
		if focused && i == m.cursor {
			line = selectedRowBg.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/beacon/pkg/domain"
)

// savedFlashDuration is how long "settings saved" stays visible.
const savedFlashDuration = 2 * time.Second

// SettingsClient is the part of the backend API the settings panel uses.
// *client.Client satisfies it.
type SettingsClient interface {
	NotificationSettings(ctx context.Context) ([]domain.NotificationSetting, error)
	UpdateNotificationSetting(ctx context.Context, notificationType string, enabled bool) (*domain.NotificationSetting, error)
	SendTestNotification(ctx context.Context, req domain.TestNotificationRequest) (*domain.TestNotificationResponse, error)
}

type settingsLoadedMsg struct {
	settings []domain.NotificationSetting
	err      error
}

type settingSavedMsg struct {
	setting *domain.NotificationSetting
	err     error
}

type flashClearMsg struct {
	seq int
}

// settingsModel lists the notification types the user may receive and
// toggles them one at a time.
type settingsModel struct {
	client   SettingsClient
	items    []domain.NotificationSetting
	cursor   int
	loading  bool
	saving   bool
	err      error
	flash    bool
	flashSeq int
}

func newSettingsModel(c SettingsClient) settingsModel {
	return settingsModel{client: c}
}

func (m settingsModel) load() tea.Cmd {
	c := m.client
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		settings, err := c.NotificationSettings(context.Background())
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

func (m settingsModel) save(notificationType string, enabled bool) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		s, err := c.UpdateNotificationSetting(context.Background(), notificationType, enabled)
		return settingSavedMsg{setting: s, err: err}
	}
}

// reset drops everything fetched while subscribed.
func (m settingsModel) reset() settingsModel {
	return newSettingsModel(m.client)
}

func (m settingsModel) Update(msg tea.Msg) (settingsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case settingsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.items = msg.settings
		}
		if m.cursor >= len(m.items) {
			m.cursor = max(len(m.items)-1, 0)
		}
		return m, nil

	case settingSavedMsg:
		m.saving = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if msg.setting != nil {
			for i := range m.items {
				if m.items[i].NotificationType == msg.setting.NotificationType {
					m.items[i].Enabled = msg.setting.Enabled
				}
			}
		}
		m.flash = true
		m.flashSeq++
		seq := m.flashSeq
		return m, tea.Batch(m.load(), tea.Tick(savedFlashDuration, func(time.Time) tea.Msg {
			return flashClearMsg{seq: seq}
		}))

	case flashClearMsg:
		if msg.seq == m.flashSeq {
			m.flash = false
		}
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
		case " ", "space":
			if m.saving || m.loading || m.cursor >= len(m.items) || m.client == nil {
				return m, nil
			}
			item := m.items[m.cursor]
			m.saving = true
			return m, m.save(item.NotificationType, !item.Enabled)
		}
	}
	return m, nil
}

func (m settingsModel) View(width int, focused bool) string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("NOTIFICATION TYPES"))
	if m.flash {
		b.WriteString("  " + okStyle.Render("✓ settings saved"))
	}
	b.WriteString("\n")

	switch {
	case m.loading && len(m.items) == 0:
		b.WriteString(dimStyle.Render("  loading settings...") + "\n")
		return b.String()
	case m.err != nil:
		b.WriteString(rejectStyle.Render("  "+m.err.Error()) + "\n")
	}
	if len(m.items) == 0 && m.err == nil {
		b.WriteString(dimStyle.Render("  no notification types available for your role") + "\n")
		return b.String()
	}

	for i, s := range m.items {
		cursor := "  "
		label := normalStyle.Render(s.Label)
		if focused && i == m.cursor {
			cursor = accentStyle.Render("> ")
			label = selectedStyle.Render(s.Label)
		}
		line := cursor + toggle(s.Enabled) + " " + label
		if s.Description != "" {
			room := width - len([]rune(s.Label)) - 12
			line += "  " + dimStyle.Render(truncStr(s.Description, room))
		}
		if focused && i == m.cursor {
			line = selectedRowBg.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if m.saving {
		b.WriteString(dimStyle.Render("  saving...") + "\n")
	}
	return b.String()
}

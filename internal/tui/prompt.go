package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/beacon/pkg/domain"
)

// Prompter shows the permission question as an overlay and blocks the
// caller until the user answers. It implements device.Prompter.
type Prompter struct {
	requests chan promptRequest
}

type promptRequest struct {
	origin string
	answer chan domain.PermissionState
}

func NewPrompter() *Prompter {
	return &Prompter{requests: make(chan promptRequest)}
}

// PromptPermission waits for the overlay to be answered. Cancelling ctx
// counts as a dismissal.
func (p *Prompter) PromptPermission(ctx context.Context, origin string) (domain.PermissionState, error) {
	req := promptRequest{origin: origin, answer: make(chan domain.PermissionState, 1)}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return domain.PermissionDefault, ctx.Err()
	}
	select {
	case st := <-req.answer:
		return st, nil
	case <-ctx.Done():
		return domain.PermissionDefault, ctx.Err()
	}
}

type promptMsg struct {
	req promptRequest
}

func waitForPrompt(p *Prompter) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		return promptMsg{req: <-p.requests}
	}
}

// promptAnswer maps an overlay key to a permission decision.
func promptAnswer(key string) (domain.PermissionState, bool) {
	switch key {
	case "y", "Y":
		return domain.PermissionGranted, true
	case "n", "N":
		return domain.PermissionDenied, true
	case "esc":
		return domain.PermissionDefault, true
	}
	return "", false
}

func promptView(origin, appName string, width int) string {
	var b strings.Builder
	b.WriteString(selectedStyle.Render(origin) + normalStyle.Render(" wants to"))
	b.WriteString("\n\n")
	b.WriteString(accentStyle.Render("  Show notifications"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  New cases, field search assignments and other " + appName + " events"))
	b.WriteString("\n\n")
	b.WriteString(helpEntry("y", "allow") + "   " + helpEntry("n", "block") + "   " + helpEntry("esc", "not now"))

	box := overlayStyle.Render(b.String())
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/naveenspark/beacon/pkg/domain"
)

// stdinPrompter asks for notification permission on the terminal. An
// empty answer dismisses the prompt.
type stdinPrompter struct {
	in      *bufio.Reader
	out     io.Writer
	appName string
}

func newStdinPrompter(in io.Reader, out io.Writer, appName string) *stdinPrompter {
	return &stdinPrompter{in: bufio.NewReader(in), out: out, appName: appName}
}

func (p *stdinPrompter) PromptPermission(ctx context.Context, origin string) (domain.PermissionState, error) {
	fmt.Fprintf(p.out, "%s (%s) wants to show notifications. Allow? [y/n, enter to decide later] ", p.appName, origin)

	lines := make(chan string, 1)
	go func() { lines <- readLine(p.in) }()
	select {
	case line := <-lines:
		return parseAnswer(line), nil
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return domain.PermissionDefault, ctx.Err()
	}
}

func parseAnswer(s string) domain.PermissionState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return domain.PermissionGranted
	case "n", "no":
		return domain.PermissionDenied
	}
	return domain.PermissionDefault
}

// printRenderer writes notifications to a terminal, one block each.
type printRenderer struct {
	out io.Writer
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func (r printRenderer) ShowNotification(_ context.Context, n domain.Notification) error {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(n.ShownAt.Local().Format("15:04:05")) + " " + titleStyle.Render(n.Title))
	if n.Options.Tag != "" {
		b.WriteString(" " + mutedStyle.Render("["+n.Options.Tag+"]"))
	}
	b.WriteString("\n")
	if n.Options.Body != "" {
		b.WriteString("  " + n.Options.Body + "\n")
	}
	if u := n.URL(); u != "" {
		b.WriteString("  " + mutedStyle.Render(u) + "\n")
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// discardRenderer drops notifications. Commands that only change the
// subscription never receive pushes.
type discardRenderer struct{}

func (discardRenderer) ShowNotification(context.Context, domain.Notification) error { return nil }

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

var greetings = [...]string{
	"No new cases while you are logged out. Or so it seems.",
	"Somewhere a field search is missing one volunteer.",
	"The inbox is quiet. Suspiciously quiet.",
	"Log in and the next case finds you first.",
}

func printGreeting(out io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F5A623")).
		Bold(true).
		Render("BEACON")

	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(greetings[rand.IntN(len(greetings))])

	hint := mutedStyle.Render("To start: beacon login")

	fmt.Fprintf(out, "\n%s\n\n%s\n\n%s\n\n", title, quote, hint)
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/beacon/pkg/domain"
	"github.com/naveenspark/beacon/pkg/push"
)

// Controller is the subscription controller as seen by the UI.
// *push.Controller satisfies it.
type Controller interface {
	State() push.State
	CheckSubscription(ctx context.Context) error
	RequestPermission(ctx context.Context) error
	Unsubscribe(ctx context.Context) error
}

// Deps are the collaborators of the App.
type Deps struct {
	Controller Controller
	Settings   SettingsClient
	Worker     Clicker
	Feed       *Feed
	Prompter   *Prompter
	// Endpoint returns the live push endpoint, or "".
	Endpoint func() string
	AppName  string
	Version  string
}

type panel int

const (
	panelSettings panel = iota
	panelInbox
)

// opDoneMsg reports that a controller operation returned.
type opDoneMsg struct {
	op  string
	err error
}

type testSentMsg struct {
	resp *domain.TestNotificationResponse
	err  error
}

type copyResultMsg struct{ err error }

// App is the root Bubbletea model.
type App struct {
	deps     Deps
	state    push.State
	busy     bool
	testing  bool
	focus    panel
	settings settingsModel
	inbox    inboxModel
	prompt   *promptRequest
	notice   string
	width    int
	height   int
	frame    int
}

// NewApp creates a new TUI application.
func NewApp(deps Deps) App {
	if deps.AppName == "" {
		deps.AppName = "Milena CRM"
	}
	a := App{
		deps:     deps,
		settings: newSettingsModel(deps.Settings),
		inbox:    newInboxModel(deps.Worker),
	}
	if deps.Controller != nil {
		a.state = deps.Controller.State()
	}
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.runOp("check", a.checkFn()),
		waitForNotification(a.deps.Feed),
		waitForPrompt(a.deps.Prompter),
		shimmerTickCmd(),
	)
}

func (a App) checkFn() func(context.Context) error {
	if a.deps.Controller == nil {
		return nil
	}
	return a.deps.Controller.CheckSubscription
}

// runOp runs a controller operation off the UI goroutine.
func (a App) runOp(op string, fn func(context.Context) error) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(context.Background())}
	}
}

// loading reports whether a controller operation is in flight. Triggers
// are ignored while it is.
func (a App) loading() bool {
	return a.busy || a.state.Loading
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case opDoneMsg:
		a.busy = false
		if a.deps.Controller != nil {
			a.state = a.deps.Controller.State()
		}
		switch msg.op {
		case "enable":
			if a.state.Subscribed {
				a.notice = "notifications enabled"
			}
		case "disable":
			if msg.err == nil {
				a.notice = "notifications disabled"
			}
		}
		if !a.state.Subscribed {
			a.settings = a.settings.reset()
			return a, nil
		}
		a.settings.loading = true
		return a, a.settings.load()

	case notificationMsg:
		a.inbox = a.inbox.add(msg.n)
		return a, waitForNotification(a.deps.Feed)

	case promptMsg:
		req := msg.req
		a.prompt = &req
		return a, nil

	case testSentMsg:
		a.testing = false
		if msg.err != nil {
			a.notice = "test failed: " + msg.err.Error()
		} else if msg.resp != nil && msg.resp.Message != "" {
			a.notice = msg.resp.Message
		} else {
			a.notice = "test notification sent"
		}
		return a, nil

	case copyResultMsg:
		if msg.err != nil {
			a.notice = "copy failed: " + msg.err.Error()
		} else {
			a.notice = "endpoint copied"
		}
		return a, nil

	case settingsLoadedMsg, settingSavedMsg, flashClearMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.Update(msg)
		return a, cmd

	case clickDoneMsg:
		var cmd tea.Cmd
		a.inbox, cmd = a.inbox.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// The permission overlay captures all keys while open.
	if a.prompt != nil {
		if key == "ctrl+c" {
			a.prompt.answer <- domain.PermissionDefault
			a.prompt = nil
			return a, tea.Quit
		}
		if st, ok := promptAnswer(key); ok {
			a.prompt.answer <- st
			a.prompt = nil
			return a, waitForPrompt(a.deps.Prompter)
		}
		return a, nil
	}

	ctrl := a.deps.Controller
	switch key {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "e":
		if a.loading() || ctrl == nil || !a.state.Supported || a.state.Subscribed {
			return a, nil
		}
		a.busy = true
		a.notice = ""
		return a, a.runOp("enable", ctrl.RequestPermission)
	case "d":
		if a.loading() || ctrl == nil || !a.state.Subscribed {
			return a, nil
		}
		a.busy = true
		a.notice = ""
		return a, a.runOp("disable", ctrl.Unsubscribe)
	case "r":
		if a.loading() || ctrl == nil {
			return a, nil
		}
		a.busy = true
		return a, a.runOp("check", ctrl.CheckSubscription)
	case "t":
		if a.testing || !a.state.Subscribed || a.deps.Settings == nil {
			return a, nil
		}
		a.testing = true
		return a, a.sendTest()
	case "c":
		if a.deps.Endpoint == nil {
			return a, nil
		}
		endpoint := a.deps.Endpoint()
		if endpoint == "" {
			return a, nil
		}
		return a, func() tea.Msg {
			return copyResultMsg{err: clipboard.WriteAll(endpoint)}
		}
	case "tab":
		if a.focus == panelSettings {
			a.focus = panelInbox
		} else {
			a.focus = panelSettings
		}
		return a, nil
	}

	var cmd tea.Cmd
	switch a.focus {
	case panelSettings:
		if a.state.Subscribed {
			a.settings, cmd = a.settings.Update(msg)
		}
	case panelInbox:
		a.inbox, cmd = a.inbox.Update(msg)
	}
	return a, cmd
}

func (a App) sendTest() tea.Cmd {
	c := a.deps.Settings
	req := domain.TestNotificationRequest{
		Title: "Test notification",
		Body:  "Push notifications are working",
		URL:   "/",
	}
	return func() tea.Msg {
		resp, err := c.SendTestNotification(context.Background(), req)
		return testSentMsg{resp: resp, err: err}
	}
}

// statusLine summarises the controller state, most severe condition first.
func statusLine(st push.State) string {
	switch {
	case !st.Supported:
		return warnStyle.Render("Push notifications are not supported on this device")
	case st.Permission == domain.PermissionDenied:
		return rejectStyle.Render("Notifications are blocked") + "\n" +
			dimStyle.Render("Permission was denied. Run `beacon enable --reset` to be asked again.")
	case st.LastError != nil:
		return rejectStyle.Render(st.LastError.Error())
	case st.Loading:
		return dimStyle.Render("Loading...")
	case !st.Subscribed:
		return normalStyle.Render("Notifications are off.") + " " +
			dimStyle.Render("Enable them to hear about new cases and field search assignments.")
	}
	return okStyle.Render("● Notifications are on")
}

func (a App) center(s string) string {
	pad := (a.width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}

func (a App) View() string {
	header := a.center(renderShimmerLogo(a.frame))
	sub := a.deps.AppName + " notifications"
	if a.deps.Version != "" {
		sub += " . " + a.deps.Version
	}
	header += "\n" + a.center(metaStyle.Render(sub))

	st := a.state
	if a.busy {
		st.Loading = true
	}

	var body strings.Builder
	body.WriteString(" " + strings.ReplaceAll(statusLine(st), "\n", "\n ") + "\n")
	if a.notice != "" {
		body.WriteString(" " + accentStyle.Render(a.notice) + "\n")
	}
	body.WriteString("\n")
	if a.state.Subscribed {
		body.WriteString(indent(a.settings.View(a.width-2, a.focus == panelSettings)))
		body.WriteString("\n")
	}
	body.WriteString(indent(a.inbox.View(a.width-2, a.focus == panelInbox)))

	help := a.helpBar()
	content := body.String()
	if a.prompt != nil {
		content = "\n" + promptView(a.prompt.origin, a.deps.AppName, a.width)
		help = " " + helpEntry("y", "allow") + "  " + helpEntry("n", "block") + "  " + helpEntry("esc", "dismiss")
	}

	// Chrome: header(2) + blank(1) + help(1)
	content = strings.TrimRight(truncateToHeight(content, a.height-4), "\n")
	return fmt.Sprintf("%s\n\n%s\n%s", header, content, help)
}

func (a App) helpBar() string {
	entries := []string{}
	switch {
	case !a.state.Supported:
	case a.state.Subscribed:
		entries = append(entries, helpEntry("d", "disable"), helpEntry("t", "test"), helpEntry("c", "copy endpoint"))
	default:
		entries = append(entries, helpEntry("e", "enable"))
	}
	entries = append(entries, helpEntry("r", "refresh"), helpEntry("tab", "panel"))
	if a.focus == panelSettings && a.state.Subscribed {
		entries = append(entries, helpEntry("j/k", "nav"), helpEntry("space", "toggle"))
	} else {
		entries = append(entries, helpEntry("j/k", "nav"), helpEntry("enter", "open"), helpEntry("x", "dismiss"))
	}
	entries = append(entries, helpEntry("q", "quit"))
	return " " + strings.Join(entries, "  ")
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = " " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/naveenspark/beacon/internal/config"
	"github.com/naveenspark/beacon/internal/logging"
	"github.com/naveenspark/beacon/internal/tui"
	"github.com/naveenspark/beacon/pkg/client"
)

func runTUI(cmd *cobra.Command, cfg config.Config) error {
	out := cmd.OutOrStdout()
	if cfg.Token == "" {
		printGreeting(out)
		return nil
	}
	ctx := cmd.Context()
	c := client.New(cfg.APIURL, cfg.Token, client.WithTimeout(cfg.HTTPTimeout))
	// Only a 401 means the token is bad; other errors are retried from the UI.
	if _, err := c.GetMe(ctx); err != nil && client.IsStatus(err, http.StatusUnauthorized) {
		printGreeting(out)
		return nil
	}

	logger, closer, err := fileLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	feed := tui.NewFeed(16)
	prompter := tui.NewPrompter()
	s, err := newStack(cfg, logger, feed, prompter)
	if err != nil {
		return err
	}

	ctx, cancel, g, err := s.launch(ctx, true)
	if err != nil {
		return err
	}
	defer cancel()

	app := tui.NewApp(tui.Deps{
		Controller: s.ctrl,
		Settings:   s.client,
		Worker:     s.worker,
		Feed:       feed,
		Prompter:   prompter,
		Endpoint:   s.device.Endpoint,
		AppName:    cfg.AppName,
		Version:    version,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()
	cancel()
	gErr := g.Wait()

	if gErr != nil {
		return fmt.Errorf("push receiver: %w", gErr)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", runErr)
	}
	return nil
}

// runListen receives pushes without the TUI and prints each notification
// to out. Logs go to errOut.
func runListen(ctx context.Context, cfg config.Config, out, errOut io.Writer) error {
	logger := logging.Init(cfg.Env, cfg.LogLevel, errOut)
	if cfg.NoReceiver {
		return errors.New("the push receiver is disabled (BEACON_NO_RECEIVER)")
	}

	s, err := newStack(cfg, logger, printRenderer{out: out}, nil)
	if err != nil {
		return err
	}

	ctx, cancel, g, err := s.launch(ctx, true)
	if err != nil {
		return err
	}
	defer cancel()
	if ep := s.device.Endpoint(); ep != "" {
		fmt.Fprintf(out, "Listening for notifications on %s\n", ep)
	} else {
		fmt.Fprintln(out, "Listening, but this device is not subscribed. Run 'beacon enable'.")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

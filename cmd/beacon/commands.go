package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/naveenspark/beacon/internal/config"
	"github.com/naveenspark/beacon/pkg/client"
	"github.com/naveenspark/beacon/pkg/domain"
	"github.com/naveenspark/beacon/pkg/push"
)

func newLoginCommand(cfg *config.Config) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		Long: `Log in with your Milena CRM account. The password is read from stdin,
so it can be piped: echo "$PASSWORD" | beacon login --email me@example.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), *cfg, email, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func runLogin(ctx context.Context, cfg config.Config, email string, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	interactive := isTerminal(in)
	if email == "" {
		if interactive {
			fmt.Fprint(out, "Email: ")
		}
		email = readLine(r)
	}
	if interactive {
		fmt.Fprint(out, "Password: ")
	}
	password := readLine(r)
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	c := client.New(cfg.APIURL, "", client.WithTimeout(cfg.HTTPTimeout))
	tok, err := c.Login(ctx, email, password)
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			return errors.New("login failed: wrong email or password")
		}
		return err
	}
	if err := cfg.SaveToken(tok); err != nil {
		return err
	}

	c.SetToken(tok)
	me, err := c.GetMe(ctx)
	if err != nil {
		fmt.Fprintf(out, "Token saved but verification failed: %v\n", err)
		return nil
	}
	name := me.FullName
	if name == "" {
		name = me.Email
	}
	fmt.Fprintf(out, "Logged in as %s\n", name)
	return nil
}

func newLogoutCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := cfg.RemoveToken()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newStatusCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show permission and subscription state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*cfg); err != nil {
				return err
			}
			logger, closer, err := fileLogger(*cfg)
			if err != nil {
				return err
			}
			defer closer.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			return withStack(cmd.Context(), *cfg, logger, nil, func(ctx context.Context, s *stack) error {
				if err := s.ctrl.CheckSubscription(ctx); err != nil && !errors.Is(err, push.ErrUnsupported) {
					return err
				}
				printState(out, s.ctrl.State(), s.device.Endpoint())
				return nil
			})
		},
	}
}

func printState(out io.Writer, st push.State, endpoint string) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Supported:\t%s\n", yesNo(st.Supported))
	fmt.Fprintf(tw, "Permission:\t%s\n", st.Permission)
	fmt.Fprintf(tw, "Subscribed:\t%s\n", yesNo(st.Subscribed))
	if endpoint != "" {
		fmt.Fprintf(tw, "Endpoint:\t%s\n", endpoint)
	}
	tw.Flush() //nolint:errcheck
}

func newEnableCommand(cfg *config.Config) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Ask for permission and subscribe this device",
		Long: `Ask for notification permission and subscribe this device with the backend.
Run 'beacon listen' (or the inbox) afterwards to receive notifications.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*cfg); err != nil {
				return err
			}
			logger, closer, err := fileLogger(*cfg)
			if err != nil {
				return err
			}
			defer closer.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			prompter := newStdinPrompter(cmd.InOrStdin(), out, cfg.AppName)
			return withStack(cmd.Context(), *cfg, logger, prompter, func(ctx context.Context, s *stack) error {
				if reset {
					if err := s.device.ResetPermission(); err != nil {
						return err
					}
				}
				if err := s.ctrl.RequestPermission(ctx); err != nil && !errors.Is(err, push.ErrPermissionDenied) {
					return err
				}
				st := s.ctrl.State()
				switch {
				case st.Permission == domain.PermissionDenied:
					fmt.Fprintln(out, "Notifications are blocked. Run 'beacon enable --reset' to be asked again.")
				case !st.Subscribed:
					fmt.Fprintln(out, "Permission was not granted. Notifications stay off.")
				default:
					fmt.Fprintf(out, "Notifications are on.\nEndpoint: %s\n", s.device.Endpoint())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Forget an earlier permission decision and ask again")
	return cmd
}

func newDisableCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Unsubscribe this device and delete your subscriptions",
		Long: `Release this device's push channel and delete every subscription
registered for your account, including ones created from other devices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*cfg); err != nil {
				return err
			}
			logger, closer, err := fileLogger(*cfg)
			if err != nil {
				return err
			}
			defer closer.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			return withStack(cmd.Context(), *cfg, logger, nil, func(ctx context.Context, s *stack) error {
				if err := s.ctrl.Unsubscribe(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Notifications are off.")
				return nil
			})
		},
	}
}

func newSubscriptionsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions",
		Short: "List the push subscriptions registered for your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*cfg); err != nil {
				return err
			}
			c := client.New(cfg.APIURL, cfg.Token, client.WithTimeout(cfg.HTTPTimeout))
			subs, err := c.ListSubscriptions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No subscriptions.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tENDPOINT\tCREATED\tLAST USED")
			for _, s := range subs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Endpoint, stamp(s.CreatedAt), stamp(s.LastUsedAt))
			}
			return tw.Flush()
		},
	}
}

func newSettingsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show notification settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*cfg); err != nil {
				return err
			}
			c := client.New(cfg.APIURL, cfg.Token, client.WithTimeout(cfg.HTTPTimeout))
			settings, err := c.NotificationSettings(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tENABLED\tLABEL")
			for _, s := range settings {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.NotificationType, onOff(s.Enabled), s.Label)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(newSettingsSetCommand(cfg))
	return cmd
}

func newSettingsSetCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set <type> on|off",
		Short: "Turn one notification type on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*cfg); err != nil {
				return err
			}
			notifType := args[0]
			var enabled bool
			switch strings.ToLower(args[1]) {
			case "on", "true", "yes":
				enabled = true
			case "off", "false", "no":
			default:
				return fmt.Errorf("invalid value %q: want on or off", args[1])
			}
			if !domain.KnownNotificationType(notifType) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %q is not a known notification type\n", notifType)
			}

			c := client.New(cfg.APIURL, cfg.Token, client.WithTimeout(cfg.HTTPTimeout))
			s, err := c.UpdateNotificationSetting(cmd.Context(), notifType, enabled)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.NotificationType, onOff(s.Enabled))
			return nil
		},
	}
}

func newTestCommand(cfg *config.Config) *cobra.Command {
	req := domain.TestNotificationRequest{
		Title: "Test notification",
		Body:  "Push notifications are working",
		URL:   "/",
	}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Ask the backend to push a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*cfg); err != nil {
				return err
			}
			c := client.New(cfg.APIURL, cfg.Token, client.WithTimeout(cfg.HTTPTimeout))
			resp, err := c.SendTestNotification(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", req.Title, "Notification title")
	cmd.Flags().StringVar(&req.Body, "body", req.Body, "Notification body")
	cmd.Flags().StringVar(&req.URL, "url", req.URL, "Path opened when the notification is clicked")
	return cmd
}

func newListenCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Receive notifications and print them (headless)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), *cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n') //nolint:errcheck // EOF returns what was read
	return strings.TrimSpace(line)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naveenspark/beacon/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cfg := config.Load()
	err := newRootCommand(&cfg).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "beacon",
		Short: "Push notifications for Milena CRM in your terminal",
		Long: `beacon subscribes this machine to Milena CRM push notifications,
receives them on a local endpoint and shows them in an interactive inbox.

Run without a command to open the inbox.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.ResolveToken()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, *cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Backend API base URL")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "Access token (overrides the saved one)")
	flags.StringVar(&cfg.AppOrigin, "origin", cfg.AppOrigin, "Application origin notification links resolve against")
	flags.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Address the push receiver listens on")
	flags.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "Public base URL of the push receiver (default http://<listen>)")
	flags.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory for the token, device state and logs")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "Backend request timeout")

	root.AddCommand(
		newLoginCommand(cfg),
		newLogoutCommand(cfg),
		newStatusCommand(cfg),
		newEnableCommand(cfg),
		newDisableCommand(cfg),
		newSubscriptionsCommand(cfg),
		newSettingsCommand(cfg),
		newTestCommand(cfg),
		newListenCommand(cfg),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the beacon version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "beacon "+version)
		},
	}
}

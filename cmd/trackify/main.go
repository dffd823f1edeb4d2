package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trackify/internal/cli"
	"trackify/internal/core"
	logpkg "trackify/internal/log"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trackify",
		Short: "Subscription tracker",
		Long: `trackify keeps track of recurring subscriptions: it records the payments they
generate, sends reminders before charges and expirations, and reports spending.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(statsCmd())
	root.AddCommand(generateCmd())
	root.AddCommand(remindCmd())
	root.AddCommand(listenCmd())
	root.AddCommand(subscriptionCmd())
	root.AddCommand(categoryCmd())
	root.AddCommand(paymentCmd())

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads the configuration, opens the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) (err error) {
	cfg, logger, err := cli.LoadAndValidateConfig(logpkg.ComponentCLI)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, app)
}

// dayFlag parses an optional --date value, defaulting to today.
func dayFlag(value string) (core.Date, error) {
	if value == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(value)
}

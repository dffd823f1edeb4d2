package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trackify/internal/amqp"
	"trackify/internal/cli"
	"trackify/internal/core"
)

func remindCmd() *cobra.Command {
	var (
		date   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send due reminders",
		Long: `Run one reminder pass: decide which payment and expiration reminders are owed
for the date and deliver each one that was not delivered before. With
--dry-run the reminders are listed and nothing is delivered or recorded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := dayFlag(date)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				svc, err := app.ReminderService(ctx, !dryRun)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				if dryRun {
					events, err := svc.Preview(ctx, day)
					if err != nil {
						return err
					}
					if len(events) == 0 {
						fmt.Fprintln(out, "No reminders due.")
					}
					for _, ev := range events {
						printEvent(out, ev)
					}
					return nil
				}

				report, err := svc.Run(ctx, day)
				if err != nil {
					return err
				}
				if !report.Ran {
					fmt.Fprintln(out, "Reminders are disabled or not scheduled for this date.")
					return nil
				}
				for _, ev := range report.Events {
					printEvent(out, ev)
				}
				for _, f := range report.Failures {
					fmt.Fprintf(out, "failed to deliver %s: %v\n", f.Event.Key(), f.Err)
				}
				fmt.Fprintf(out, "delivered %d, already sent %d, failed %d\n",
					report.Delivered, report.Suppressed, len(report.Failures))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "reminder date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list reminders without delivering them")
	return cmd
}

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print reminders published to the message queue",
		Long: `Consume reminder messages from the configured AMQP queue and print them until
interrupted. Requires AMQP_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				client, err := app.Broker(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				err = client.ConsumeReminders(ctx, func(msg *amqp.ReminderMessage) error {
					ev, err := msg.Event()
					if err != nil {
						// requeueing cannot fix a malformed message
						fmt.Fprintf(out, "skipping message %s: %v\n", msg.ID, err)
						return nil
					}
					printEvent(out, ev)
					return nil
				})
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}

func printEvent(out io.Writer, ev core.ReminderEvent) {
	switch ev.Kind {
	case core.ReminderExpirationDue:
		fmt.Fprintf(out, "%s expires on %s (in %d days)\n", ev.SubscriptionName, ev.EventDate, ev.DaysUntil)
	default:
		fmt.Fprintf(out, "%s is due on %s (in %d days)\n", ev.SubscriptionName, ev.EventDate, ev.DaysUntil)
	}
}

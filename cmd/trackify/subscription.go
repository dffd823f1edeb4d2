package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trackify/internal/cli"
	"trackify/internal/core"
)

func subscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Manage subscriptions",
	}

	cmd.AddCommand(addSubscriptionCmd())
	cmd.AddCommand(listSubscriptionsCmd())
	cmd.AddCommand(deactivateSubscriptionCmd())

	return cmd
}

func addSubscriptionCmd() *cobra.Command {
	var (
		price      string
		frequency  string
		start      string
		end        string
		categoryID int64
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cents, err := core.ParseDecimalToCents(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			freq, err := core.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			startDate, err := dayFlag(start)
			if err != nil {
				return err
			}
			var endDate core.Date
			if end != "" {
				if endDate, err = core.ParseDate(end); err != nil {
					return err
				}
			}

			sub := core.Subscription{
				Name:       args[0],
				Price:      core.Money{Cents: cents},
				Frequency:  freq,
				StartDate:  startDate,
				EndDate:    endDate,
				CategoryID: categoryID,
				Active:     true,
			}
			if err := sub.Validate(); err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				id, err := app.Backend.CreateSubscription(ctx, sub)
				if err != nil {
					return fmt.Errorf("create subscription: %w", err)
				}
				app.Stats.Invalidate(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "created subscription %d: %s, %s %s from %s\n",
					id, sub.Name, sub.Price, sub.Frequency, sub.StartDate)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&price, "price", "", "price per period, e.g. 12.99 or 12,99")
	cmd.Flags().StringVar(&frequency, "frequency", string(core.Monthly), "billing frequency (monthly or yearly)")
	cmd.Flags().StringVar(&start, "start", "", "first billing date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "last day of the subscription (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func listSubscriptionsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				var (
					subs []core.Subscription
					err  error
				)
				if all {
					subs, err = app.Backend.ListSubscriptions(ctx)
				} else {
					subs, err = app.Backend.ListActiveSubscriptions(ctx)
				}
				if err != nil {
					return fmt.Errorf("list subscriptions: %w", err)
				}
				if len(subs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No subscriptions found. Use 'trackify subscription add' to create one.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tNAME\tPRICE\tFREQUENCY\tSTART\tEND\tCATEGORY\tACTIVE")
				for _, s := range subs {
					category := "-"
					if s.CategoryID != 0 {
						category = strconv.FormatInt(s.CategoryID, 10)
					}
					end := s.EndDate.String()
					if end == "" {
						end = "-"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
						s.ID, s.Name, s.Price, s.Frequency, s.StartDate, end, category, s.Active)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include inactive subscriptions")
	return cmd
}

func deactivateSubscriptionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Stop tracking a subscription",
		Long: `Mark a subscription inactive. It keeps its payment history but no longer
generates payments, reminders or spend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid subscription id %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				if err := app.Backend.SetSubscriptionActive(ctx, id, false); err != nil {
					return err
				}
				app.Stats.Invalidate(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated subscription %d\n", id)
				return nil
			})
		},
	}
}

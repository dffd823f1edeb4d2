package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trackify/internal/cli"
	"trackify/internal/core"
)

func paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Record and review payments",
	}

	cmd.AddCommand(addPaymentCmd())
	cmd.AddCommand(listPaymentsCmd())
	cmd.AddCommand(confirmPaymentCmd())

	return cmd
}

func addPaymentCmd() *cobra.Command {
	var (
		amount string
		date   string
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "add <subscription-id>",
		Short: "Record a manual payment",
		Long: `Record a payment made outside the generator. A manual payment close to a due
date keeps the generator from creating another one for that cycle.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid subscription id %q", args[0])
			}
			cents, err := core.ParseDecimalToCents(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			day, err := dayFlag(date)
			if err != nil {
				return err
			}

			payment := core.Payment{
				SubscriptionID: subID,
				Amount:         core.Money{Cents: cents},
				Date:           day,
				Status:         core.StatusManual,
				Notes:          notes,
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				id, err := app.Backend.InsertPayment(ctx, payment)
				if err != nil {
					return fmt.Errorf("record payment: %w", err)
				}
				app.Stats.Invalidate(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "recorded payment %d: subscription %d, %s on %s\n",
					id, subID, payment.Amount, payment.Date)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount paid, e.g. 12.99")
	cmd.Flags().StringVar(&date, "date", "", "payment date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func listPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				payments, err := app.Backend.ListPayments(ctx)
				if err != nil {
					return fmt.Errorf("list payments: %w", err)
				}
				if len(payments) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No payments recorded.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tSUBSCRIPTION\tDATE\tAMOUNT\tSTATUS\tAUTO\tNOTES")
				for _, p := range payments {
					fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%t\t%s\n",
						p.ID, p.SubscriptionID, p.Date, p.Amount, p.Status, p.AutoGenerated, p.Notes)
				}
				return nil
			})
		},
	}
}

func confirmPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid payment id %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				err := app.Backend.ConfirmPayment(ctx, id)
				if errors.Is(err, core.ErrNotFound) {
					return fmt.Errorf("payment %d does not exist", id)
				}
				if err != nil {
					return err
				}
				app.Stats.Invalidate(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "confirmed payment %d\n", id)
				return nil
			})
		},
	}
}

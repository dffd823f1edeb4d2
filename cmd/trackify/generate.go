package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"trackify/internal/cli"
)

func generateCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Record pending payments for subscriptions that are due",
		Long: `Run the payment generator once. Each active subscription gets at most one
pending payment, for its latest cycle due on or before the date. Running it
twice for the same date creates nothing the second time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := dayFlag(date)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				report, err := app.Generator.Generate(ctx, day)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, p := range report.Payments {
					fmt.Fprintf(out, "created payment %d: subscription %d, %s on %s\n",
						p.ID, p.SubscriptionID, p.Amount, p.Date)
				}
				for _, f := range report.Failures {
					fmt.Fprintf(out, "failed subscription %d: %v\n", f.SubscriptionID, f.Err)
				}
				fmt.Fprintf(out, "checked %d, created %d, skipped %d, failed %d\n",
					report.Checked, report.Created, report.Skipped, report.Failed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "generation date (YYYY-MM-DD, default today)")
	return cmd
}

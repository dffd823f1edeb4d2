package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trackify/internal/cli"
	"trackify/internal/services"
)

func statsCmd() *cobra.Command {
	var (
		months int
		date   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show spending statistics",
		Long: `Show monthly and yearly spend, spend per category and billing type, the
trailing monthly history, payment totals and upcoming charges.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := dayFlag(date)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				report, err := app.Stats.ReportFor(ctx, day, months)
				if err != nil {
					return fmt.Errorf("compute statistics: %w", err)
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				printReport(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&months, "months", 0, "number of months of history (default STATS_HISTORY_MONTHS)")
	cmd.Flags().StringVar(&date, "date", "", "report date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

func printReport(cmd *cobra.Command, r services.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Statistics for %s\n\n", r.Date)
	fmt.Fprintf(out, "Active subscriptions: %d\n", r.ActiveSubscriptions)
	fmt.Fprintf(out, "Monthly spend:        %.2f\n", r.TotalMonthly)
	fmt.Fprintf(out, "Yearly spend:         %.2f\n\n", r.TotalYearly)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "CATEGORY\tCOLOR\tPER MONTH")
	for _, c := range r.Categories {
		fmt.Fprintf(w, "%s\t%s\t%.2f\n", c.Name, c.Color, c.Amount)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "BILLING TYPE\tAMOUNT")
	for _, b := range r.BillingTypes {
		fmt.Fprintf(w, "%s\t%.2f\n", b.Label, b.Amount)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MONTH\tSPEND")
	for _, m := range r.History {
		fmt.Fprintf(w, "%d-%02d\t%.2f\n", m.Year, int(m.Month), m.Amount)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PAYMENTS\tCOUNT\tTOTAL\tPENDING\tCONFIRMED\tMANUAL")
	p := r.Payments
	fmt.Fprintf(w, "all\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n", p.Count, p.Total, p.Pending, p.Confirmed, p.Manual)
	fmt.Fprintln(w)

	if len(r.Upcoming) > 0 {
		fmt.Fprintln(w, "UPCOMING\tDATE\tIN DAYS\tAMOUNT")
		for _, u := range r.Upcoming {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", u.Name, u.Date, u.DaysUntil, u.Amount)
		}
	} else {
		fmt.Fprintln(w, "No upcoming payments.")
	}
	w.Flush()
}

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trackify/internal/cli"
	"trackify/internal/core"
)

func categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage subscription categories",
	}

	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(listCategoriesCmd())

	return cmd
}

func addCategoryCmd() *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := core.Category{Name: args[0], Color: color}
			if err := category.Validate(); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				id, err := app.Backend.CreateCategory(ctx, category)
				if err != nil {
					return fmt.Errorf("create category: %w", err)
				}
				app.Stats.Invalidate(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "created category %d: %s\n", id, category.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #4CAF50")
	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				categories, err := app.Backend.ListCategories(ctx)
				if err != nil {
					return fmt.Errorf("list categories: %w", err)
				}
				if len(categories) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No categories found. Use 'trackify category add' to create one.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tNAME\tCOLOR")
				for _, c := range categories {
					fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Color)
				}
				return nil
			})
		},
	}
}

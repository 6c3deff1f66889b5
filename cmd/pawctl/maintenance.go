package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCleanupPlansCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup-plans",
		Short: "Cancel plans with no dogs or an abandoned checkout",
		Long: `Find plans matching the broken-plan rule and cancel them.

Examples:
  pawctl cleanup-plans --dry-run   # list what would be cancelled
  pawctl cleanup-plans`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			items, err := app.Plans.CleanupBroken(cmd.Context(), dryRun)
			out := cmd.OutOrStdout()
			if len(items) == 0 && err == nil {
				fmt.Fprintln(out, "no broken plans")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tREASON")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\n", it.PlanID, it.Reason)
			}
			_ = tw.Flush()
			verb := "cancelled"
			if dryRun {
				verb = "would be cancelled"
			}
			fmt.Fprintf(out, "%d plan(s) %s\n", len(items), verb)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without cancelling")
	return cmd
}

func newSyncSubscriptionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-subscription <provider-subscription-id>",
		Short: "Fetch a subscription from the payment provider and reconcile it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			app.Workers.Start(cmd.Context())
			res, err := app.Reconciler.SyncByProviderID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s := res.Subscription
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (outcome %s, period %s to %s)\n",
				s.ProviderSubscriptionID, s.Status, res.Outcome,
				s.CurrentPeriodStart.Format("2006-01-02"), s.CurrentPeriodEnd.Format("2006-01-02"))
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/casewatch/internal/app"
	"github.com/user/casewatch/internal/types"
)

func init() {
	rootCmd.AddCommand(caseCmd, reminderCmd)
	caseCmd.AddCommand(caseListCmd)
	reminderCmd.AddCommand(reminderListCmd)
	reminderListCmd.Flags().Bool("pending", false, "only reminders that have not fired")
}

// openApp builds the app for a one-shot command.
func openApp(ctx context.Context) (*app.App, error) {
	cfg := loadConfig()
	setupLogging(cfg)
	return app.Build(ctx, cfg)
}

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Inspect stored cases",
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		cases, err := a.Backends.Store.LoadCases(ctx)
		if err != nil {
			return fmt.Errorf("load cases: %w", err)
		}
		if len(cases) == 0 {
			fmt.Println("No cases found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCLIENT\tPLATE\tSTATUS\tACCIDENT\tEVENTS")
		for _, c := range cases {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				c.ID,
				c.DisplayName(),
				c.DisplayPlate(),
				c.Status.Label(),
				c.Date,
				len(c.Itinerary),
			)
		}
		return w.Flush()
	},
}

var reminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Inspect stored reminders",
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pendingOnly, _ := cmd.Flags().GetBool("pending")
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var reminders []*types.Reminder
		if pendingOnly {
			reminders, err = a.Engine.PendingReminders(ctx)
		} else {
			reminders, err = a.Backends.Store.LoadReminders(ctx)
		}
		if err != nil {
			return fmt.Errorf("load reminders: %w", err)
		}
		if len(reminders) == 0 {
			fmt.Println("No reminders found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTITLE\tCASE\tNOTIFIED\tNOTE")
		for _, r := range reminders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", r.Time, r.Title(), r.CaseID, r.Notified, r.Note)
		}
		return w.Flush()
	},
}

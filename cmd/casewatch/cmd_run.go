package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/casewatch/internal/scheduler"
	"github.com/user/casewatch/internal/state"
	"github.com/user/casewatch/internal/types"
)

func init() {
	rootCmd.AddCommand(tickCmd, digestCmd, todayCmd, notifyCmd, ledgerCmd)
	digestCmd.Flags().String("chat", "", "chat ID to send to (default: configured chat)")
	todayCmd.Flags().String("chat", "", "chat ID to send to (default: configured chat)")
	notifyCmd.AddCommand(notifyTestCmd)
	ledgerCmd.AddCommand(ledgerPurgeCmd)
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler tick now",
	Long: "Run one scheduler tick now. With a file or sqlite store the lock is per-process,\n" +
		"so the command refuses to run while the daemon is up.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pid, _ := readPID()
		if err := tickAllowed(a.Backends.Locker, pid); err != nil {
			return err
		}

		res, err := a.Engine.Tick(ctx, a.Engine.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Stages fired: %d\n", len(res.Stages))
		for _, s := range res.Stages {
			fmt.Printf("  %s  %s  %s\n", s.CaseID, s.Stage.Label(), s.Event)
		}
		fmt.Printf("Reminders fired: %d\n", res.Reminders)
		fmt.Printf("Cases advanced: %d\n", len(res.Advanced))
		for _, id := range res.Advanced {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send the weekly digest now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		chat, _ := cmd.Flags().GetString("chat")
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sent, err := a.Engine.SendDigest(ctx, chat, a.Engine.Now())
		if err != nil {
			return err
		}
		if !sent {
			fmt.Println("Nothing to report this week; digest not sent.")
			return nil
		}
		fmt.Println("Digest sent.")
		return nil
	},
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Send today's itinerary now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		chat, _ := cmd.Flags().GetString("chat")
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Engine.SendToday(ctx, chat, a.Engine.Now()); err != nil {
			return err
		}
		fmt.Println("Today's itinerary sent.")
		return nil
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Chat notification tools",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send one sample of each notification kind",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if token, chat := a.Dispatcher.Credentials(ctx); token == "" || chat == "" {
			return fmt.Errorf("telegram token and chat ID must both be set")
		}

		loc := a.Location
		now := a.Engine.Now().In(loc)
		at := now.Add(3 * 24 * time.Hour)
		c := &types.Case{ID: "sample", ClientName: "測試客戶", Plate: "ABC-1234", Status: types.StatusProcessing}
		item := &types.ItineraryItem{Time: at.Format(time.RFC3339), Event: "調解會議", Location: "區公所"}
		r := &types.Reminder{CaseTitle: "測試提醒", Note: "這是一則測試訊息", Time: now.Format(time.RFC3339)}

		samples := []string{
			scheduler.StageMessage(c, item, types.StageThreeDays, at, loc),
			scheduler.ReminderMessage(r, now, loc),
			scheduler.AdvanceMessage(c),
		}
		for _, text := range samples {
			a.Dispatcher.Send(ctx, types.OutboundMessage{Text: text, QuickReplies: true})
		}
		fmt.Printf("Sent %d sample notifications.\n", len(samples))
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Manage the inbound dedup ledger",
}

var ledgerPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop expired ledger entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Backends.Ledger.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge ledger: %w", err)
		}
		fmt.Printf("Purged %d expired entries.\n", n)
		return nil
	},
}

// tickAllowed refuses a manual tick while a daemon (pid > 0) is running
// unless the lock is shared across processes. An in-process lock would
// let both rewrite the same documents.
func tickAllowed(locker types.Locker, pid int) error {
	if pid <= 0 {
		return nil
	}
	if _, shared := locker.(*state.AdvisoryLocker); shared {
		return nil
	}
	return fmt.Errorf("daemon is running (PID %d) and the store lock is per-process; run `casewatch stop` first or use a postgres store", pid)
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/casewatch/internal/types"
)

func init() {
	rootCmd.AddCommand(statusCmd, logCmd)
	logCmd.AddCommand(logTailCmd)
	logTailCmd.Flags().IntP("lines", "n", 20, "number of entries to show")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check storage and Telegram configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if pid, err := readPID(); err == nil {
			fmt.Printf("Daemon: running (PID %d)\n", pid)
		} else {
			fmt.Printf("Daemon: %v\n", err)
		}

		store := a.Backends.Store
		cases, err := store.LoadCases(ctx)
		if err != nil {
			fmt.Printf("Cases: ERROR %v\n", err)
		} else {
			fmt.Printf("Cases: %d (%d awaiting processing)\n", len(cases), countAwaiting(cases))
		}
		reminders, err := store.LoadReminders(ctx)
		if err != nil {
			fmt.Printf("Reminders: ERROR %v\n", err)
		} else {
			fmt.Printf("Reminders: %d\n", len(reminders))
		}
		settings, err := store.LoadSettings(ctx)
		if err != nil {
			fmt.Printf("Settings: ERROR %v\n", err)
		} else {
			fmt.Printf("Users: %d, inbox: %d\n", len(settings.Users), len(settings.Notifications))
		}
		if n, err := a.Backends.DebugLog.Count(ctx); err == nil {
			fmt.Printf("Debug log entries: %d\n", n)
		}

		token, chat := a.Dispatcher.Credentials(ctx)
		fmt.Printf("Telegram token: %s\n", mask(token))
		fmt.Printf("Telegram chat: %s\n", mask(chat))
		if token == "" {
			return nil
		}
		info, err := a.Dispatcher.WebhookInfo(ctx)
		if err != nil {
			fmt.Printf("Webhook: ERROR %v\n", err)
			return nil
		}
		printWebhookInfo(info.URL, info.PendingUpdateCount, info.LastErrorMessage)
		return nil
	},
}

func countAwaiting(cases []*types.Case) int {
	n := 0
	for _, c := range cases {
		if c.Status.AwaitingProcessing() {
			n++
		}
	}
	return n
}

// mask shows only the last four characters of a secret.
func mask(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "***"
	}
	return strings.Repeat("*", 4) + s[len(s)-4:]
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect the inbound chat debug log",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent inbound entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("lines")
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Backends.DebugLog.Tail(ctx, n)
		if err != nil {
			return fmt.Errorf("read debug log: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-8s %s\n", e.At.In(a.Location).Format("2006-01-02 15:04:05"), e.Kind, e.Text)
		}
		return nil
	},
}

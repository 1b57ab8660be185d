package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(webhookSetCmd, webhookDeleteCmd, webhookInfoCmd)
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram webhook registration",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set [url]",
	Short: "Register the webhook (default: configured URL)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		url := webhookURL(a.Config.Telegram.WebhookURL, a.Config.HTTP.PublicURL)
		if len(args) == 1 {
			url = args[0]
		}
		if url == "" {
			return fmt.Errorf("no webhook URL: pass one or set telegram.webhook_url or http.public_url")
		}
		if err := a.Dispatcher.SetWebhook(ctx, url, a.Config.Telegram.WebhookSecret); err != nil {
			return err
		}
		fmt.Println("Webhook registered:", url)
		return nil
	},
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the webhook registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Dispatcher.DeleteWebhook(ctx); err != nil {
			return err
		}
		fmt.Println("Webhook removed.")
		return nil
	},
}

var webhookInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the webhook registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Dispatcher.WebhookInfo(ctx)
		if err != nil {
			return err
		}
		printWebhookInfo(info.URL, info.PendingUpdateCount, info.LastErrorMessage)
		return nil
	},
}

func printWebhookInfo(url string, pending int, lastError string) {
	if url == "" {
		url = "(none)"
	}
	fmt.Printf("URL: %s\n", url)
	fmt.Printf("Pending updates: %d\n", pending)
	if lastError != "" {
		fmt.Printf("Last error: %s\n", lastError)
	}
}

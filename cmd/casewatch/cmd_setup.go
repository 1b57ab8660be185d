package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/casewatch/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Casewatch Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token", cfg.Telegram.Token)
		cfg.Telegram.ChatID = prompt(scanner, "Telegram chat ID for notifications", cfg.Telegram.ChatID)
		cfg.Store.DSN = prompt(scanner, "Store DSN (empty for JSON files in the data dir)", cfg.Store.DSN)

		tz := prompt(scanner, "Timezone", cfg.Timezone)
		if _, err := time.LoadLocation(tz); err != nil {
			fmt.Printf("Unknown timezone %q, keeping %s\n", tz, cfg.Timezone)
		} else {
			cfg.Timezone = tz
		}

		cfg.HTTP.PublicURL = prompt(scanner, "Public URL of this server (optional)", cfg.HTTP.PublicURL)
		if cfg.HTTP.PublicURL != "" {
			cfg.Telegram.WebhookSecret = prompt(scanner, "Telegram webhook secret (optional)", cfg.Telegram.WebhookSecret)
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

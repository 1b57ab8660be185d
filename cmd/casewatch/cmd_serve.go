package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/casewatch/internal/app"
	"github.com/user/casewatch/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the casewatch daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "casewatch.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	sched := a.Scheduler()
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	slog.Info("casewatch started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"timezone", a.Location.String(),
		"tick", cfg.Scheduler.Tick,
		"digest", cfg.Scheduler.Digest,
		"pid_file", pidPath,
	)

	if cfg.HTTP.Enabled {
		srv := webhook.NewServer(a.Gateway, webhook.Options{
			WebhookSecret: cfg.Telegram.WebhookSecret,
			Files:         a.Files,
		})
		httpServer := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			httpServer.Shutdown(shutdownCtx)
		}()
	} else {
		slog.Warn("http server disabled; the client API and Telegram webhook are unavailable")
	}

	if url := webhookURL(cfg.Telegram.WebhookURL, cfg.HTTP.PublicURL); url != "" {
		if err := a.Dispatcher.SetWebhook(ctx, url, cfg.Telegram.WebhookSecret); err != nil {
			slog.Error("register telegram webhook failed", "url", url, "error", err)
		} else {
			slog.Info("telegram webhook registered", "url", url)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}

// webhookURL returns the explicit webhook URL, or the public URL with the
// /telegram route appended.
func webhookURL(explicit, publicURL string) string {
	if explicit != "" {
		return explicit
	}
	if publicURL == "" {
		return ""
	}
	return strings.TrimRight(publicURL, "/") + "/telegram"
}

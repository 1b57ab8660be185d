// Package app wires the configured backends into a running gateway and
// scheduler. Both the daemon and the Lambda entry point build one.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/user/casewatch/internal/awsstore"
	"github.com/user/casewatch/internal/config"
	"github.com/user/casewatch/internal/gateway"
	"github.com/user/casewatch/internal/scheduler"
	"github.com/user/casewatch/internal/state"
	"github.com/user/casewatch/internal/syncer"
	"github.com/user/casewatch/internal/telegram"
	"github.com/user/casewatch/internal/types"
	"github.com/user/casewatch/internal/upload"
)

// App holds every long-lived component.
type App struct {
	Config     *config.Config
	Location   *time.Location
	Backends   *state.Backends
	Dispatcher *telegram.Dispatcher
	Blobs      types.BlobStore
	Files      *upload.FSBlobStore // nil unless blobs live on local disk
	Broker     *upload.Broker
	Engine     *scheduler.Engine
	Syncer     *syncer.Coordinator
	Gateway    *gateway.Gateway
}

// Build opens the backends selected by cfg and wires the components.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	opts, err := scheduler.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	backends, err := state.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Location: opts.Location, Backends: backends}
	if err := a.openBlobs(ctx); err != nil {
		backends.Close()
		return nil, err
	}

	a.Dispatcher = telegram.NewDispatcher(telegram.Options{
		Token:       cfg.Telegram.Token,
		ChatID:      cfg.Telegram.ChatID,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		Settings:    backends.Store,
	})
	a.Broker = upload.NewBroker(a.Blobs, cfg.Blob.Concurrency)
	a.Engine = scheduler.NewEngine(backends.Store, a.Dispatcher, backends.Locker, opts)
	a.Syncer = syncer.NewCoordinator(backends.Store, a.Dispatcher, a.Broker, syncer.Options{Location: opts.Location})
	a.Gateway = gateway.New(gateway.Deps{
		Store:      backends.Store,
		Ledger:     backends.Ledger,
		Locker:     backends.Locker,
		Dispatcher: a.Dispatcher,
		Writer:     a.Syncer,
		Queries:    a.Engine,
		DebugLog:   backends.DebugLog,
	}, cfg.LockTimeout())

	slog.Debug("app built",
		"store", redactDSN(cfg.Store.DSN),
		"ledger", redactDSN(cfg.Ledger.DSN),
		"blob_backend", cfg.Blob.Backend,
		"timezone", opts.Location.String(),
	)
	return a, nil
}

func (a *App) openBlobs(ctx context.Context) error {
	cfg := a.Config
	switch strings.ToLower(cfg.Blob.Backend) {
	case "", "fs", "file":
		a.Files = upload.NewFSBlobStore(cfg.BlobDir(), cfg.BlobBaseURL())
		a.Blobs = a.Files
	case "s3":
		if cfg.Blob.Bucket == "" {
			return fmt.Errorf("blob backend s3 needs blob.bucket")
		}
		awsCfg, endpoint, err := awsstore.LoadConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		a.Blobs = awsstore.NewS3BlobStore(awsCfg, endpoint, cfg.Blob.Bucket, cfg.Blob.Prefix, cfg.Blob.BaseURL)
	default:
		return fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
	return nil
}

// Close releases the backends.
func (a *App) Close() error {
	return a.Backends.Close()
}

// Scheduler returns the cron driver for the engine.
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Engine, a.Config.Scheduler.Tick, a.Config.Scheduler.Digest)
}

// redactDSN drops the password of a DSN for logging.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	user, _, _ := strings.Cut(rest[:at], ":")
	return scheme + "://" + user + ":***@" + rest[at+1:]
}

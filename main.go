package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundleafapp/soundleaf-playback/internal/config"
	"github.com/soundleafapp/soundleaf-playback/internal/downloads"
	"github.com/soundleafapp/soundleaf-playback/internal/engine"
	"github.com/soundleafapp/soundleaf-playback/internal/entitlement"
	"github.com/soundleafapp/soundleaf-playback/internal/playback"
	"github.com/soundleafapp/soundleaf-playback/internal/progress"
	"github.com/soundleafapp/soundleaf-playback/internal/remote"
	"github.com/soundleafapp/soundleaf-playback/internal/store"
)

const entitlementRefreshInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deviceID, err := config.DeviceID()
	if err != nil {
		return fmt.Errorf("resolving device id: %w", err)
	}

	var local *store.Manager
	if cfg.ProgressDB != "" {
		local, err = store.OpenPath(cfg.ProgressDB)
	} else {
		local, err = store.Open()
	}
	if err != nil {
		return fmt.Errorf("opening progress store: %w", err)
	}
	defer local.Close()

	policy := cfg.Policy()

	// Remote sync is optional; without it progress stays local-only.
	var progressStore progress.Store = local
	var watcher *entitlement.Watcher
	if cfg.HasRemoteConfig() {
		client := remote.NewClient(cfg.Remote.URL, cfg.Remote.Token)
		progressStore = progress.NewMirrored(client, local, logger)
		watcher = entitlement.NewWatcher(client, cfg.UserID, logger)
	}

	progressMgr := progress.NewManager(progressStore, policy, logger)
	defer progressMgr.Close()

	eng := engine.NewSim(time.Second)
	defer eng.Close()

	svc := playback.New(playback.Options{
		Policy:   policy,
		Logger:   logger,
		Engine:   eng,
		Progress: progressMgr,
		Local:    downloads.NewManager(cfg.DownloadsDir),
		UserID:   cfg.UserID,
		DeviceID: deviceID,
	})
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if watcher != nil {
		g.Go(func() error { return watchEntitlements(ctx, watcher, svc, logger) })
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down, flushing progress")
		if err := svc.Flush(); err != nil {
			logger.Warn("final progress flush failed", "error", err)
		}
		return nil
	})

	logger.Info("soundleaf playback daemon started",
		"user_id", cfg.UserID, "device_id", deviceID,
		"remote_sync", cfg.HasRemoteConfig())

	return g.Wait()
}

// watchEntitlements polls the row store and pushes flag changes into the
// playback service so locked chapters unlock without a restart.
func watchEntitlements(ctx context.Context, w *entitlement.Watcher, svc playback.Service, logger *slog.Logger) error {
	statuses, cancel := w.Subscribe()
	defer cancel()

	ticker := time.NewTicker(entitlementRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Refresh(ctx); err != nil {
				logger.Debug("entitlement refresh failed", "error", err)
			}
		case status := <-statuses:
			svc.SetEntitlements(status.Owned, status.SubscriptionActive)
		}
	}
}

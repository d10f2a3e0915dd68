package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/api"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/service"
	"github.com/dixieflatline76/Easel/util"
	"github.com/dixieflatline76/Easel/util/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	updateCheckTimeout = 30 * time.Second
	shutdownTimeout    = 5 * time.Second
)

type runOptions struct {
	clearData bool
	minimized bool
	autostart bool
	verbose   bool
	dataDir   string
}

// run wires the components together and blocks until an interrupt arrives.
func run(ctx context.Context, opts runOptions) error {
	log.SetVerbose(opts.verbose)

	dataDir := opts.dataDir
	if dataDir == "" {
		var err error
		if dataDir, err = config.GetPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	lock, err := util.AcquireInstanceLock(filepath.Join(dataDir, config.LockFile))
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Printf("Failed to release instance lock: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settingsMgr := config.NewManager(dataDir)
	settings, err := settingsMgr.Load()
	if err != nil {
		log.Printf("Settings: %v", err)
	}
	log.Printf("%s %s starting (data dir %s, autostart=%t, minimized=%t)",
		config.AppName, config.AppVersion, dataDir, opts.autostart, opts.minimized)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := wallpaper.NewMetrics(reg)

	client := wallpaper.NewHTTPClient(nil)
	history := wallpaper.NewHistoryLedger(filepath.Join(dataDir, config.HistoryFile), config.DefaultMaxHistoryEntries)
	store, err := wallpaper.NewArtworkStore(
		filepath.Join(dataDir, config.ArtworksDir),
		filepath.Join(dataDir, config.MetadataDir),
		func() int { return settingsMgr.Current().MaxStoredArtworks },
		metrics,
	)
	if err != nil {
		return err
	}

	desktop := wallpaper.Desktop()
	processor := wallpaper.NewSmartImageProcessor(
		func() (int, int) { return wallpaper.ScreenSize(desktop) },
		func() bool { return settingsMgr.Current().SmartCrop },
	)
	cacheDir := filepath.Join(dataDir, config.CacheDir)
	probe := wallpaper.NewTCPProbe()
	artworks, err := wallpaper.NewArtworkProvider(
		wallpaper.SelectedSource(wallpaper.SourceDeps{
			Client:    client,
			Ledger:    history,
			Processor: processor,
			CacheDir:  cacheDir,
			Settings:  settingsMgr.Current,
		}),
		cacheDir,
		probe,
		wallpaper.WithProviderMetrics(metrics),
	)
	if err != nil {
		return err
	}
	if opts.clearData {
		log.Print("Clearing the download cache")
		artworks.ClearCache()
	}

	scheduler := wallpaper.NewScheduler(wallpaper.SchedulerDeps{
		Settings: settingsMgr.Current,
		Fetcher:  artworks,
		Library:  store,
		History:  history,
		Setter:   desktop,
		Probe:    probe,
		State:    wallpaper.NewStateFile(filepath.Join(dataDir, config.StateFile)),
		Metrics:  metrics,
	})
	controller := service.NewController(scheduler, store, history, service.Options{})
	defer controller.Cleanup()

	if settings.IsFirstRun {
		if _, err := settingsMgr.Update(func(s *config.Settings) { s.IsFirstRun = false }); err != nil {
			log.Printf("Settings: failed to clear first-run flag: %v", err)
		}
		log.Print("First run: starting the wallpaper service")
	}
	controller.StartService(ctx)

	updates, unsubscribe := settingsMgr.Subscribe()
	defer unsubscribe()
	go controller.FollowSettings(ctx, updates)

	server := api.NewServer(settings.ControlAddr, config.AppVersion, controller, reg)
	if _, err := server.Start(ctx); err != nil {
		log.Printf("API: control server disabled: %v", err)
		server = nil
	}

	if settings.CheckForUpdates {
		go checkForUpdates(ctx, client)
	}

	<-ctx.Done()
	log.Print("Shutting down")

	controller.Cleanup()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			log.Printf("API: shutdown: %v", err)
		}
	}
	return nil
}

func checkForUpdates(ctx context.Context, client *http.Client) {
	ctx, cancel := context.WithTimeout(ctx, updateCheckTimeout)
	defer cancel()

	result, err := util.CheckForUpdates(ctx, client, config.AppVersion)
	if err != nil {
		log.Debugf("Update check failed: %v", err)
		return
	}
	if result.UpdateAvailable {
		log.Printf("A new version is available: %s (running %s) %s",
			result.LatestVersion, result.CurrentVersion, result.ReleaseURL)
	}
}

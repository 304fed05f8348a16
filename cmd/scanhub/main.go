package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/scanhub/scanhub/internal/api"
	"github.com/scanhub/scanhub/internal/archive"
	"github.com/scanhub/scanhub/internal/config"
	"github.com/scanhub/scanhub/internal/discovery"
	"github.com/scanhub/scanhub/internal/engine"
	"github.com/scanhub/scanhub/internal/launcher"
	"github.com/scanhub/scanhub/internal/output"
	"github.com/scanhub/scanhub/internal/registry"
	"github.com/scanhub/scanhub/internal/service"
	"github.com/scanhub/scanhub/internal/store"
	"github.com/scanhub/scanhub/internal/synth"
)

const startupDiscoveryTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	platform := cfg.Platform
	if platform == "" {
		platform = discovery.HostPlatform()
	}

	logger.Info("scanhub: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"platform", platform,
	)

	hist, err := archive.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer hist.Close()

	jobs := store.New()
	devices := registry.New()
	out := output.Resolver{Base: cfg.OutputDir}

	eng := engine.New(jobs, devices, synth.NewGenerator(), out, hist, logger, engine.Params{
		DurationMin: cfg.Sim.ScanDurationMin,
		DurationMax: cfg.Sim.ScanDurationMax,
		Steps:       cfg.Sim.ScanSteps,
		FailureRate: cfg.Sim.FailureRate,
	})

	providers := discovery.NewProviders()
	discovery.RegisterSimulated(providers, cfg.Sim.DiscoveryDelay, cfg.Sim.DeviceDelay)

	svc := service.New(service.Deps{
		Registry:  devices,
		Store:     jobs,
		Engine:    eng,
		History:   hist,
		Providers: providers,
		Opener:    launcher.Launcher{},
		Output:    out,
		Logger:    logger,
		Platform:  platform,
		Sim:       cfg.Sim,
	})

	// Seed the registry so the instance is usable before the first
	// explicit discovery request.
	ctx, cancel := context.WithTimeout(context.Background(), startupDiscoveryTimeout)
	if _, err := svc.DiscoverDevices(ctx); err != nil {
		logger.Warn("startup discovery failed", "error", err)
	}
	cancel()

	srv := api.NewServer(cfg.ListenAddr, svc, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	eng.Wait()
}

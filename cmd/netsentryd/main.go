package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/netsentry/netsentry/internal/alerts"
	"github.com/netsentry/netsentry/internal/api"
	"github.com/netsentry/netsentry/internal/config"
	"github.com/netsentry/netsentry/internal/discovery"
	"github.com/netsentry/netsentry/internal/health"
	"github.com/netsentry/netsentry/internal/monitor"
	"github.com/netsentry/netsentry/internal/netrange"
	"github.com/netsentry/netsentry/internal/probe"
	"github.com/netsentry/netsentry/internal/store"
	"github.com/netsentry/netsentry/internal/wifi"
	"github.com/netsentry/netsentry/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watch := flag.Bool("watch", true, "reload the config file on change")
	autostart := flag.Bool("autostart", true, "begin health sampling immediately")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("netsentryd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"scan_range", cfg.Scan.Range,
		"strategy", cfg.Scan.Strategy,
		"sample_interval", cfg.Health.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mon, err := buildMonitor(cfg)
	if err != nil {
		slog.Error("failed to assemble monitor", "err", err)
		os.Exit(1)
	}

	if *watch {
		go func() {
			if err := config.Watch(ctx, *configPath, mon.ApplyConfig); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	if *autostart {
		mon.StartHealth(0)
	}

	hub := ws.New(mon)
	go hub.Run(ctx)

	apiHandler := api.New(mon, cfg.Server.Auth)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/metrics", apiHandler)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("netsentryd shutting down")
	mon.StopHealth()
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

// buildMonitor assembles the probers and subsystems around the configuration.
// Probers degrade gracefully: ARP needs raw sockets and may be unavailable,
// ICMP falls back to TCP connect probing when unprivileged.
func buildMonitor(cfg *config.Config) (*monitor.Monitor, error) {
	var arpProber probe.Prober
	if ap, err := probe.NewARP(cfg.Scan.Interface); err != nil {
		slog.Warn("arp probing unavailable, sweeps will use ping", "err", err)
	} else {
		arpProber = ap
	}

	var pingProber probe.Prober
	if p, err := probe.NewPinger(); err != nil {
		slog.Warn("icmp probing unavailable, falling back to tcp connect", "err", err)
		pingProber = probe.NewTCP()
	} else {
		pingProber = p
	}

	strategy, err := probe.ParseStrategy(cfg.Scan.Strategy)
	if err != nil {
		return nil, err
	}
	if arpProber == nil && strategy == probe.StrategyARP {
		return nil, errors.New("scan.strategy is arp but arp probing is unavailable")
	}

	target, err := netip.ParseAddr(cfg.Health.Target)
	if err != nil {
		return nil, fmt.Errorf("health.target: %w", err)
	}
	policy, err := cfg.Health.Policy.BuildPolicy()
	if err != nil {
		return nil, err
	}

	sampler := health.NewSampler(pingProber, target, cfg.Health.ProbeTimeout, cfg.Health.References)
	tracker := health.NewTracker(sampler, policy, cfg.Health.WindowSize, cfg.Health.BatchSize)

	return monitor.New(
		cfg,
		netrange.New(),
		discovery.New(arpProber, pingProber),
		wifi.New(),
		tracker,
		alerts.New(cfg.Alerts),
		store.New(),
	), nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FlorentB974/lanmon/internal/config"
	"github.com/FlorentB974/lanmon/internal/enrich"
	"github.com/FlorentB974/lanmon/internal/events"
	"github.com/FlorentB974/lanmon/internal/handler"
	"github.com/FlorentB974/lanmon/internal/hub"
	"github.com/FlorentB974/lanmon/internal/logger"
	"github.com/FlorentB974/lanmon/internal/probe"
	"github.com/FlorentB974/lanmon/internal/repository/sqlite"
	"github.com/FlorentB974/lanmon/internal/scan"
)

func main() {
	configPath := flag.String("config", "", "config file path (overrides search locations)")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	subnet := flag.String("subnet", "", "subnet to scan in CIDR notation (overrides config)")
	flag.Parse()

	cfg, source, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *subnet != "" {
		cfg.Scan.Subnet = *subnet
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	defer log.Sync()

	if source != "" {
		log.Info("config loaded", logger.String("path", source))
	} else {
		log.Info("no config file found, using defaults")
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to open database", logger.Error(err))
	}
	defer store.Close()
	log.Info("database opened", logger.String("path", cfg.Database.Path))

	scanSubnet := cfg.EffectiveSubnet()
	if scanSubnet == "" {
		log.Fatal("no subnet configured and auto-detection failed")
	}

	publisher := events.NewPublisher(log, events.DefaultQueueSize)
	defer publisher.Close()

	chain := buildChain(cfg, log)
	log.Info("probe chain assembled",
		logger.Any("strategies", chain.Names()),
		logger.String("subnet", scanSubnet))

	enricher := buildEnricher(cfg, log)
	reconciler := scan.NewReconciler(store, log)
	orchestrator := scan.NewOrchestrator(store, chain, enricher, reconciler, publisher, scanSubnet, log)
	scheduler := scan.NewScheduler(orchestrator, time.Duration(cfg.Scan.Interval), log)

	devices := handler.NewDeviceHandler(store, enricher, log)
	scans := handler.NewScanHandler(store, scheduler, log)
	stream := hub.New(publisher, log)
	router := handler.NewRouter(devices, scans, stream, log)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	scheduler.Start(context.Background())

	go func() {
		log.Info("server listening", logger.String("addr", cfg.Listen))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal("server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("server shutdown error", logger.Error(err))
	}

	// Waits for any in-flight scan session to finish.
	scheduler.Stop()

	log.Info("stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// buildChain assembles the probe fallback chain in precedence order.
// The neighbor table reader always terminates the chain so a host with
// no scanning tools installed still yields results.
func buildChain(cfg *config.Config, log logger.Logger) *probe.Chain {
	var entries []probe.ChainEntry

	if cfg.StrategyEnabled("nmap") {
		entries = append(entries, probe.ChainEntry{
			Strategy: probe.NewNmapStrategy(),
			Timeout:  cfg.StrategyTimeout("nmap", 2*time.Minute),
		})
	}
	if cfg.StrategyEnabled("arpscan") {
		entries = append(entries, probe.ChainEntry{
			Strategy: probe.NewArpScanStrategy(),
			Timeout:  cfg.StrategyTimeout("arpscan", time.Minute),
		})
	}
	if cfg.StrategyEnabled("pingsweep") {
		entries = append(entries, probe.ChainEntry{
			Strategy: probe.NewPingSweepStrategy(),
			Timeout:  cfg.StrategyTimeout("pingsweep", 2*time.Minute),
		})
	}
	entries = append(entries, probe.ChainEntry{
		Strategy: probe.NewNeighborStrategy(),
		Timeout:  cfg.StrategyTimeout("neighbors", 30*time.Second),
	})

	return probe.NewChain(log, entries...)
}

// buildEnricher wires the enrichment passes. A missing vendor database
// degrades to no vendor lookup rather than refusing to start.
func buildEnricher(cfg *config.Config, log logger.Logger) *enrich.Enricher {
	oui, err := enrich.LoadOUIDB()
	if err != nil {
		log.Warn("vendor database unavailable", logger.Error(err))
		oui = nil
	} else {
		log.Info("vendor database loaded", logger.Int("prefixes", oui.Len()))
	}

	return enrich.New(log, oui, enrich.Options{
		MDNS:    cfg.Enrich.MDNSEnabled(),
		RDNS:    cfg.Enrich.RDNSEnabled(),
		Ports:   cfg.Enrich.PortsEnabled(),
		Timeout: time.Duration(cfg.Enrich.Timeout),
	})
}

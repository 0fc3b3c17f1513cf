package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/config"
	"enterprise_sim/internal/enterprise"
	"enterprise_sim/internal/journal"
	"enterprise_sim/internal/messaging/inproc"
	"enterprise_sim/internal/simulation"
	sqlitestore "enterprise_sim/internal/store/sqlite"
	"enterprise_sim/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: ~/.enterprise_sim/config.toml)")
	addrFlag := flag.String("addr", "", "http listen address override")
	dbPathFlag := flag.String("db", "", "sqlite journal path override")
	rosterFlag := flag.String("roster", "", "YAML roster file override")
	seedFlag := flag.Uint64("seed", 0, "random seed override (0 keeps config or time-based seed)")
	autostart := flag.Bool("autostart", false, "start the simulation immediately")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	addr := firstNonEmpty(*addrFlag, cfg.Simulator.Addr, ":8092")
	dbPath := filepath.Clean(firstNonEmpty(*dbPathFlag, cfg.Simulator.DBPath, "data/enterprise_sim.db"))
	rosterPath := firstNonEmpty(*rosterFlag, cfg.Simulator.RosterPath)

	roster, err := config.LoadRoster(rosterPath)
	if err != nil {
		log.Fatalf("load roster: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("create db directory: %v", err)
	}
	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		log.Fatalf("open sqlite store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate sqlite: %v", err)
	}

	bus := inproc.New(256)
	events := bus.Subscribe("journal")
	state := enterprise.New(roster, enterprise.WithPublisher(bus))

	advisor, err := buildAdvisor(cfg.Advisory, log.Default())
	if err != nil {
		log.Fatalf("create advisor: %v", err)
	}

	seed := cfg.Simulator.Seed
	if *seedFlag != 0 {
		seed = *seedFlag
	}
	svc, err := simulation.New(state, advisor, simulation.Config{
		TickInterval:         durationMS(cfg.Simulator.TickIntervalMS, 3*time.Second),
		DriftProbability:     cfg.Simulator.DriftProbability,
		OfflineProbability:   cfg.Simulator.OfflineProbability,
		SignalProbability:    cfg.Simulator.SignalProbability,
		InsightProbability:   cfg.Simulator.InsightProbability,
		DisablePerturbations: cfg.Simulator.DisablePerturbations,
		HealthEvery:          intOrDefault(cfg.Simulator.HealthEvery, 5),
		DecomposeCacheSize:   cfg.Simulator.DecomposeCacheSize,
		Seed:                 seed,
	}, log.Default())
	if err != nil {
		log.Fatalf("create simulation: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc.SetRecorder(telemetry.MustNewMetrics(reg, svc.Snapshot))

	writer := journal.New(store, log.Default())

	a := &app{
		cfg:     cfg,
		sim:     svc,
		journal: store,
		metrics: metricsHandler(reg),
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(a.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	svc.Start(gctx)
	g.Go(func() error {
		svc.Wait()
		return nil
	})
	g.Go(func() error {
		return writer.Run(gctx, events)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if *autostart {
		svc.ToggleSimulation()
	}

	log.Printf(
		"enterprise_sim started addr=%s db=%s roster=%s agents=%d advisory=%t config=%s",
		addr,
		dbPath,
		firstNonEmpty(rosterPath, "builtin"),
		len(state.Agents()),
		cfg.Advisory.Enabled(),
		cfg.Path,
	)

	if err := g.Wait(); err != nil {
		log.Printf("shutdown with error: %v", err)
	}
	bus.Unsubscribe("journal")
	log.Printf("enterprise_sim stopped journal_written=%d journal_failed=%d", writer.Written(), writer.Failed())
}

func buildAdvisor(cfg config.AdvisoryConfig, logger *log.Logger) (advisory.Advisor, error) {
	if !cfg.Enabled() {
		logger.Printf("advisory endpoint not configured; running with rule-based fallbacks")
		return advisory.Unavailable{}, nil
	}
	api, err := advisory.NewAPIAdvisor(advisory.APIAdvisorConfig{
		Endpoint:        cfg.Endpoint,
		Model:           cfg.Model,
		ReasoningEffort: cfg.ReasoningEffort,
		AuthToken:       cfg.Token(),
		Timeout:         durationMS(cfg.TimeoutMS, 0),
		Retries:         cfg.Retries,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	return api, nil
}

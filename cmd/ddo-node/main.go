// Package main is the entry point for the DDO node.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/ddomesh/ddo-node/business/chain"
	chainApp "github.com/ddomesh/ddo-node/business/chain/app"
	chainDI "github.com/ddomesh/ddo-node/business/chain/di"
	"github.com/ddomesh/ddo-node/business/resolver"
	resolverApp "github.com/ddomesh/ddo-node/business/resolver/app"
	resolverDI "github.com/ddomesh/ddo-node/business/resolver/di"
	"github.com/ddomesh/ddo-node/business/storage"
	storageDI "github.com/ddomesh/ddo-node/business/storage/di"
	"github.com/ddomesh/ddo-node/internal/api"
	"github.com/ddomesh/ddo-node/internal/apm"
	"github.com/ddomesh/ddo-node/internal/config"
	"github.com/ddomesh/ddo-node/internal/health"
	"github.com/ddomesh/ddo-node/internal/logger"
	"github.com/ddomesh/ddo-node/internal/metrics"
	"github.com/ddomesh/ddo-node/internal/monolith"
	"github.com/ddomesh/ddo-node/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run headless with logs (no dashboard)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ddo-node %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Dashboard is the default, headless is for servers and debugging
	tuiMode := !*cliMode

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	// Run application
	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set dashboard mode in config so modules know
	cfg.Node.TUIMode = tuiMode

	// Setup logger (only log to stderr in headless mode)
	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// In dashboard mode, suppress logs (discard output)
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting DDO node",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		// Set service name env var for OTEL
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		provider := traceProviderFor(cfg.Telemetry.TraceProvider)
		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(provider, log))
		log.Info(ctx, "tracing initialized",
			"provider", cfg.Telemetry.TraceProvider,
			"endpoint", cfg.Telemetry.OTLPEndpoint)

		// Initialize metrics with Prometheus
		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		// Start Prometheus metrics server in background
		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9464
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Start health check server
	healthServer := health.NewServer(cfg.Health.Port, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer healthServer.Stop(ctx)

	// Create monolith (application container)
	mono := monolith.New(cfg, log)
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&chain.Module{},    // Must be first - the resolver may verify against its networks
		&resolver.Module{},
		&storage.Module{},
	}

	// Register all module services
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	// Services and the gateway come up inside start so the dashboard can
	// show progress while connections are made.
	var (
		gateway     *api.Server
		resolverSvc *resolverApp.Resolver
		chainSvc    *chainApp.ChainService
	)

	start := func() error {
		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "store", Status: "connecting"})
		ui.Send(ui.StartupMsg{Step: "networks", Status: "connecting"})

		if err := mono.StartModules(ctx, modules...); err != nil {
			ui.Send(ui.StartupMsg{Step: "networks", Status: "failed"})
			return fmt.Errorf("failed to start modules: %w", err)
		}

		ui.Send(ui.StartupMsg{Step: "store", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "networks", Status: "done"})

		resolverSvc = resolverDI.GetResolverService(mono.Services())
		chainSvc = chainDI.GetChainService(mono.Services())
		storageSvc := storageDI.GetStorageService(mono.Services())

		registerHealthChecks(healthServer, resolverSvc, chainSvc)

		gateway = api.New(api.DefaultConfig(cfg.Node.ListenAddr),
			resolverSvc, chainSvc, storageSvc, mono.Bus(), log)
		return nil
	}

	stop := func() {
		if chainSvc != nil {
			chainSvc.Close()
		}
		if closer, ok := resolverDI.GetDescriptorStore(mono.Services()).(io.Closer); ok {
			_ = closer.Close()
		}
	}

	// snapshot feeds the dashboard's network table and counters. Only
	// called after start has resolved the services.
	snapshot := func(ctx context.Context) ui.StatusSnapshotMsg {
		msg := ui.StatusSnapshotMsg{}
		for _, st := range chainSvc.Statuses() {
			msg.Chains = append(msg.Chains, ui.ChainStatus{
				ChainID:   st.ChainID,
				Name:      st.Name,
				State:     string(st.State),
				Endpoint:  st.Endpoint,
				Height:    st.LastBlock,
				Failovers: st.Failovers,
			})
		}
		if stats, err := resolverSvc.Stats(ctx); err == nil {
			msg.StoredDescriptors = stats.StoredDescriptors
			msg.CachedRecords = stats.CachedRecords
		}
		return msg
	}

	if tuiMode {
		return runTUI(ctx, mono, start, stop, snapshot, func() *api.Server { return gateway })
	}

	// Headless mode: start everything synchronously and serve until the
	// context is cancelled.
	if err := start(); err != nil {
		return err
	}
	defer stop()

	log.Info(ctx, "ddo node started",
		"listen", cfg.Node.ListenAddr,
		"networks", len(chainSvc.Statuses()),
		"peers", len(cfg.Node.Peers))

	return gateway.Start(ctx)
}

// registerHealthChecks wires readiness: the store must answer and, when
// networks are configured, at least one must be connected.
func registerHealthChecks(srv *health.Server, resolverSvc *resolverApp.Resolver, chainSvc *chainApp.ChainService) {
	srv.RegisterCheck("store", func(ctx context.Context) (bool, string) {
		if _, err := resolverSvc.Stats(ctx); err != nil {
			return false, err.Error()
		}
		return true, ""
	})

	srv.RegisterCheck("chains", func(ctx context.Context) (bool, string) {
		statuses := chainSvc.Statuses()
		if len(statuses) == 0 {
			return true, "no networks configured"
		}
		for _, st := range statuses {
			if st.Ready() {
				return true, ""
			}
		}
		return false, "no network connected"
	})
}

// traceProviderFor maps the config name onto an apm provider.
func traceProviderFor(name string) apm.Provider {
	switch strings.ToLower(name) {
	case "newrelic":
		return apm.NewRelicProvider
	case "honeycomb":
		return apm.HoneycombProvider
	case "console":
		return apm.ConsoleProvider
	case "none":
		return apm.EmptyProvider
	default:
		return apm.ZipkinProvider
	}
}

func runTUI(ctx context.Context, mono monolith.Monolith, start func() error, stop func(), snapshot ui.StatusSource, gateway func() *api.Server) error {
	// Channel to receive the start signal from the welcome screen
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create and start the dashboard IMMEDIATELY (shows welcome screen)
	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	// Run node logic in background (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete
		select {
		case <-startSignal:
			// Welcome complete, start modules
		case <-ctx.Done():
			errCh <- nil
			return
		}

		// Start modules (connections happen here, dashboard shows progress)
		if err := start(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		// Bring the gateway up in the background
		go func() {
			if err := gateway().Start(ctx); err != nil {
				ui.Send(ui.ErrorMsg{Error: err})
			}
		}()
		ui.Send(ui.StartupMsg{Step: "gateway", Status: "done"})

		// Bridge the event bus into the dashboard
		if err := ui.StartFeed(ctx, mono.Bus(), snapshot); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}

		// Wait for context cancellation
		<-ctx.Done()

		stop()
		errCh <- nil
	}()

	// Run dashboard (blocking) - shows immediately with welcome screen
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}

	// Check for node errors
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// BMO face - the face of the BMO brain
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

	"github.com/joho/godotenv"
	"github.com/kevingtzz/BMO-project/internal/avatar"
	"github.com/kevingtzz/BMO-project/internal/brainlink"
	"github.com/kevingtzz/BMO-project/internal/bridge"
	"github.com/kevingtzz/BMO-project/internal/bus"
	"github.com/kevingtzz/BMO-project/internal/calibration"
	"github.com/kevingtzz/BMO-project/internal/config"
	"github.com/kevingtzz/BMO-project/internal/contract"
	"github.com/kevingtzz/BMO-project/internal/logging"
	"github.com/kevingtzz/BMO-project/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// loadEnvFiles loads ~/.bmoface/.env and ./.env. Variables already set in
// the environment win.
func loadEnvFiles() []string {
	var paths []string
	if dir, err := config.GetConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	paths = append(paths, ".env")

	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

func main() {
	envFiles := loadEnvFiles()

	cfg, cfgErr := config.Load()

	brainURL := flag.String("brain", cfg.Brain.URL, "Brain WebSocket URL")
	level := flag.String("level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	policy := flag.String("reversion", cfg.Avatar.ReversionPolicy, "Timed emotion policy (superseded, last_fired)")
	quiet := flag.Bool("quiet", !cfg.Logging.Console, "Keep logs off the terminal")
	flag.Parse()

	cfg.Brain.URL = *brainURL
	cfg.Logging.Level = *level
	cfg.Avatar.ReversionPolicy = *policy
	cfg.Logging.Console = !*quiet

	// Initialize structured logger FIRST
	syslog, err := logging.New(&logging.Config{
		LogDir:     cfg.Logging.Dir,
		Level:      logging.LogLevel(cfg.Logging.Level),
		MaxHistory: cfg.Logging.MaxHistory,
		Console:    cfg.Logging.Console,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer syslog.Close()
	mainLog := syslog.Component("main")

	mainLog.Info().Msg("BMO face starting...")
	if len(envFiles) > 0 {
		mainLog.Info().Strs("files", envFiles).Msg("Loaded environment files")
	}
	if cfgErr != nil {
		mainLog.Warn().Err(cfgErr).Msg("Failed to load config, using defaults where needed")
	}
	if err := cfg.Validate(); err != nil {
		mainLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	catalog := contract.Default()
	if cfg.Brain.ContractFile != "" {
		catalog, err = contract.LoadFile(cfg.Brain.ContractFile)
		if err != nil {
			mainLog.Fatal().Err(err).Str("file", cfg.Brain.ContractFile).Msg("Failed to load face contract")
		}
	}
	mainLog.Info().
		Str("brain", cfg.Brain.URL).
		Str("contract", catalog.Version()).
		Str("reversion", cfg.Avatar.ReversionPolicy).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)
	if cfg.Metrics.Listen != "" {
		go serveMetrics(ctx, cfg.Metrics.Listen, registry, syslog.Component("metrics"))
	}

	eventBus := bus.NewEventBus()

	link := brainlink.NewClient(brainlink.Config{
		URL:              cfg.Brain.URL,
		HandshakeTimeout: cfg.Brain.HandshakeTimeout,
	}, syslog.Zerolog(), brainlink.WithMetrics(m))

	controller := avatar.NewController(link, catalog, syslog.Zerolog(),
		avatar.WithBus(eventBus),
		avatar.WithMetrics(m),
		avatar.WithReversionPolicy(avatar.ReversionPolicy(cfg.Avatar.ReversionPolicy)),
	)
	go controller.Run(ctx)

	store := calibration.NewStore(cfg.Calibration.File, syslog.Zerolog())
	store.Load()

	emitter := bridge.NewLineEmitter(os.Stdout)

	avatarBridge := bridge.NewAvatarBridge(controller, eventBus)
	connectionBridge := bridge.NewConnectionBridge(controller, eventBus, link.URL(), syslog.Zerolog())
	settingsBridge := bridge.NewSettingsBridge(store, eventBus, syslog.Zerolog())
	logBridge := bridge.NewLogBridge(syslog)

	avatarBridge.Bind(emitter)
	connectionBridge.Bind(ctx, emitter)
	settingsBridge.Bind(ctx, emitter)
	if !cfg.Logging.Console {
		// Surface problems even when the log stream itself is hidden.
		logBridge.Bind(emitter, zerolog.WarnLevel)
	}

	connectionBridge.Connect()

	console := bridge.NewConsole(avatarBridge, connectionBridge, settingsBridge, logBridge, os.Stdout)
	if err := console.Run(ctx, os.Stdin); err != nil {
		mainLog.Error().Err(err).Msg("Console input failed")
	}

	connectionBridge.Disconnect()
	mainLog.Info().Msg("BMO face exited normally")
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("listen", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Metrics listener stopped")
	}
}

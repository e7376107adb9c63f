package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/warp/toil-engine/api"
	"github.com/warp/toil-engine/config"
	"github.com/warp/toil-engine/metrics"
	storeredis "github.com/warp/toil-engine/store/redis"
	"github.com/warp/toil-engine/store/sqlite"
)

var (
	serveConfig string
	servePort   int
	serveDB     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "YAML config file (default $TOIL_CONFIG_PATH)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (overrides config)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", `SQLite database path, ":memory:" for in-memory (overrides config)`)
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveDB != "" {
		cfg.Database.Path = serveDB
	}
	logger = logger.Level(cfg.LogLevel())

	fc, err := cfg.Fortnight()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := api.Options{Fortnight: fc, DailyFallback: cfg.DailyFallback(), Log: logger}
	if cfg.RedisEnabled() {
		client, err := storeredis.Dial(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		opts.KV = storeredis.NewKV(client, "")
		logger.Info().Str("address", cfg.Redis.Address).Msg("TOIL thresholds stored in redis")
	}

	handler := api.NewHandler(store, opts)
	router := api.NewRouter(handler)

	pruner := api.NewPruneScheduler(handler)
	pruner.Start()
	defer pruner.Stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Str("db", cfg.Database.Path).
			Str("fortnight_anchor", fc.Anchor.String()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	handler.Tracker.Wait()

	logger.Info().Msg("server stopped")
	return nil
}

// loadConfig reads --config, then $TOIL_CONFIG_PATH, then falls back to defaults.
func loadConfig() (*config.Config, error) {
	path := serveConfig
	if path == "" {
		path = os.Getenv("TOIL_CONFIG_PATH")
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

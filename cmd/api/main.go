package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rostersync/internal/api"
	"rostersync/internal/config"
	"rostersync/internal/database"
	"rostersync/internal/logging"
	"rostersync/internal/metrics"
	"rostersync/internal/models"
	"rostersync/internal/queue"
	"rostersync/internal/repository"
	"rostersync/internal/sheets"
	syncer "rostersync/internal/sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	codes, err := loadShiftCodes(cfg, &logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, runs := initRunRepository(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sheetClient, err := initSheets(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	engine := syncer.NewOrchestrator(db, sheetClient, codes, runs, queueOptions(cfg), &logger)
	httpServer := api.NewHTTPServer(cfg.API, cfg.Targets, engine, runs, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadShiftCodes merges codes from the main config with an optional
// standalone shift_codes.yaml, letting ward clerks maintain the code
// table without touching the service config.
func loadShiftCodes(cfg *config.Config, logger *zerolog.Logger) (models.ShiftCodeTable, error) {
	codes := append([]models.ShiftCode(nil), cfg.ShiftCodes...)

	codesPath := cfg.Sync.ShiftCodesFile
	if codesPath == "" {
		codesPath = os.Getenv("SHIFT_CODES_PATH")
	}
	if codesPath != "" {
		data, err := os.ReadFile(codesPath)
		if err != nil {
			logger.Error().Err(err).Str("path", codesPath).Msg("read shift codes")
			return nil, err
		}
		var fileCodes struct {
			ShiftCodes []models.ShiftCode `yaml:"shift_codes"`
		}
		if err := yaml.Unmarshal(data, &fileCodes); err != nil {
			logger.Error().Err(err).Str("path", codesPath).Msg("parse shift codes")
			return nil, err
		}
		codes = append(codes, fileCodes.ShiftCodes...)
	}

	if len(codes) == 0 {
		logger.Warn().Msg("no shift codes configured; imports will create records without default times")
	}
	return models.NewShiftCodeTable(codes), nil
}

func initRunRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, repository.RunRepository) {
	ttl := time.Duration(cfg.Sync.RunTTLSeconds) * time.Second
	fallback := repository.NewMemoryRunRepository(ttl)

	if cfg.Redis.Address == "" {
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, run progress falls back to memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisRunRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverRunRepository(primary, fallback, logger)
}

func initSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*sheets.Service, error) {
	if cfg.Google.CredentialsFile == "" {
		return nil, fmt.Errorf("google credentials file is not configured")
	}

	policy := sheets.DefaultRetryPolicy()
	if cfg.Sync.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.Sync.RetryMaxAttempts
	}

	svc, err := sheets.New(ctx, cfg.Google.CredentialsFile, policy, logger)
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}

	if email, err := sheets.ServiceAccountEmail(cfg.Google.CredentialsFile); err == nil {
		logger.Info().Str("service_account", email).Msg("sheets service initialized; share target spreadsheets with this account")
	}
	return svc, nil
}

func queueOptions(cfg *config.Config) queue.Options {
	return queue.Options{
		Concurrency:      cfg.Sync.QueueConcurrency,
		PerItemDelay:     time.Duration(cfg.Sync.PerItemDelayMs) * time.Millisecond,
		RateLimitBackoff: time.Duration(cfg.Sync.RateLimitDelayMs) * time.Millisecond,
		MaxItemRetries:   cfg.Sync.MaxItemRetries,
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Int("targets", len(cfg.Targets)).Msg("sync server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("sync server stopped")
	return nil
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

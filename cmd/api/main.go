package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"gymaccess/internal/api"
	"gymaccess/internal/config"
	"gymaccess/internal/database"
	"gymaccess/internal/domain"
	"gymaccess/internal/events"
	"gymaccess/internal/export"
	"gymaccess/internal/google"
	"gymaccess/internal/logging"
	"gymaccess/internal/metrics"
	"gymaccess/internal/notify"
	"gymaccess/internal/repository"
	"gymaccess/internal/service"
	"gymaccess/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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
		defer (func() { _ = closer.Close() })()
	}

	mainLog := logging.WithComponent(&logger, "api-main")

	loc, err := cfg.App.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, logging.WithComponent(&logger, "database"))
	if err != nil {
		mainLog.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, mainLog)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	attempts := initAttemptRepository(cfg, redisClient, logging.WithComponent(&logger, "attempts"))

	notifier, err := notify.New(cfg.Notification, logging.WithComponent(&logger, "notify"))
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	mainLog.Info().Str("channel", cfg.Notification.Channel).Msg("notification channel ready")

	eventBus := events.NewEventBus()
	subscribeEventLogging(eventBus, &logger)

	if sheet := initGoogleSheets(ctx, cfg, loc, mainLog); sheet != nil {
		sheetsWorker := worker.NewSheetsWorker(db, sheet, redisClient, worker.DefaultRetryPolicy(), logging.WithComponent(&logger, "sheets-worker"))
		subscribeSheetSync(ctx, eventBus, db, sheetsWorker, mainLog)
		go sheetsWorker.Start(ctx)
	}

	backup := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, logging.WithComponent(&logger, "backup"))
	go backup.Start(ctx)

	directory := service.NewDirectoryService(db, logging.WithComponent(&logger, "directory"))
	booking := service.NewBookingService(
		service.NewEligibilityService(db, logging.WithComponent(&logger, "eligibility")),
		service.NewQuotaService(db, loc, logging.WithComponent(&logger, "quota")),
		directory,
		service.NewReferenceGenerator(db, logging.WithComponent(&logger, "reference")),
		db,
		attempts,
		notifier,
		eventBus,
		service.BookingOptions{
			OperationsEmail:   cfg.Notification.OperationsEmail,
			SubjectPrefix:     cfg.Notification.SubjectPrefix,
			Location:          loc,
			AttemptRateLimit:  cfg.Booking.AttemptRateLimit,
			AttemptRateWindow: time.Duration(cfg.Booking.AttemptRateWindow) * time.Second,
			ConfirmLockTTL:    time.Duration(cfg.Booking.ConfirmLockTTL) * time.Second,
		},
		logging.WithComponent(&logger, "booking"),
	)

	probes := map[string]api.ReadinessProbe{"database": db.Ready}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Booking:   booking,
		Directory: directory,
		Exporter:  export.NewExporter(db, cfg.Exports.Path, loc, &logger),
		Location:  loc,
		Probes:    probes,
	}, &logger)

	startMetrics(ctx, cfg, mainLog)

	return startServer(ctx, httpServer, cfg, mainLog)
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
	return cfg, *baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initAttemptRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.AttemptRepository {
	ttl := time.Duration(cfg.Booking.AttemptTTL) * time.Second
	memory := repository.NewMemoryAttemptRepository(ttl)
	if redisClient == nil {
		logger.Info().Msg("booking attempts kept in memory")
		return memory
	}
	return repository.NewFailoverAttemptRepository(repository.NewRedisAttemptRepository(redisClient, ttl), memory, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, loc *time.Location, logger *zerolog.Logger) *google.AccessLogSheet {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.AccessLogSpreadSheetID == "" {
		return nil
	}

	sheet, err := google.NewAccessLogSheet(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.AccessLogSpreadSheetID, loc)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheet.TestConnection(ctx); err != nil {
		email, _ := google.GetServiceAccountEmail(cfg.Google.GoogleCredentialsFile)
		logger.Warn().Err(err).Str("service_account", email).Msg("google sheets not reachable, share the spreadsheet with the service account")
		return nil
	}
	if err := sheet.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Msg("google sheets connected")
	return sheet
}

func subscribeSheetSync(ctx context.Context, bus *events.EventBus, db *database.DB, w *worker.SheetsWorker, logger *zerolog.Logger) {
	bus.Subscribe(events.EventBookingConfirmed, func(ev *events.Event) error {
		var payload events.BookingEventPayload
		if err := ev.Decode(&payload); err != nil {
			return err
		}
		entry, err := db.GetAccessLogEntry(ctx, payload.EntryID)
		if err != nil {
			return fmt.Errorf("load access log entry %d: %w", payload.EntryID, err)
		}
		if err := w.EnqueueAccessLog(ctx, entry); err != nil {
			logger.Error().Err(err).Str("reference_id", payload.ReferenceID).Msg("enqueue sheet sync")
			return err
		}
		return nil
	})
}

func subscribeEventLogging(bus *events.EventBus, logger *zerolog.Logger) {
	l := logger.With().Str("component", "events").Logger()
	handler := func(ev *events.Event) error {
		var payload events.BookingEventPayload
		if err := ev.Decode(&payload); err != nil {
			return err
		}
		l.Info().
			Str("event", ev.Type).
			Str("attempt_id", payload.AttemptID).
			Str("member_id", payload.MemberID).
			Str("reference_id", payload.ReferenceID).
			Str("reason", payload.Reason).
			Msg("booking event")
		return nil
	}
	for _, t := range []string{events.EventBookingConfirmed, events.EventBookingRejected, events.EventBookingFailed} {
		bus.Subscribe(t, handler)
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	if !cfg.API.Enabled || !cfg.API.HTTP.Enabled {
		logger.Warn().Msg("HTTP API is disabled in config, only background services are running")
	} else {
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
		logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")
	}

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

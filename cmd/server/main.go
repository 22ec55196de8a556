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
	"sync"
	"syscall"
	"time"

	"taskboard/internal/api"
	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/database"
	"taskboard/internal/domain"
	"taskboard/internal/events"
	"taskboard/internal/logging"
	"taskboard/internal/metrics"
	"taskboard/internal/notify"
	"taskboard/internal/repository"
	"taskboard/internal/service"
	"taskboard/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
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
	cfg, baseLogger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "server-main")

	db, err := initDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	queue, err := initQueue(cfg, db, redisClient)
	if err != nil {
		logger.Error().Err(err).Msg("init notification queue")
		return err
	}
	bindings := initBindingStore(cfg, db, redisClient, baseLogger)

	handshake, err := auth.NewHandshakeService(cfg.Auth, logging.Component(baseLogger, "auth"))
	if err != nil {
		logger.Error().Err(err).Msg("init handshake service")
		return err
	}

	botAPI, err := initBot(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("create telegram bot api")
		return err
	}
	sender := service.NewTelegramService(botAPI, cfg.Telegram.SendRate, logging.Component(baseLogger, "telegram"))

	startMetrics(ctx, cfg, logger)

	notifier := notify.NewNotifier(
		notify.NewResolver(bindings, logging.Component(baseLogger, "resolver")),
		sender,
		logging.Component(baseLogger, "notifier"),
	)
	notificationWorker := worker.NewNotificationWorker(
		queue,
		notifier,
		cfg.Notifications.Workers,
		worker.RetryPolicy{InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2},
		logging.Component(baseLogger, "notification-worker"),
	)

	poller := service.NewPoller(
		botAPI,
		service.NewAccountVerifier(handshake, db, logging.Component(baseLogger, "verifier")),
		bindings,
		sender,
		service.PollerConfig{
			Interval: time.Duration(cfg.Telegram.PollInterval) * time.Second,
			Timeout:  cfg.Telegram.PollTimeout,
			Retry: worker.RetryPolicy{
				InitialDelay:  time.Duration(cfg.Telegram.PollInterval) * time.Second,
				MaxDelay:      time.Minute,
				BackoffFactor: 2,
			},
		},
		logging.Component(baseLogger, "poller"),
	)
	if cfg.Telegram.PersistCursor && redisClient != nil {
		poller.WithCursorStore(repository.NewRedisCursorStore(redisClient))
	}

	bus := events.NewBus(queue, logging.Component(baseLogger, "event-bus"))
	tasks := service.NewTaskService(db, bindings, bus, logging.Component(baseLogger, "tasks"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		notificationWorker.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, api.Deps{
			Tasks:    tasks,
			Board:    service.NewBoardService(db, bindings, sender, logging.Component(baseLogger, "board")),
			Export:   service.NewExportService(db),
			Accounts: db,
			Bindings: bindings,
			Keys:     handshake,
		}, logging.Component(baseLogger, "http"))
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().
		Str("queue", cfg.Notifications.Queue).
		Str("bindings", cfg.Notifications.BindingStore).
		Int("workers", cfg.Notifications.Workers).
		Msg("taskboard started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	wg.Wait()

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("Redis unavailable")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initQueue(cfg *config.Config, db *database.DB, client *redis.Client) (events.Queue, error) {
	switch cfg.Notifications.Queue {
	case config.QueueMemory:
		return events.NewMemoryQueue(cfg.Notifications.QueueSize), nil
	case config.QueueRedis:
		if client == nil {
			return nil, errors.New("redis queue requires a redis client")
		}
		return events.NewRedisQueue(client, cfg.Notifications.RedisKey), nil
	case config.QueueSQLite:
		return db.EventQueue(), nil
	default:
		return nil, fmt.Errorf("unknown queue %q", cfg.Notifications.Queue)
	}
}

func initBindingStore(cfg *config.Config, db *database.DB, client *redis.Client, logger *zerolog.Logger) domain.BindingStore {
	switch cfg.Notifications.BindingStore {
	case config.BindingsMemory:
		return repository.NewMemoryBindingStore()
	case config.BindingsRedis:
		return repository.NewRedisBindingStore(client)
	case config.BindingsFailover:
		return repository.NewFailoverBindingStore(
			repository.NewRedisBindingStore(client),
			db,
			logging.Component(logger, "bindings"),
		)
	default:
		return db
	}
}

func initBot(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	endpoint := cfg.Telegram.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	botAPI, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Telegram.BotToken, endpoint)
	if err != nil {
		return nil, err
	}
	botAPI.Debug = cfg.Telegram.Debug
	return botAPI, nil
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

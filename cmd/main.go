package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/ligasur/matchday/config"
	"github.com/ligasur/matchday/db"
	"github.com/ligasur/matchday/feed"
	"github.com/ligasur/matchday/handlers"
	"github.com/ligasur/matchday/live"
	"github.com/ligasur/matchday/repositories"
	api "github.com/ligasur/matchday/routes"
	"github.com/ligasur/matchday/services"
	"github.com/ligasur/matchday/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Экспорт отчётов опционален: без настроенного R2 консоль работает,
	// недоступен только экспорт.
	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("report export disabled: R2 is not configured")
	}

	// Брокер ленты: AMQP, если задан, иначе внутрипроцессный.
	var broker feed.Broker
	if cfg.AMQPURL != "" {
		broker, err = feed.NewAMQPBroker(cfg.AMQPURL)
		if err != nil {
			logger.Error("failed to connect to AMQP broker", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("AMQP feed broker connected")
	} else {
		broker = feed.NewMemoryBroker()
		logger.Info("using in-memory feed broker")
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Error("failed to close feed broker", slog.Any("error", err))
		}
	}()

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("live feed hub started")

	// Инициализация репозиториев
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	incidentRepo := repositories.NewPostgresIncidentRepository(dbConn)
	rosterRepo := repositories.NewPostgresRosterRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	persistence := services.NewPersistenceService(dbConn, matchRepo, incidentRepo, logger)
	rosterService := services.NewRosterService(rosterRepo)
	consoleService := services.NewConsoleService(
		matchRepo,
		incidentRepo,
		rosterService,
		rosterRepo, // UsageSource: использование eventual-игроков из журналов
		persistence,
		services.FanoutNotifier{wsHub, feed.NewNotifier(broker, logger)},
		logger,
		services.ConsoleConfig{
			EventualQuota: cfg.EventualQuota,
			Reconciler: live.ReconcilerConfig{
				Attempts: cfg.ConsoleAttempts,
				Backoff:  cfg.ConsoleBackoff,
			},
		},
	)
	reportService := services.NewReportService(matchRepo, incidentRepo, uploader, logger)
	logger.Info("services initialized")

	// Инициализация обработчиков HTTP
	consoleHandler := handlers.NewConsoleHandler(consoleService)
	reportHandler := handlers.NewReportHandler(reportService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.RouterConfig{
			JWTSecret:     cfg.JWTSecretKey,
			DeviceKeyHash: cfg.ConsoleDeviceKey,
		},
		consoleHandler,
		reportHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}

		// Сессии закрываются после остановки приёма запросов; уже
		// отправленные сохранения довыполняются идемпотентно.
		consoleService.CloseAll()
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

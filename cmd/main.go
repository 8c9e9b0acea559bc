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

	"github.com/coder/quartz"

	"github.com/Dosada05/chip-tournament-system/config"
	"github.com/Dosada05/chip-tournament-system/db"
	"github.com/Dosada05/chip-tournament-system/handlers"
	"github.com/Dosada05/chip-tournament-system/live"
	"github.com/Dosada05/chip-tournament-system/repositories"
	api "github.com/Dosada05/chip-tournament-system/routes"
	"github.com/Dosada05/chip-tournament-system/services"
	"github.com/Dosada05/chip-tournament-system/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

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
		}
	}()
	logger.Info("database connection established")

	// Загрузчик логотипов (Cloudflare R2); без реквизитов — отключён
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
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
		logger.Warn("object storage credentials not set, logo upload disabled")
	}

	// WebSocket-хаб live-обновлений таблицы лидеров
	hub := live.NewHub(logger)
	go hub.Run()

	clock := quartz.NewReal()

	// Репозитории
	txManager := repositories.NewTxManager(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	resultRepo := repositories.NewPostgresRoundResultRepository(dbConn)
	accountRepo := repositories.NewPostgresAccountRepository(dbConn)
	platformRepo := repositories.NewPostgresPlatformRepository(dbConn)

	// Сервисы
	authService := services.NewAuthService(accountRepo, cfg.JWTSecretKey, cfg.JWTTokenTTL, logger)
	accountService := services.NewAccountService(accountRepo)
	platformService := services.NewPlatformService(platformRepo)
	tournamentService := services.NewTournamentService(
		txManager,
		tournamentRepo,
		roundRepo,
		playerRepo,
		platformRepo,
		uploader,
		hub,
		clock,
		logger,
	)
	roundService := services.NewRoundService(txManager, tournamentRepo, roundRepo, tournamentService, clock, logger)
	settlementService := services.NewSettlementService(
		txManager,
		tournamentRepo,
		playerRepo,
		resultRepo,
		accountRepo,
		roundService,
		hub,
		logger,
	)

	// Планировщик жизненного цикла
	schedulerService, err := services.NewSchedulerService(
		tournamentService,
		roundService,
		tournamentRepo,
		clock,
		cfg.RoundDuration,
		cfg.ReconcileInterval,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	tournamentService.AttachScheduler(schedulerService)
	if err := schedulerService.Start(); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := schedulerService.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	// HTTP
	router := api.InitRoutes(api.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Tournament: handlers.NewTournamentHandler(tournamentService, roundService),
		Settlement: handlers.NewSettlementHandler(settlementService),
		Account:    handlers.NewAccountHandler(accountService, settlementService),
		Platform:   handlers.NewPlatformHandler(platformService, accountService),
		WebSocket:  handlers.NewWebSocketHandler(hub, logger),
	}, authService)

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

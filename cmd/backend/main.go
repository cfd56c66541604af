// Package main provides the entry point for the PURLS URL Shortener service.
//
//	@title			PURLS URL Shortener API
//	@version		1.0.0
//	@description	Personalized URL shortener: register, shorten links and track clicks.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:5000
//	@BasePath	/
//
//	@securityDefinitions.apikey	TokenAuth
//	@in							header
//	@name						x-auth-token
//	@description				JWT issued by /api/login
package main

import (
	"PURLS-Backend/internal/analytics"
	"PURLS-Backend/internal/auth"
	"PURLS-Backend/internal/config"
	"PURLS-Backend/internal/database"
	httpHandler "PURLS-Backend/internal/handler/http"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/internal/repository/memory"
	"PURLS-Backend/internal/repository/postgres"
	"PURLS-Backend/internal/repository/sqlite"
	"PURLS-Backend/internal/service"
	"PURLS-Backend/pkg/logger"
	"PURLS-Backend/pkg/useragent"
	"context"
	"errors"
	"fmt"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	_ "PURLS-Backend/docs" // Import swagger docs
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	err := run(cfg, log)
	if syncErr := log.Sync(); syncErr != nil {
		lg.Printf("ERROR: failed to sync zap logger: %v\n", syncErr)
	}
	if err != nil {
		lg.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

// run собирает сервис и блокируется до сигнала остановки.
// Все открытые ресурсы закрываются до возврата, в том числе при ошибке.
func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting PURLS service",
		zap.String("env", cfg.Env),
		zap.String("database_driver", cfg.Database.Driver))

	storage, err := openStorage(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("failed to close storage", zap.Error(err))
		}
	}()

	urlShortenerService := service.NewURLShortener(storage, &cfg.URLShortener, log)

	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey:      []byte(cfg.Auth.JWTSecret),
		AccessTokenTTL: cfg.Auth.TokenTTL,
		Issuer:         cfg.Auth.Issuer,
	})
	passwordService := auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost)

	// Аналитика кликов: nil-интерфейс, если выключена
	var clickProcessor httpHandler.ClickProcessor
	if cfg.Analytics.Enabled {
		parser, err := useragent.NewParser(cfg.Analytics.UARegexesPath, log)
		if err != nil {
			return fmt.Errorf("failed to initialize User-Agent parser: %w", err)
		}
		processor := analytics.NewProcessor(storage, parser, log, analytics.ConfigFrom(&cfg.Analytics))
		if err := processor.Start(); err != nil {
			return fmt.Errorf("failed to start analytics processor: %w", err)
		}
		// Очередь кликов дочищается до закрытия хранилища
		defer func() {
			if err := processor.Stop(); err != nil {
				log.Error("failed to stop analytics processor", zap.Error(err))
			}
		}()
		clickProcessor = processor
	} else {
		log.Info("click analytics disabled")
	}

	httpAPIServer := httpHandler.NewServer(
		storage,
		urlShortenerService,
		clickProcessor,
		jwtService,
		passwordService,
		log,
		cfg.URLShortener.BaseURL,
		cfg.CORS.AllowedOrigins,
	)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address(),
		Handler:      httpAPIServer.SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutting down PURLS service", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	return runErr
}

// openStorage открывает хранилище по драйверу из конфигурации
func openStorage(cfg *config.Config, log *zap.Logger) (repository.Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.NewConnection(&cfg.Database, cfg.Env, log)
		if err != nil {
			return nil, err
		}

		if cfg.Database.AutoMigrate {
			log.Info("running database migrations (auto_migrate: true)")
			if err := database.AutoMigrate(db, log); err != nil {
				database.Close(db, log)
				return nil, err
			}
		} else {
			log.Info("skipping database migrations (auto_migrate: false)")
		}

		return postgres.New(db, log), nil

	case config.DriverSQLite:
		return sqlite.New(cfg.Database.URL, log)

	case config.DriverMemory:
		log.Warn("using in-memory storage, data will not survive a restart")
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

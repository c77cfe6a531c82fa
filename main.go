package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account-service/internal/cache"
	"account-service/internal/config"
	"account-service/internal/db"
	"account-service/internal/handlers"
	"account-service/internal/logger"
	"account-service/internal/mailer"
	"account-service/internal/queue"
	"account-service/internal/repository"
	"account-service/internal/router"
	"account-service/internal/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.UsesDefaultSecret() {
		log.Warn().Msg("JWT_SECRET is not set, using the development default")
	}
	log.Info().Str("env", cfg.Env).Msg("Application starting")

	ctx := context.Background()

	var (
		users    repository.UserRepository
		audits   repository.AuditRepository
		dbPinger handlers.Pinger
		database *sql.DB
	)
	switch cfg.DBDriver {
	case "memory":
		mem := repository.NewMemoryUserRepository()
		users, audits, dbPinger = mem, repository.NewMemoryAuditRepository(), mem
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
	default:
		var err error
		database, err = db.InitDB(ctx, cfg.DBDriver, cfg.DBUrl, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		if err := db.RunMigrations(ctx, database, cfg.DBDriver, log); err != nil {
			log.Fatal().Err(err).Msg("Database migration failed")
		}
		dialect, err := repository.DialectFor(cfg.DBDriver)
		if err != nil {
			log.Fatal().Err(err).Msg("Unsupported database dialect")
		}
		sqlUsers := repository.NewSQLUserRepository(database, dialect, log)
		users, audits, dbPinger = sqlUsers, repository.NewSQLAuditRepository(database, dialect), sqlUsers
	}

	redisCfg := cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.NewRedisClient(ctx, redisCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	ledger := services.NewRedisLedger(redisClient)

	hasher, err := services.NewPasswordHasher(services.HasherConfig{
		Algorithm:  cfg.PasswordHasher,
		BcryptCost: cfg.BcryptCost,
		Workers:    cfg.HashWorkers,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Password hasher setup failed")
	}
	log.Info().Str("algorithm", hasher.Algorithm()).Int("workers", cfg.HashWorkers).Msg("Password hasher ready")

	tokens, err := services.NewTokenService(services.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		ResetTTL:   cfg.ResetTokenTTL,
	}, ledger, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Token service setup failed")
	}

	var mail mailer.Mailer = mailer.NewLogMailer(log)
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	}

	asynqClient := asynq.NewClient(redisCfg.AsynqOpt())
	dispatcher := queue.NewDispatcher(asynqClient, log)

	worker := queue.NewWorker(redisCfg.AsynqOpt(), 5,
		queue.NewPasswordResetHandler(mail, cfg.ResetURL, cfg.ResetTokenTTL, log), log)
	if err := worker.Start(); err != nil {
		log.Fatal().Err(err).Msg("Task worker failed to start")
	}

	audit := services.NewAuditService(audits, log)
	authService := services.NewAuthService(users, hasher, tokens, audit, dispatcher, log)
	userService := services.NewUserService(users, tokens, audit, log)

	handler := router.SetupRouter(router.Deps{
		Auth:   authService,
		Users:  userService,
		Tokens: tokens,
		Health: handlers.NewHealthHandler(dbPinger, ledger, log),
	}, router.Options{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: cfg.RequestTimeout,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	worker.Shutdown()
	if err := asynqClient.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing task client")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing redis client")
	}
	if database != nil {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}

	log.Info().Msg("Server stopped")
}

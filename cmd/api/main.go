package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/config"
	"rh-portal-be/internal/database"
	"rh-portal-be/internal/falerh"
	"rh-portal-be/internal/http/router"
	"rh-portal-be/internal/logger"
	"rh-portal-be/internal/store"
	"rh-portal-be/internal/ws"
)

func main() {
	_ = godotenv.Load()

	boot := logger.Default()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("load config (DB_DSN and JWT_SECRET are required)")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		boot.Fatal().Err(err).Msg("init logger")
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.ConnectMySQL(cfg.DBDSN, database.Options{
		MaxIdle:     cfg.DBMaxIdle,
		MaxOpen:     cfg.DBMaxOpen,
		MaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	st := store.New(db)
	hub := ws.NewHub(log)
	svc := falerh.NewService(st, hub, log)

	r := router.New(router.Deps{
		DB:                   db,
		Store:                st,
		Service:              svc,
		Hub:                  hub,
		Verifier:             auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		Issuer:               auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL),
		Log:                  log,
		WSInsecureSkipVerify: cfg.WSInsecureSkipVerify,
		WSOriginPatterns:     cfg.WSOriginPatterns,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	hub.Shutdown()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

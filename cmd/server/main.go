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

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/AnshRaj112/freshcart-backend/internal/config"
	"github.com/AnshRaj112/freshcart-backend/internal/database"
	"github.com/AnshRaj112/freshcart-backend/internal/handlers"
	"github.com/AnshRaj112/freshcart-backend/internal/logger"
	"github.com/AnshRaj112/freshcart-backend/internal/metrics"
	"github.com/AnshRaj112/freshcart-backend/internal/middleware"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/notify"
	"github.com/AnshRaj112/freshcart-backend/internal/routes"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)
	zlog.Logger = log

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer database.DisconnectPostgres()

	if err := database.ConnectRedis(cfg.RedisURI, database.RedisPool{
		Size:         cfg.RedisPoolSize,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
	}); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer database.DisconnectRedis()

	if err := database.Connect(cfg.MongoURI); err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer database.Disconnect()

	rdb := database.RedisClient
	m := metrics.New()

	var publisher notify.Publisher = notify.NewLogNotifier(log)
	if cfg.RabbitURL != "" {
		p, err := notify.NewAMQPPublisher(cfg.RabbitURL, cfg.OTPExchange)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer p.Close()
		publisher = p
		log.Info().Str("exchange", cfg.OTPExchange).Msg("OTP events go to RabbitMQ")
	} else {
		log.Warn().Msg("RABBIT_URL not set: OTP codes are written to the log only")
	}

	accounts := services.NewPostgresAccountStore(database.PostgresDB)
	if err := seedAdmin(ctx, cfg, accounts, log); err != nil {
		return err
	}

	var uploader services.DocumentUploader
	if cfg.CloudinaryEnabled() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Warn().Err(err).Msg("cloudinary unavailable; document uploads disabled")
		} else {
			uploader = cld
		}
	} else {
		log.Warn().Msg("Cloudinary credentials not found; document uploads disabled")
	}

	feed := services.NewRegistrationFeed(rdb, log)
	feed.Start(ctx)

	sessions := services.NewSessionStore(rdb, cfg.SessionTTL)
	registrations := services.NewRegistrationService(
		services.NewMongoRegistrationStore(database.DB.Collection(database.RetailerRegistrations)),
		services.NewCacheService(rdb),
		feed,
		log,
	)
	otp := services.NewOTPService(rdb, accounts, publisher, services.OTPOptions{
		TTL:         cfg.OTPTTL,
		Cooldown:    cfg.OTPResendCooldown,
		MaxAttempts: cfg.OTPMaxAttempts,
	}, log)

	otpLimit := &middleware.RedisRateLimit{
		RDB:        rdb,
		Name:       "otp",
		Window:     15 * time.Minute,
		Max:        30,
		Block:      30 * time.Minute,
		TrustProxy: cfg.TrustProxy,
		Log:        log,
	}

	h := handlers.New(handlers.Deps{
		OTP:            otp,
		Sessions:       sessions,
		Tokens:         services.NewTokenService(cfg.JWTSecret, cfg.ResetTokenTTL, rdb),
		Accounts:       accounts,
		Registrations:  registrations,
		Feed:           feed,
		Dashboards:     services.NewPostgresDashboardStore(database.PostgresDB),
		Uploader:       uploader,
		Limits:         []handlers.Unblocker{otpLimit},
		Metrics:        m,
		Log:            log,
		SecureCookies:  cfg.IsProduction(),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	router := routes.NewRouter(h, sessions, m, log, routes.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		Production:     cfg.IsProduction(),
		OTPLimit:       otpLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("FreshCart backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedAdmin provisions the configured admin account; admins have no signup.
func seedAdmin(ctx context.Context, cfg *config.Config, accounts services.AccountStore, log zerolog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	created, err := services.EnsureAccount(ctx, accounts, &models.Account{
		Role:  models.RoleAdmin,
		Email: cfg.AdminEmail,
		Name:  cfg.AdminName,
	}, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info().Str(logger.Email, cfg.AdminEmail).Msg("admin account created")
	}
	return nil
}

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/sangkips/quotation-api/internal/application/service"
	"github.com/sangkips/quotation-api/internal/config"
	domainRepo "github.com/sangkips/quotation-api/internal/domain/repository"
	"github.com/sangkips/quotation-api/internal/infrastructure/cache"
	"github.com/sangkips/quotation-api/internal/infrastructure/database"
	"github.com/sangkips/quotation-api/internal/infrastructure/repository"
	"github.com/sangkips/quotation-api/internal/infrastructure/storage"
	"github.com/sangkips/quotation-api/internal/presentation/http/handler"
	"github.com/sangkips/quotation-api/internal/presentation/http/routes"
	"github.com/sangkips/quotation-api/pkg/email"
	"github.com/sangkips/quotation-api/pkg/logger"
	"github.com/sangkips/quotation-api/pkg/metrics"
	"github.com/sangkips/quotation-api/pkg/pdf"
	"github.com/sangkips/quotation-api/pkg/pricing"
	"github.com/sangkips/quotation-api/pkg/utils"
)

const idempotencySweepInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.Log.Format, cfg.Log.Level)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database, cfg.App.Debug, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db, log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Seed the first admin account
	if err := database.SeedAdmin(db, cfg.Admin, log); err != nil {
		log.Warn().Err(err).Msg("failed to seed admin user")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, reg)

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiryHours,
		cfg.JWT.RefreshExpiryHours,
		cfg.JWT.ResetExpiry,
	)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	quotationRepo := repository.NewQuotationRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	otpStore := cache.NewOTPStore(redisClient, cfg.OTP.TTL, cfg.OTP.MaxAttempts)

	logos, err := storage.NewLocalLogoStorage(cfg.Storage.Path, cfg.Storage.UploadMaxSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare logo storage")
	}

	gotenberg := pdf.NewClient(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout)
	if err := gotenberg.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("url", cfg.Gotenberg.URL).Msg("gotenberg unavailable, pdf export will fail until it is up")
	}

	mailer := newMailer(cfg.Email, cfg.App.Name, log)

	// Initialize services
	calc := pricing.NewCalculator(cfg.Pricing.DefaultTaxPercent)
	authService := service.NewAuthService(userRepo, otpStore, jwtManager, mailer, cfg.OTP.TTL, m, log)
	userService := service.NewUserService(userRepo)
	quotationService := service.NewQuotationService(quotationRepo, logos, calc, m, log)
	documentService, err := service.NewDocumentService(quotationService, logos, gotenberg, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build document service")
	}

	// Initialize handlers
	handlers := &routes.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Quotation: handler.NewQuotationHandler(quotationService, documentService),
		User:      handler.NewUserHandler(userService),
	}

	authLimiter := routes.NewAuthLimiter(cfg.RateLimit)
	defer authLimiter.Stop()

	// Setup routes
	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: idempotencyRepo,
		Metrics:         m,
		Logger:          log,
		AuthLimiter:     authLimiter,
	})

	go sweepIdempotencyKeys(ctx, idempotencyRepo, log)

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Str("env", cfg.App.Env).Msgf("starting %s server", cfg.App.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}

// newMailer sends over SMTP when a host is configured. Without one, codes are
// written to the log so local development still works.
func newMailer(cfg config.EmailConfig, appName string, log zerolog.Logger) email.Sender {
	if cfg.SMTPHost == "" {
		log.Warn().Msg("SMTP_HOST not set, OTP emails are logged instead of sent")
		return email.NewLogSender(log)
	}
	return email.NewEmailService(email.EmailConfig{
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
		FromName:     cfg.FromName,
		FromEmail:    cfg.FromEmail,
		AppName:      appName,
	})
}

func sweepIdempotencyKeys(ctx context.Context, repo domainRepo.IdempotencyRepository, log zerolog.Logger) {
	ticker := time.NewTicker(idempotencySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("idempotency sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired idempotency keys removed")
			}
		}
	}
}

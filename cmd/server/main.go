package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/auth"
	"github.com/beedevservices/portal/internal/config"
	"github.com/beedevservices/portal/internal/db"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/notify"
	"github.com/beedevservices/portal/internal/policy"
	"github.com/beedevservices/portal/internal/services"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// .env for local development; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	conn, err := db.Connect(db.Options{DSN: cfg.DatabaseDSN, Debug: cfg.DBDebug, Seed: cfg.DBSeed})
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	if *migrateOnlyFlag {
		logger.Info("migrations completed")
		return
	}

	// Sessions stay valid only while the user exists and is active.
	auth.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		var count int64
		conn.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND is_active = ?", uid, true).
			Count(&count)
		return count > 0
	})

	svc := buildServices(conn, cfg, logger)
	app := NewApp(conn, NewHandlers(conn, svc))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withLogging(logger, app),
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
		IdleTimeout:  2 * cfg.ServerTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func buildServices(conn *gorm.DB, cfg *config.Config, logger *zap.Logger) *Services {
	g := policy.NewGate(conn)
	invoices := services.NewInvoiceService(conn, logger)
	return &Services{
		Catalog:  services.NewCatalogService(conn),
		Drafts:   services.NewDraftService(conn, g, logger),
		Invoices: invoices,
		Projects: services.NewProjectService(conn),
		Proposals: services.NewProposalService(
			conn, g, invoices,
			notify.NewLogMessenger(logger),
			services.NewDBProvisioner(conn, logger),
			logger,
			cfg.SigningURLBase,
			cfg.SigningTTL,
		),
	}
}

// withLogging adds request logging middleware.
func withLogging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}

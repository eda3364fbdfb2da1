// Package main provides the main entry point for the SMS receiver service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/sms-receiver/app/handlers"
	"github.com/amirphl/sms-receiver/app/middleware"
	"github.com/amirphl/sms-receiver/app/router"
	"github.com/amirphl/sms-receiver/app/services"
	businessflow "github.com/amirphl/sms-receiver/business_flow"
	"github.com/amirphl/sms-receiver/config"
	"github.com/amirphl/sms-receiver/logger"
	"github.com/amirphl/sms-receiver/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	log       *zap.Logger
	redis     *redis.Client
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	app, err := initializeApplication(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		zlog.Info("server starting",
			zap.String("address", address),
			zap.String("environment", cfg.Deployment.Environment),
			zap.String("version", cfg.Deployment.Version),
		)
		serverErr <- app.router.Start(address)
	}()

	select {
	case sig := <-sigChan:
		zlog.Info("shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			zlog.Error("server stopped unexpectedly", zap.Error(err))
		}
	}

	app.shutdown()
	zlog.Info("server stopped")
}

// shutdown drains in-flight requests, then stops background workers and closes the store
func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		a.log.Error("error during shutdown", zap.Error(err))
	}

	for _, fn := range a.stopFuncs {
		fn()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close redis client", zap.Error(err))
		}
	}
}

// initializeRedis creates the store client. An unreachable server is logged and the
// client kept, so the service starts and recovers once redis comes back.
func initializeRedis(cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	rc, err := repository.NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		log.Warn("redis disabled, storage endpoints will report unavailable")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		log.Error("redis unreachable at startup", zap.Error(err))
	} else {
		log.Info("redis connection established", zap.Int("db", rc.Options().DB))
	}
	return rc, nil
}

// startRedisHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startRedisHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		healthy := true
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				err := client.Ping(ctx).Err()
				c()
				switch {
				case err != nil && healthy:
					log.Error("redis health check failed", zap.Error(err))
				case err == nil && !healthy:
					log.Info("redis connectivity restored")
				}
				healthy = err == nil
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, log *zap.Logger) (*Application, error) {
	var stopFuncs []func()

	rc, err := initializeRedis(cfg.Redis, log)
	if err != nil {
		return nil, err
	}

	// keep the interface nil when redis is disabled
	var store redis.Cmdable
	if rc != nil {
		store = rc
		stopFuncs = append(stopFuncs, startRedisHealthMonitor(context.Background(), rc, cfg.Redis.HealthInterval, log))
	}

	// Initialize repositories
	smsRepo := repository.NewSMSRepository(store, cfg.Redis.KeyPrefix, cfg.SMS.Retention)
	smsIndexRepo := repository.NewSMSIndexRepository(store, cfg.Redis.KeyPrefix, cfg.SMS.Retention)

	carrier, err := services.NewSMSCarrier(cfg.SMS, log)
	if err != nil {
		return nil, err
	}

	// Initialize business flows
	ingestFlow := businessflow.NewSMSIngestFlow(smsRepo, smsIndexRepo, carrier, log)
	queryFlow := businessflow.NewSMSQueryFlow(smsRepo, smsIndexRepo, log)
	repairFlow := businessflow.NewSMSRepairFlow(smsRepo, smsIndexRepo, log)

	// Initialize handlers
	var pinger handlers.Pinger
	if rc != nil {
		pinger = smsRepo
	}
	smsHandler := handlers.NewSMSHandler(ingestFlow, queryFlow, log, cfg.Server.RequestTimeout)
	healthHandler := handlers.NewHealthHandler(pinger, cfg.Deployment.Version, log)
	dashboardHandler := handlers.NewDashboardHandler(queryFlow, log, cfg.Server.RequestTimeout)
	adminHandler := handlers.NewAdminHandler(repairFlow, log, cfg.Server.AdminTimeout)

	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(cfg.Security.AdminAPIKeyHeader, cfg.Security.AdminAPIKeys, log)

	appRouter := router.NewFiberRouter(
		cfg,
		log,
		smsHandler,
		healthHandler,
		dashboardHandler,
		adminHandler,
		apiKeyMiddleware,
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		log:       log,
		redis:     rc,
		stopFuncs: stopFuncs,
	}, nil
}

// Command repair rebuilds the SMS secondary indexes against the configured Redis
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	businessflow "github.com/amirphl/sms-receiver/business_flow"
	"github.com/amirphl/sms-receiver/config"
	"github.com/amirphl/sms-receiver/logger"
	"github.com/amirphl/sms-receiver/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	timeout := flag.Duration("timeout", 0, "abort the repair after this duration (0 uses SERVER_ADMIN_TIMEOUT)")
	flag.Parse()

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *timeout <= 0 {
		*timeout = cfg.Server.AdminTimeout
	}

	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog, *timeout); err != nil {
		zlog.Error("repair failed", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.ProductionConfig, zlog *zap.Logger, timeout time.Duration) error {
	rc, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		return err
	}
	if rc == nil {
		return errors.New("redis is disabled")
	}
	defer func() { _ = rc.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	smsRepo := repository.NewSMSRepository(rc, cfg.Redis.KeyPrefix, cfg.SMS.Retention)
	smsIndexRepo := repository.NewSMSIndexRepository(rc, cfg.Redis.KeyPrefix, cfg.SMS.Retention)
	flow := businessflow.NewSMSRepairFlow(smsRepo, smsIndexRepo, zlog)

	metadata := businessflow.NewClientMetadata("cli", "cmd/repair")
	metadata.SetRequestID(uuid.NewString())

	res, err := flow.Repair(ctx, metadata)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Result)
}

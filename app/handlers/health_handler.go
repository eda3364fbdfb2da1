package handlers

import (
	"context"
	"time"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// Store states reported by the health endpoint
const (
	StoreHealthy     = "healthy"
	StoreUnhealthy   = "unhealthy"
	StoreUnavailable = "unavailable"
)

// Pinger checks connectivity with the store
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandlerInterface interface {
	Health(c fiber.Ctx) error
}

type HealthHandler struct {
	store   Pinger
	version string
	timeout time.Duration
	log     *zap.Logger
}

// NewHealthHandler creates a health handler. A nil store reports the store as unavailable.
func NewHealthHandler(store Pinger, version string, log *zap.Logger) HealthHandlerInterface {
	return &HealthHandler{
		store:   store,
		version: version,
		timeout: 2 * time.Second,
		log:     log.Named("health"),
	}
}

// Health reports liveness; the process is healthy even when the store is not
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{
		Status:    "healthy",
		Timestamp: utils.FormatTimestamp(utils.UTCNow()),
		Redis:     h.storeStatus(),
		Version:   h.version,
	})
}

func (h *HealthHandler) storeStatus() string {
	if h.store == nil {
		return StoreUnavailable
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("store health check failed", zap.Error(err))
		return StoreUnhealthy
	}
	return StoreHealthy
}

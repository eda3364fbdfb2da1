// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/app/handlers"
	"github.com/amirphl/sms-receiver/app/middleware"
	"github.com/amirphl/sms-receiver/config"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthPath = "/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app              *fiber.App
	cfg              *config.ProductionConfig
	log              *zap.Logger
	smsHandler       handlers.SMSHandlerInterface
	healthHandler    handlers.HealthHandlerInterface
	dashboardHandler handlers.DashboardHandlerInterface
	adminHandler     handlers.AdminHandlerInterface
	apiKeyMiddleware *middleware.APIKeyMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	log *zap.Logger,
	smsHandler handlers.SMSHandlerInterface,
	healthHandler handlers.HealthHandlerInterface,
	dashboardHandler handlers.DashboardHandlerInterface,
	adminHandler handlers.AdminHandlerInterface,
	apiKeyMiddleware *middleware.APIKeyMiddleware,
) Router {
	log = log.Named("http")
	app := fiber.New(fiber.Config{
		AppName:      "SMS Receiver",
		ServerHeader: "sms-receiver",
		ErrorHandler: newErrorHandler(log),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:              app,
		cfg:              cfg,
		log:              log,
		smsHandler:       smsHandler,
		healthHandler:    healthHandler,
		dashboardHandler: dashboardHandler,
		adminHandler:     adminHandler,
		apiKeyMiddleware: apiKeyMiddleware,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	r.app.Get(healthPath, r.healthHandler.Health)
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}
	r.app.Get("/", r.dashboardHandler.Dashboard)

	sms := r.app.Group("/sms")
	sms.Post("/receive", r.smsHandler.Receive)
	sms.Post("/send", r.smsHandler.Send)
	sms.Get("/list", r.smsHandler.List)
	sms.Get("/stats", r.smsHandler.Stats)
	sms.Get("/export", r.smsHandler.Export)

	admin := sms.Group("/admin", r.apiKeyMiddleware.Require())
	admin.Post("/repair", r.adminHandler.Repair)
	admin.Delete("/clear", r.adminHandler.Clear)

	// registered after the static paths above so they are not taken as ids
	sms.Get("/:id", r.smsHandler.Get)

	r.app.Use(r.notFoundHandler)

	r.log.Info("routes configured", zap.Bool("metrics", r.cfg.Metrics.Enabled))
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: generateRequestID,
	}))

	// Recovery middleware with structured panic logging
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.log.Error("panic recovered",
				zap.String("request_id", requestid.FromContext(c)),
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics(r.cfg.Metrics.Path))
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: []string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodDelete, fiber.MethodHead, fiber.MethodOptions,
		},
		AllowHeaders: []string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderXRequestID,
			r.cfg.Security.AdminAPIKeyHeader,
		},
		ExposeHeaders:    []string{fiber.HeaderXRequestID, "X-Total-Count"},
		AllowCredentials: !slices.Contains(r.cfg.Security.AllowedOrigins, "*"),
		MaxAge:           utils.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// xlsx files are already zip compressed
			return strings.HasSuffix(c.Path(), "/export") && c.Query("format") == "xlsx"
		},
	}))

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	if r.cfg.Security.GlobalRateLimit > 0 {
		r.app.Use(limiter.New(limiter.Config{
			Max:        r.cfg.Security.GlobalRateLimit,
			Expiration: r.cfg.Security.RateLimitWindow,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
					Status:  dto.StatusError,
					Message: "Too many requests. Please try again later.",
					Code:    "RATE_LIMIT_EXCEEDED",
				})
			},
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the underlying fiber app
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Status:  dto.StatusError,
		Message: "The requested resource was not found",
		Error:   "not found",
		Code:    "NOT_FOUND",
		Details: fiber.Map{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": requestid.FromContext(c),
		},
	})
}

// newErrorHandler renders errors that escaped the handlers; internal error text is only logged
func newErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An internal server error occurred"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			if code < fiber.StatusInternalServerError {
				message = fe.Message
			}
		}

		log.Error("request failed",
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.String("request_id", requestid.FromContext(c)),
			zap.Error(err),
		)

		return c.Status(code).JSON(dto.APIResponse{
			Status:  dto.StatusError,
			Message: message,
			Error:   message,
			Code:    "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		})
	}
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// APIKeyMiddleware guards operator endpoints with static API keys
type APIKeyMiddleware struct {
	header string
	keys   [][]byte
	log    *zap.Logger
}

// NewAPIKeyMiddleware creates a new API key middleware. With no keys configured
// every guarded request is rejected.
func NewAPIKeyMiddleware(header string, keys []string, log *zap.Logger) *APIKeyMiddleware {
	if header == "" {
		header = "X-API-Key"
	}
	m := &APIKeyMiddleware{header: header, log: log.Named("api_key")}
	for _, k := range keys {
		if k != "" {
			m.keys = append(m.keys, []byte(k))
		}
	}
	return m
}

// Require is the middleware function that validates the API key header
func (m *APIKeyMiddleware) Require() fiber.Handler {
	return func(c fiber.Ctx) error {
		if len(m.keys) == 0 {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Status:  dto.StatusError,
				Message: "Admin API is disabled",
				Code:    "ADMIN_API_DISABLED",
			})
		}

		apiKey := c.Get(m.header)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Status:  dto.StatusError,
				Message: "API key is required",
				Code:    "MISSING_API_KEY",
			})
		}

		if !m.valid([]byte(apiKey)) {
			m.log.Warn("rejected invalid api key",
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Any("request_id", c.Locals("requestid")),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Status:  dto.StatusError,
				Message: "Invalid API key",
				Code:    "INVALID_API_KEY",
			})
		}

		return c.Next()
	}
}

func (m *APIKeyMiddleware) valid(candidate []byte) bool {
	ok := false
	for _, key := range m.keys {
		if subtle.ConstantTimeCompare(candidate, key) == 1 {
			ok = true
		}
	}
	return ok
}

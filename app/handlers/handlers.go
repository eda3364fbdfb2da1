// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/sms-receiver/app/dto"
	businessflow "github.com/amirphl/sms-receiver/business_flow"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// DefaultRequestTimeout bounds store work done on behalf of one request
const DefaultRequestTimeout = 10 * time.Second

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "datetime":
		return err.Field() + " must be formatted as " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// validationMessages flattens validator errors into user facing messages
func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Status:  dto.StatusError,
		Message: message,
		Error:   message,
		Code:    errorCode,
		Details: details,
	})
}

// queryErrorResponse maps business errors of read operations onto HTTP statuses
func queryErrorResponse(c fiber.Ctx, err error, fallbackMessage string) error {
	switch {
	case businessflow.IsValidationError(err):
		var be *businessflow.BusinessError
		message := fallbackMessage
		if errors.As(err, &be) && be.Err != nil {
			message = be.Err.Error()
		}
		return errorResponse(c, fiber.StatusBadRequest, message, "VALIDATION_ERROR", nil)
	case businessflow.IsSMSNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "SMS not found", "SMS_NOT_FOUND", nil)
	case businessflow.IsStorageUnavailable(err):
		return errorResponse(c, fiber.StatusServiceUnavailable, "Storage is temporarily unavailable", "STORAGE_UNAVAILABLE", nil)
	}
	code := businessflow.ErrorCode(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMessage, code, nil)
}

func createRequestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get(fiber.HeaderUserAgent))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get(fiber.HeaderUserAgent))
	metadata.SetRequestID(requestid.FromContext(c))
	return metadata
}

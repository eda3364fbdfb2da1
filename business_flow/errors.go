// Package businessflow contains the core business logic and use cases for SMS ingestion and queries
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Record errors
	ErrSMSNotFound    = errors.New("sms not found")
	ErrSMSIDRequired  = errors.New("sms id is required")
	ErrInvalidSMSType = errors.New("invalid sms type")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Carrier errors
	ErrCarrierFailed = errors.New("carrier rejected the message")

	// Filter errors
	ErrInvalidLimit  = errors.New("limit must be between 0 and 1000")
	ErrInvalidOffset = errors.New("offset must not be negative")
	ErrInvalidDate   = errors.New("date must be formatted as YYYY-MM-DD")

	// Export errors
	ErrUnsupportedExportFormat = errors.New("export format must be csv or xlsx")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the business code carried by err, or an empty string
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsSMSNotFound(err error) bool {
	return errors.Is(err, ErrSMSNotFound)
}

func IsSMSIDRequired(err error) bool {
	return errors.Is(err, ErrSMSIDRequired)
}

func IsInvalidSMSType(err error) bool {
	return errors.Is(err, ErrInvalidSMSType)
}

func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

func IsCarrierFailed(err error) bool {
	return errors.Is(err, ErrCarrierFailed)
}

func IsInvalidLimit(err error) bool {
	return errors.Is(err, ErrInvalidLimit)
}

func IsInvalidOffset(err error) bool {
	return errors.Is(err, ErrInvalidOffset)
}

func IsInvalidDate(err error) bool {
	return errors.Is(err, ErrInvalidDate)
}

func IsUnsupportedExportFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedExportFormat)
}

// IsValidationError reports whether err was caused by bad caller input
func IsValidationError(err error) bool {
	return IsInvalidLimit(err) || IsInvalidOffset(err) || IsInvalidDate(err) ||
		IsInvalidSMSType(err) || IsSMSIDRequired(err) || IsUnsupportedExportFormat(err)
}

package businessflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/sms-receiver/repository"
	"github.com/amirphl/sms-receiver/utils"
)

// ClientMetadata holds client information for request logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// requestID returns the request id stored in ctx by the handlers, if any
func requestID(ctx context.Context) string {
	if v, ok := ctx.Value(utils.RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// storageError maps repository failures onto the business taxonomy
func storageError(code, message string, err error) error {
	if errors.Is(err, repository.ErrStoreUnavailable) {
		return NewBusinessError(code, message, fmt.Errorf("%w: %w", ErrStorageUnavailable, err))
	}
	return NewBusinessError(code, message, err)
}

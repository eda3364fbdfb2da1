// Package services provides external service integrations behind narrow interfaces
package services

import (
	"context"
	"fmt"

	"github.com/amirphl/sms-receiver/config"
	"go.uber.org/zap"
)

// Carrier names accepted by SMS_CARRIER
const (
	CarrierLog = "log"
)

// SMSCarrier hands an outbound message to an SMS carrier
type SMSCarrier interface {
	Send(ctx context.Context, phone, message string) error
	Name() string
}

// LogCarrier records outbound messages in the log and never contacts a network
type LogCarrier struct {
	log *zap.Logger
}

// NewLogCarrier creates a carrier that only logs
func NewLogCarrier(log *zap.Logger) SMSCarrier {
	return &LogCarrier{log: log.Named("carrier")}
}

// Send logs the outbound message
func (c *LogCarrier) Send(ctx context.Context, phone, message string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.log.Info("outbound sms recorded without delivery",
		zap.String("phone", phone),
		zap.Int("message_length", len(message)),
	)
	return nil
}

func (c *LogCarrier) Name() string {
	return CarrierLog
}

// NewSMSCarrier selects the carrier configured in cfg
func NewSMSCarrier(cfg config.SMSConfig, log *zap.Logger) (SMSCarrier, error) {
	switch cfg.Carrier {
	case "", CarrierLog:
		return NewLogCarrier(log), nil
	default:
		return nil, fmt.Errorf("unsupported sms carrier %q", cfg.Carrier)
	}
}

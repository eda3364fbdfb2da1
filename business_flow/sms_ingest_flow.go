package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/app/services"
	"github.com/amirphl/sms-receiver/models"
	"github.com/amirphl/sms-receiver/repository"
	"github.com/amirphl/sms-receiver/utils"
	"go.uber.org/zap"
)

// SMSIngestFlow handles the gateway facing receive and send operations
type SMSIngestFlow interface {
	Receive(ctx context.Context, req *dto.IngestSMSRequest, metadata *ClientMetadata) (*dto.IngestSMSResponse, error)
	Send(ctx context.Context, req *dto.IngestSMSRequest, metadata *ClientMetadata) (*dto.IngestSMSResponse, error)
}

// SMSIngestFlowImpl implements SMSIngestFlow
type SMSIngestFlowImpl struct {
	smsRepo   repository.SMSRepository
	indexRepo repository.SMSIndexRepository
	carrier   services.SMSCarrier
	log       *zap.Logger
}

// NewSMSIngestFlow creates a new ingestion flow instance
func NewSMSIngestFlow(
	smsRepo repository.SMSRepository,
	indexRepo repository.SMSIndexRepository,
	carrier services.SMSCarrier,
	log *zap.Logger,
) SMSIngestFlow {
	return &SMSIngestFlowImpl{
		smsRepo:   smsRepo,
		indexRepo: indexRepo,
		carrier:   carrier,
		log:       log.Named("ingest"),
	}
}

// Receive records an inbound SMS posted by the gateway
func (f *SMSIngestFlowImpl) Receive(ctx context.Context, req *dto.IngestSMSRequest, metadata *ClientMetadata) (response *dto.IngestSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("RECEIVE_SMS_FAILED", "Failed to receive SMS", err)
		}
	}()

	res, err := f.ingest(ctx, models.SMSTypeInbound, req, metadata)
	if err != nil {
		return nil, err
	}
	res.Message = "SMS received successfully"
	return res, nil
}

// Send records an outbound SMS after handing it to the configured carrier
func (f *SMSIngestFlowImpl) Send(ctx context.Context, req *dto.IngestSMSRequest, metadata *ClientMetadata) (response *dto.IngestSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("SEND_SMS_FAILED", "Failed to send SMS", err)
		}
	}()

	res, err := f.ingest(ctx, models.SMSTypeOutbound, req, metadata)
	if err != nil {
		return nil, err
	}
	res.Message = "SMS sent successfully"
	return res, nil
}

// ingest stores the record on a best-effort basis: store and index failures are
// logged and counted but never returned. Only a carrier failure is an error.
func (f *SMSIngestFlowImpl) ingest(ctx context.Context, smsType models.SMSType, req *dto.IngestSMSRequest, metadata *ClientMetadata) (*dto.IngestSMSResponse, error) {
	log := f.log.With(
		zap.String("type", string(smsType)),
		zap.String("request_id", metadataRequestID(ctx, metadata)),
	)
	if metadata != nil {
		log = log.With(zap.String("ip", metadata.IPAddress))
	}

	payload := NormalizePayload(smsType, req.ContentType, req.Body, req.Form, req.Query)
	if payload.Source == PayloadSourceRaw {
		smsUnstructuredTotal.Inc()
		log.Warn("payload could not be parsed as structured data",
			zap.String("content_type", req.ContentType),
			zap.Int("body_length", len(req.Body)),
		)
	}

	sms := &models.SMS{
		Type:      smsType,
		Phone:     payload.Phone,
		Message:   payload.Message,
		Timestamp: utils.FormatTimestamp(utils.UTCNow()),
		RawData:   payload.Fields,
		Processed: false,
		Status:    models.SMSStatusPending,
	}
	if smsType == models.SMSTypeOutbound {
		sms.Status = models.SMSStatusSent
		if err := f.carrier.Send(ctx, sms.Phone, sms.Message); err != nil {
			log.Error("carrier rejected outbound sms", zap.String("carrier", f.carrier.Name()), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrCarrierFailed, err)
		}
	}

	log.Info("sms accepted",
		zap.String("phone", sms.Phone),
		zap.String("source", payload.Source),
		zap.Bool("structured", payload.Structured),
	)
	log.Debug("complete sms data", zap.Any("fields", payload.Fields), zap.String("message", sms.Message))
	smsIngestedTotal.WithLabelValues(string(smsType)).Inc()

	res := &dto.IngestSMSResponse{Status: dto.StatusSuccess}

	id, err := f.smsRepo.Save(ctx, sms)
	if err != nil {
		smsStoreFailuresTotal.Inc()
		log.Error("failed to store sms, accepting without persistence", zap.Error(err))
		return res, nil
	}

	report := f.indexRepo.Index(ctx, sms)
	for index, indexErr := range report.Failures {
		smsIndexFailuresTotal.WithLabelValues(index).Inc()
		log.Warn("failed to write sms index",
			zap.String("sms_id", id),
			zap.String("index", index),
			zap.Error(indexErr),
		)
	}

	log.Info("sms stored", zap.String("sms_id", id))
	res.SMSID = id
	return res, nil
}

func metadataRequestID(ctx context.Context, metadata *ClientMetadata) string {
	if metadata != nil && metadata.RequestID != "" {
		return metadata.RequestID
	}
	return requestID(ctx)
}

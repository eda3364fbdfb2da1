package businessflow

import (
	"context"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/models"
	"github.com/amirphl/sms-receiver/repository"
	"go.uber.org/zap"
)

// SMSRepairFlow rebuilds secondary indexes from the primary records
type SMSRepairFlow interface {
	Repair(ctx context.Context, metadata *ClientMetadata) (*dto.RepairSMSResponse, error)
	Clear(ctx context.Context, metadata *ClientMetadata) (*dto.ClearSMSResponse, error)
}

// SMSRepairFlowImpl implements SMSRepairFlow
type SMSRepairFlowImpl struct {
	smsRepo   repository.SMSRepository
	indexRepo repository.SMSIndexRepository
	log       *zap.Logger
}

// NewSMSRepairFlow creates a new repair flow instance
func NewSMSRepairFlow(smsRepo repository.SMSRepository, indexRepo repository.SMSIndexRepository, log *zap.Logger) SMSRepairFlow {
	return &SMSRepairFlowImpl{
		smsRepo:   smsRepo,
		indexRepo: indexRepo,
		log:       log.Named("repair"),
	}
}

// Repair scans every primary record, backfills a missing type with inbound and
// restores the chronological score and set memberships. Per-record failures are
// logged and counted; only a failure to enumerate or count aborts the run.
// Running it twice in a row reports zero fixes the second time.
func (f *SMSRepairFlowImpl) Repair(ctx context.Context, metadata *ClientMetadata) (response *dto.RepairSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("REPAIR_SMS_FAILED", "Failed to repair SMS indexes", err)
		}
	}()

	log := f.log.With(zap.String("request_id", metadataRequestID(ctx, metadata)))
	log.Info("sms index repair started")

	result := &models.RepairResult{}
	err = f.smsRepo.ScanIDs(ctx, func(ids []string) error {
		records, err := f.smsRepo.ByIDs(ctx, ids)
		if err != nil {
			// the batch may have expired or the store may be flapping
			log.Warn("failed to load sms batch", zap.Int("batch_size", len(ids)), zap.Error(err))
			result.Scanned += len(ids)
			result.Failed += len(ids)
			return nil
		}
		for _, sms := range records {
			result.Scanned++
			fixed, err := f.repairRecord(ctx, sms)
			if err != nil {
				result.Failed++
				log.Warn("failed to repair sms", zap.String("sms_id", sms.ID), zap.Error(err))
				continue
			}
			if fixed {
				result.Fixed++
				smsRepairFixedTotal.Inc()
			}
		}
		return nil
	})
	if err != nil {
		log.Error("sms index repair aborted", zap.Error(err))
		err = storageError("REPAIR_SMS_FAILED", "Failed to scan SMS records", err)
		return nil, err
	}

	result.ChronologicalTotal, err = f.indexRepo.TimelineCount(ctx)
	if err != nil {
		err = storageError("REPAIR_SMS_FAILED", "Failed to count timeline", err)
		return nil, err
	}

	log.Info("sms index repair finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("fixed", result.Fixed),
		zap.Int("failed", result.Failed),
		zap.Int64("chronological_total", result.ChronologicalTotal),
	)

	return &dto.RepairSMSResponse{
		Status:  dto.StatusSuccess,
		Message: "SMS indexes repaired successfully",
		Result:  result,
	}, nil
}

// repairRecord reports whether the record needed any change
func (f *SMSRepairFlowImpl) repairRecord(ctx context.Context, sms *models.SMS) (bool, error) {
	typeFixed := false
	if sms.Type == "" {
		exists, err := f.smsRepo.SetType(ctx, sms.ID, models.SMSTypeInbound)
		if err != nil {
			return false, err
		}
		if !exists {
			// expired after the scan; indexing it again would leave dangling entries
			return false, nil
		}
		sms.Type = models.SMSTypeInbound
		typeFixed = true
	}

	changed, err := f.indexRepo.Reindex(ctx, sms)
	if err != nil {
		return false, err
	}
	return typeFixed || changed, nil
}

// Clear deletes every record and index key
func (f *SMSRepairFlowImpl) Clear(ctx context.Context, metadata *ClientMetadata) (response *dto.ClearSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("CLEAR_SMS_FAILED", "Failed to clear SMS store", err)
		}
	}()

	deleted, err := f.smsRepo.Clear(ctx)
	if err != nil {
		f.log.Error("failed to clear sms store", zap.Int64("deleted", deleted), zap.Error(err))
		err = storageError("CLEAR_SMS_FAILED", "Failed to clear SMS store", err)
		return nil, err
	}

	f.log.Warn("sms store cleared",
		zap.Int64("deleted", deleted),
		zap.String("request_id", metadataRequestID(ctx, metadata)),
	)
	return &dto.ClearSMSResponse{
		Status:  dto.StatusSuccess,
		Message: "SMS store cleared",
		Deleted: deleted,
	}, nil
}

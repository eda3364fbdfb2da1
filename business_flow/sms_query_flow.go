package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/models"
	"github.com/amirphl/sms-receiver/repository"
	"github.com/amirphl/sms-receiver/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SMSQueryFlow handles read operations over stored SMS records
type SMSQueryFlow interface {
	List(ctx context.Context, req *dto.ListSMSRequest, metadata *ClientMetadata) (*dto.ListSMSResponse, error)
	Get(ctx context.Context, id string, metadata *ClientMetadata) (*dto.GetSMSResponse, error)
	Stats(ctx context.Context, metadata *ClientMetadata) (*dto.SMSStatsResponse, error)
	Export(ctx context.Context, req *dto.ExportSMSRequest, metadata *ClientMetadata) (*dto.ExportSMSResponse, error)
}

// SMSQueryFlowImpl implements SMSQueryFlow
type SMSQueryFlowImpl struct {
	smsRepo   repository.SMSRepository
	indexRepo repository.SMSIndexRepository
	log       *zap.Logger
}

// NewSMSQueryFlow creates a new query flow instance
func NewSMSQueryFlow(smsRepo repository.SMSRepository, indexRepo repository.SMSIndexRepository, log *zap.Logger) SMSQueryFlow {
	return &SMSQueryFlowImpl{
		smsRepo:   smsRepo,
		indexRepo: indexRepo,
		log:       log.Named("query"),
	}
}

// List returns records newest first. Without a filter the chronological index is
// paged directly; with filters the matching sets are intersected, ordered by the
// chronological index and then paged. Ids whose record has expired are skipped.
func (f *SMSQueryFlowImpl) List(ctx context.Context, req *dto.ListSMSRequest, metadata *ClientMetadata) (response *dto.ListSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_SMS_FAILED", "Failed to list SMS", err)
		}
	}()

	if err = validateListRequest(req); err != nil {
		return nil, err
	}

	records, err := f.selectRecords(ctx, req)
	if err != nil {
		f.log.Error("failed to list sms", zap.String("request_id", metadataRequestID(ctx, metadata)), zap.Error(err))
		return nil, err
	}

	return &dto.ListSMSResponse{
		Status: dto.StatusSuccess,
		Count:  len(records),
		SMS:    records,
	}, nil
}

// Get returns a single record by id
func (f *SMSQueryFlowImpl) Get(ctx context.Context, id string, metadata *ClientMetadata) (response *dto.GetSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_SMS_FAILED", "Failed to get SMS", err)
		}
	}()

	id = strings.TrimSpace(id)
	if id == "" {
		err = ErrSMSIDRequired
		return nil, err
	}

	sms, err := f.smsRepo.ByID(ctx, id)
	if err != nil {
		f.log.Error("failed to get sms", zap.String("sms_id", id), zap.String("request_id", metadataRequestID(ctx, metadata)), zap.Error(err))
		err = storageError("GET_SMS_FAILED", "Failed to read SMS", err)
		return nil, err
	}
	if sms == nil {
		err = ErrSMSNotFound
		return nil, err
	}

	return &dto.GetSMSResponse{Status: dto.StatusSuccess, SMS: sms}, nil
}

// Stats summarizes the index cardinalities; today uses the current UTC date
func (f *SMSQueryFlowImpl) Stats(ctx context.Context, metadata *ClientMetadata) (response *dto.SMSStatsResponse, err error) {
	defer func() {
		if err != nil {
			f.log.Error("failed to read sms stats", zap.String("request_id", metadataRequestID(ctx, metadata)), zap.Error(err))
			err = NewBusinessError("SMS_STATS_FAILED", "Failed to read SMS stats", err)
		}
	}()

	// counters are independent reads; each goroutine writes its own field
	var stats models.SMSStats
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, what string, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return storageError("SMS_STATS_FAILED", "Failed to count "+what, err)
			}
			*dst = n
			return nil
		})
	}
	count(&stats.Total, "timeline", f.indexRepo.TimelineCount)
	count(&stats.Unprocessed, "unprocessed queue", f.indexRepo.UnprocessedCount)
	count(&stats.Today, "today's SMS", func(ctx context.Context) (int64, error) {
		return f.indexRepo.DateCount(ctx, utils.TodayUTC())
	})
	count(&stats.Inbound, "inbound SMS", func(ctx context.Context) (int64, error) {
		return f.indexRepo.TypeCount(ctx, models.SMSTypeInbound)
	})
	count(&stats.Outbound, "outbound SMS", func(ctx context.Context) (int64, error) {
		return f.indexRepo.TypeCount(ctx, models.SMSTypeOutbound)
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	return &dto.SMSStatsResponse{Status: dto.StatusSuccess, Stats: stats}, nil
}

func (f *SMSQueryFlowImpl) selectRecords(ctx context.Context, req *dto.ListSMSRequest) ([]*models.SMS, error) {
	if req.Limit == 0 {
		return []*models.SMS{}, nil
	}

	var (
		ids []string
		err error
	)
	filter := req.Filter()
	if filter.IsEmpty() {
		ids, err = f.indexRepo.RecentIDs(ctx, int64(req.Offset), int64(req.Limit))
		if err != nil {
			return nil, storageError("LIST_SMS_FAILED", "Failed to read timeline", err)
		}
	} else {
		ids, err = f.indexRepo.FilteredIDs(ctx, filter)
		if err != nil {
			return nil, storageError("LIST_SMS_FAILED", "Failed to read filter sets", err)
		}
		ids, err = f.indexRepo.OrderByTimeline(ctx, ids)
		if err != nil {
			return nil, storageError("LIST_SMS_FAILED", "Failed to order filtered SMS", err)
		}
		ids = page(ids, req.Offset, req.Limit)
	}

	records, err := f.smsRepo.ByIDs(ctx, ids)
	if err != nil {
		return nil, storageError("LIST_SMS_FAILED", "Failed to read SMS records", err)
	}
	return records, nil
}

func page(ids []string, offset, limit int) []string {
	if offset >= len(ids) {
		return []string{}
	}
	end := min(offset+limit, len(ids))
	return ids[offset:end]
}

func validateListRequest(req *dto.ListSMSRequest) error {
	if req.Limit < 0 || req.Limit > utils.MaxListLimit {
		return ErrInvalidLimit
	}
	if req.Offset < 0 {
		return ErrInvalidOffset
	}
	if req.Date != "" {
		if _, err := time.Parse(utils.DateLayout, req.Date); err != nil {
			return ErrInvalidDate
		}
	}
	switch models.SMSType(req.Type) {
	case "", models.SMSTypeInbound, models.SMSTypeOutbound, models.SMSTypeUnknown:
	default:
		return ErrInvalidSMSType
	}
	return nil
}

// Package repository provides data access layer implementations and interfaces for the Redis store
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/amirphl/sms-receiver/models"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/redis/go-redis/v9"
)

const scoreBatchSize = 500

// SMSIndexRepositoryImpl implements SMSIndexRepository with a sorted set, sets and a list
type SMSIndexRepositoryImpl struct {
	BaseRepository
	// date sets outlive every record they reference by one day
	dateTTL time.Duration
}

// NewSMSIndexRepository creates a new index repository
func NewSMSIndexRepository(rdb redis.Cmdable, prefix string, retention time.Duration) SMSIndexRepository {
	return &SMSIndexRepositoryImpl{
		BaseRepository: NewBaseRepository(rdb, prefix),
		dateTTL:        retention + 24*time.Hour,
	}
}

// Index writes the timeline, phone, type, date and unprocessed structures for sms
func (r *SMSIndexRepositoryImpl) Index(ctx context.Context, sms *models.SMS) IndexReport {
	var report IndexReport
	rdb, err := r.client()
	if err != nil {
		for _, index := range []string{IndexTimeline, IndexPhone, IndexType, IndexDate, IndexUnprocessed} {
			report.record(index, err)
		}
		return report
	}

	ts, _ := utils.TimestampOrNow(sms.Timestamp)
	smsType := typeOrUnknown(sms.Type)

	err = rdb.ZAdd(ctx, r.keys.Timeline(), redis.Z{Score: utils.UnixScore(ts), Member: sms.ID}).Err()
	report.record(IndexTimeline, wrapIndexError(IndexTimeline, err))

	err = rdb.SAdd(ctx, r.keys.Phone(sms.Phone), sms.ID).Err()
	report.record(IndexPhone, wrapIndexError(IndexPhone, err))

	err = rdb.SAdd(ctx, r.keys.Type(string(smsType)), sms.ID).Err()
	report.record(IndexType, wrapIndexError(IndexType, err))

	report.record(IndexDate, wrapIndexError(IndexDate, r.addToDate(ctx, rdb, utils.UTCDate(ts), sms.ID)))

	err = rdb.RPush(ctx, r.keys.Unprocessed(), sms.ID).Err()
	report.record(IndexUnprocessed, wrapIndexError(IndexUnprocessed, err))

	return report
}

// Reindex restores index membership for an existing record. A parseable timestamp
// overwrites the timeline score; a malformed one only fills a missing entry so that
// repeated runs keep the score they assigned first.
func (r *SMSIndexRepositoryImpl) Reindex(ctx context.Context, sms *models.SMS) (bool, error) {
	rdb, err := r.client()
	if err != nil {
		return false, err
	}

	var changed int64
	ts, parseErr := utils.ParseTimestamp(sms.Timestamp)
	if parseErr == nil {
		// CH also counts members whose score was rewritten
		n, err := rdb.ZAddArgs(ctx, r.keys.Timeline(), redis.ZAddArgs{
			Ch:      true,
			Members: []redis.Z{{Score: utils.UnixScore(ts), Member: sms.ID}},
		}).Result()
		if err != nil {
			return false, storeError("reindex timeline", err)
		}
		changed += n
	} else {
		n, err := rdb.ZAddNX(ctx, r.keys.Timeline(), redis.Z{Score: utils.UnixScore(utils.UTCNow()), Member: sms.ID}).Result()
		if err != nil {
			return false, storeError("reindex timeline", err)
		}
		changed += n
	}

	n, err := rdb.SAdd(ctx, r.keys.Phone(sms.Phone), sms.ID).Result()
	if err != nil {
		return false, storeError("reindex phone set", err)
	}
	changed += n

	n, err = rdb.SAdd(ctx, r.keys.Type(string(typeOrUnknown(sms.Type))), sms.ID).Result()
	if err != nil {
		return false, storeError("reindex type set", err)
	}
	changed += n

	if parseErr == nil {
		key := r.keys.Date(utils.UTCDate(ts))
		n, err = rdb.SAdd(ctx, key, sms.ID).Result()
		if err != nil {
			return false, storeError("reindex date set", err)
		}
		if n > 0 {
			if err := rdb.Expire(ctx, key, r.dateTTL).Err(); err != nil {
				return false, storeError("expire date set", err)
			}
		}
		changed += n
	}

	return changed > 0, nil
}

// RecentIDs returns ids in descending timeline order starting at offset
func (r *SMSIndexRepositoryImpl) RecentIDs(ctx context.Context, offset, limit int64) ([]string, error) {
	if limit <= 0 || offset < 0 {
		return []string{}, nil
	}
	rdb, err := r.client()
	if err != nil {
		return nil, err
	}
	ids, err := rdb.ZRevRange(ctx, r.keys.Timeline(), offset, offset+limit-1).Result()
	if err != nil {
		return nil, storeError("read timeline", err)
	}
	return ids, nil
}

// FilteredIDs resolves a filter against the set indexes; several fields intersect
func (r *SMSIndexRepositoryImpl) FilteredIDs(ctx context.Context, filter models.SMSFilter) ([]string, error) {
	rdb, err := r.client()
	if err != nil {
		return nil, err
	}

	var keys []string
	if filter.Phone != "" {
		keys = append(keys, r.keys.Phone(filter.Phone))
	}
	if filter.Date != "" {
		keys = append(keys, r.keys.Date(filter.Date))
	}
	if filter.Type != "" {
		keys = append(keys, r.keys.Type(string(filter.Type)))
	}

	var ids []string
	switch len(keys) {
	case 0:
		return []string{}, nil
	case 1:
		ids, err = rdb.SMembers(ctx, keys[0]).Result()
	default:
		ids, err = rdb.SInter(ctx, keys...).Result()
	}
	if err != nil {
		return nil, storeError("read filter sets", err)
	}
	return ids, nil
}

// OrderByTimeline sorts ids by descending timeline score, ties broken by id
func (r *SMSIndexRepositoryImpl) OrderByTimeline(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	rdb, err := r.client()
	if err != nil {
		return nil, err
	}

	// ZMSCORE reports members without a score as 0
	scores := make(map[string]float64, len(ids))
	for start := 0; start < len(ids); start += scoreBatchSize {
		end := min(start+scoreBatchSize, len(ids))
		batch, err := rdb.ZMScore(ctx, r.keys.Timeline(), ids[start:end]...).Result()
		if err != nil {
			return nil, storeError("read timeline scores", err)
		}
		for i, score := range batch {
			scores[ids[start+i]] = score
		}
	}

	ordered := append([]string(nil), ids...)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := scores[ordered[i]], scores[ordered[j]]
		if si != sj {
			return si > sj
		}
		return ordered[i] < ordered[j]
	})
	return ordered, nil
}

// TimelineScore returns the chronological score of id, if indexed
func (r *SMSIndexRepositoryImpl) TimelineScore(ctx context.Context, id string) (float64, bool, error) {
	rdb, err := r.client()
	if err != nil {
		return 0, false, err
	}
	score, err := rdb.ZScore(ctx, r.keys.Timeline(), id).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeError("read timeline score", err)
	}
	return score, true, nil
}

func (r *SMSIndexRepositoryImpl) TimelineCount(ctx context.Context) (int64, error) {
	rdb, err := r.client()
	if err != nil {
		return 0, err
	}
	n, err := rdb.ZCard(ctx, r.keys.Timeline()).Result()
	if err != nil {
		return 0, storeError("count timeline", err)
	}
	return n, nil
}

func (r *SMSIndexRepositoryImpl) UnprocessedCount(ctx context.Context) (int64, error) {
	rdb, err := r.client()
	if err != nil {
		return 0, err
	}
	n, err := rdb.LLen(ctx, r.keys.Unprocessed()).Result()
	if err != nil {
		return 0, storeError("count unprocessed queue", err)
	}
	return n, nil
}

func (r *SMSIndexRepositoryImpl) DateCount(ctx context.Context, date string) (int64, error) {
	return r.setCount(ctx, r.keys.Date(date))
}

func (r *SMSIndexRepositoryImpl) TypeCount(ctx context.Context, smsType models.SMSType) (int64, error) {
	return r.setCount(ctx, r.keys.Type(string(smsType)))
}

func (r *SMSIndexRepositoryImpl) setCount(ctx context.Context, key string) (int64, error) {
	rdb, err := r.client()
	if err != nil {
		return 0, err
	}
	n, err := rdb.SCard(ctx, key).Result()
	if err != nil {
		return 0, storeError("count set", err)
	}
	return n, nil
}

func (r *SMSIndexRepositoryImpl) addToDate(ctx context.Context, rdb redis.Cmdable, date, id string) error {
	key := r.keys.Date(date)
	if err := rdb.SAdd(ctx, key, id).Err(); err != nil {
		return err
	}
	return rdb.Expire(ctx, key, r.dateTTL).Err()
}

func wrapIndexError(index string, err error) error {
	if err == nil {
		return nil
	}
	return storeError("write "+index+" index", err)
}

func typeOrUnknown(t models.SMSType) models.SMSType {
	if t == "" {
		return models.SMSTypeUnknown
	}
	return t
}

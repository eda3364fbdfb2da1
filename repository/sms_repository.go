// Package repository provides data access layer implementations and interfaces for the Redis store
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/sms-receiver/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 200

// SMSRepositoryImpl implements SMSRepository on Redis hashes
type SMSRepositoryImpl struct {
	BaseRepository
	retention time.Duration
}

// NewSMSRepository creates a new SMS record repository
func NewSMSRepository(rdb redis.Cmdable, prefix string, retention time.Duration) SMSRepository {
	return &SMSRepositoryImpl{
		BaseRepository: NewBaseRepository(rdb, prefix),
		retention:      retention,
	}
}

// Save writes the record hash and its expiry in one MULTI/EXEC
func (r *SMSRepositoryImpl) Save(ctx context.Context, sms *models.SMS) (string, error) {
	rdb, err := r.client()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	fields, err := encodeSMS(id, sms)
	if err != nil {
		return "", fmt.Errorf("failed to encode sms: %w", err)
	}

	key := r.keys.Record(id)
	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, r.retention)
		return nil
	})
	if err != nil {
		return "", storeError("save sms", err)
	}

	sms.ID = id
	return id, nil
}

// ByID retrieves a record by its id
func (r *SMSRepositoryImpl) ByID(ctx context.Context, id string) (*models.SMS, error) {
	rdb, err := r.client()
	if err != nil {
		return nil, err
	}

	fields, err := rdb.HGetAll(ctx, r.keys.Record(id)).Result()
	if err != nil {
		return nil, storeError("find sms by id", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeSMS(id, fields), nil
}

// ByIDs retrieves records with a single pipelined round trip
func (r *SMSRepositoryImpl) ByIDs(ctx context.Context, ids []string) ([]*models.SMS, error) {
	if len(ids) == 0 {
		return []*models.SMS{}, nil
	}
	rdb, err := r.client()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.keys.Record(id))
		}
		return nil
	})
	if err != nil {
		return nil, storeError("find sms by ids", err)
	}

	result := make([]*models.SMS, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		// expired or lost
		if len(fields) == 0 {
			continue
		}
		result = append(result, decodeSMS(ids[i], fields))
	}
	return result, nil
}

// ScanIDs walks the keyspace with SCAN so large stores are never loaded at once
func (r *SMSRepositoryImpl) ScanIDs(ctx context.Context, fn func(ids []string) error) error {
	rdb, err := r.client()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, r.keys.RecordPattern(), scanBatchSize).Result()
		if err != nil {
			return storeError("scan sms keys", err)
		}

		ids := make([]string, 0, len(keys))
		for _, key := range keys {
			id, ok := r.keys.RecordID(key)
			if !ok {
				continue
			}
			// SCAN may return a key more than once
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			if err := fn(ids); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// setTypeScript only touches a hash that still exists, so an expired record is not
// recreated without its TTL
var setTypeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "type", ARGV[1])
return 1
`)

// SetType updates the type field of an existing record. It reports false when the
// record no longer exists.
func (r *SMSRepositoryImpl) SetType(ctx context.Context, id string, smsType models.SMSType) (bool, error) {
	rdb, err := r.client()
	if err != nil {
		return false, err
	}
	n, err := setTypeScript.Run(ctx, rdb, []string{r.keys.Record(id)}, string(smsType)).Int()
	if err != nil {
		return false, storeError("set sms type", err)
	}
	return n == 1, nil
}

// Clear removes all record and index keys under the configured prefix
func (r *SMSRepositoryImpl) Clear(ctx context.Context) (int64, error) {
	rdb, err := r.client()
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, pattern := range []string{r.keys.RecordPattern(), r.keys.IndexPattern()} {
		var cursor uint64
		for {
			keys, next, err := rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
			if err != nil {
				return deleted, storeError("scan keys for clear", err)
			}
			if len(keys) > 0 {
				n, err := rdb.Del(ctx, keys...).Result()
				if err != nil {
					return deleted, storeError("delete keys", err)
				}
				deleted += n
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return deleted, nil
}

func encodeSMS(id string, sms *models.SMS) (map[string]any, error) {
	rawData := sms.RawData
	if rawData == nil {
		rawData = map[string]string{}
	}
	raw, err := json.Marshal(rawData)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":        id,
		"type":      string(sms.Type),
		"phone":     sms.Phone,
		"message":   sms.Message,
		"timestamp": sms.Timestamp,
		"raw_data":  string(raw),
		"processed": strconv.FormatBool(sms.Processed),
		"status":    sms.Status,
	}, nil
}

// decodeSMS leaves Type empty when the stored hash has no type field so that
// repair can tell untagged records apart.
func decodeSMS(id string, fields map[string]string) *models.SMS {
	sms := &models.SMS{
		ID:        id,
		Type:      models.SMSType(fields["type"]),
		Phone:     fields["phone"],
		Message:   fields["message"],
		Timestamp: fields["timestamp"],
		RawData:   decodeRawData(fields["raw_data"]),
		Status:    fields["status"],
	}
	if storedID := fields["id"]; storedID != "" {
		sms.ID = storedID
	}
	if processed, err := strconv.ParseBool(fields["processed"]); err == nil {
		sms.Processed = processed
	}
	return sms
}

func decodeRawData(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}

	var flat map[string]string
	if err := json.Unmarshal([]byte(raw), &flat); err == nil {
		return flat
	}

	// Older writers stored non-string JSON values
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err == nil {
		flat = make(map[string]string, len(loose))
		for k, v := range loose {
			switch val := v.(type) {
			case string:
				flat[k] = val
			case nil:
				flat[k] = ""
			default:
				b, _ := json.Marshal(val)
				flat[k] = string(b)
			}
		}
		return flat
	}

	return map[string]string{"raw_content": raw}
}

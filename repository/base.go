// Package repository provides data access layer implementations and interfaces for the Redis store
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable marks every failure to reach or use the underlying store
var ErrStoreUnavailable = errors.New("store unavailable")

// Index names used in reports and metrics
const (
	IndexTimeline    = "timeline"
	IndexPhone       = "phone"
	IndexType        = "type"
	IndexDate        = "date"
	IndexUnprocessed = "unprocessed"
)

// Keys builds every Redis key used by the service under a common prefix
type Keys struct {
	prefix string
}

// NewKeys creates a key builder for the given prefix
func NewKeys(prefix string) Keys {
	return Keys{prefix: prefix}
}

func (k Keys) Record(id string) string { return k.prefix + "sms:" + id }

func (k Keys) RecordPattern() string { return k.prefix + "sms:*" }

func (k Keys) IndexPattern() string { return k.prefix + "sms_index:*" }

func (k Keys) Timeline() string { return k.prefix + "sms_index:timeline" }

func (k Keys) Phone(phone string) string { return k.prefix + "sms_index:phone:" + phone }

func (k Keys) Type(t string) string { return k.prefix + "sms_index:type:" + t }

func (k Keys) Date(date string) string { return k.prefix + "sms_index:date:" + date }

func (k Keys) Unprocessed() string { return k.prefix + "sms_index:unprocessed" }

// RecordID extracts the record id from a primary record key
func (k Keys) RecordID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, k.prefix+"sms:")
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// BaseRepository holds the shared store client and key layout
type BaseRepository struct {
	rdb  redis.Cmdable
	keys Keys
}

// NewBaseRepository creates a new base repository instance. A nil client makes
// every operation fail with ErrStoreUnavailable.
func NewBaseRepository(rdb redis.Cmdable, prefix string) BaseRepository {
	return BaseRepository{rdb: rdb, keys: NewKeys(prefix)}
}

// client returns the store client or ErrStoreUnavailable when none is configured
func (r *BaseRepository) client() (redis.Cmdable, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("%w: redis client not configured", ErrStoreUnavailable)
	}
	return r.rdb, nil
}

// storeError wraps a client error so callers can match ErrStoreUnavailable
func storeError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
}

// Ping checks connectivity with the store
func (r *BaseRepository) Ping(ctx context.Context) error {
	rdb, err := r.client()
	if err != nil {
		return err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return storeError("ping redis", err)
	}
	return nil
}

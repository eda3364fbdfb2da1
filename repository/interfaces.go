// Package repository provides data access layer implementations and interfaces for the Redis store
package repository

import (
	"context"

	"github.com/amirphl/sms-receiver/models"
)

// SMSRepository defines operations on primary SMS records
type SMSRepository interface {
	// Save assigns a fresh id to sms, writes it with the retention TTL and returns the id
	Save(ctx context.Context, sms *models.SMS) (string, error)
	// ByID returns nil, nil when the record does not exist or has expired
	ByID(ctx context.Context, id string) (*models.SMS, error)
	// ByIDs returns the records that still exist, in the order of ids
	ByIDs(ctx context.Context, ids []string) ([]*models.SMS, error)
	// ScanIDs calls fn with batches of primary record ids; index keys are never included
	ScanIDs(ctx context.Context, fn func(ids []string) error) error
	SetType(ctx context.Context, id string, smsType models.SMSType) (bool, error)
	// Clear deletes every record and index key and returns the number of deleted keys
	Clear(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// SMSIndexRepository defines operations on the secondary indexes
type SMSIndexRepository interface {
	// Index writes every secondary structure for a stored record. Each structure is
	// attempted independently; failures are collected in the report.
	Index(ctx context.Context, sms *models.SMS) IndexReport
	// Reindex idempotently restores the chronological score and set memberships of
	// an existing record. It reports whether anything changed.
	Reindex(ctx context.Context, sms *models.SMS) (bool, error)

	RecentIDs(ctx context.Context, offset, limit int64) ([]string, error)
	FilteredIDs(ctx context.Context, filter models.SMSFilter) ([]string, error)
	// OrderByTimeline sorts ids newest first by their chronological score. Ids
	// missing from the timeline sort last.
	OrderByTimeline(ctx context.Context, ids []string) ([]string, error)
	TimelineScore(ctx context.Context, id string) (float64, bool, error)

	TimelineCount(ctx context.Context) (int64, error)
	UnprocessedCount(ctx context.Context) (int64, error)
	DateCount(ctx context.Context, date string) (int64, error)
	TypeCount(ctx context.Context, smsType models.SMSType) (int64, error)
}

// IndexReport collects per-structure failures of a single Index call
type IndexReport struct {
	Failures map[string]error
}

func (r *IndexReport) record(index string, err error) {
	if err == nil {
		return
	}
	if r.Failures == nil {
		r.Failures = make(map[string]error)
	}
	r.Failures[index] = err
}

// OK reports whether every structure was written
func (r IndexReport) OK() bool {
	return len(r.Failures) == 0
}

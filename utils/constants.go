package utils

import (
	"time"
)

// Storage constants
const (
	// SMSRetention is the default time-to-live for stored SMS records (30 days)
	SMSRetention = 30 * 24 * time.Hour

	// DefaultKeyPrefix namespaces every key written to Redis
	DefaultKeyPrefix = "sms_receiver:"
)

// Query constants
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000

	// DashboardRecentLimit is the number of records shown on the dashboard
	DashboardRecentLimit = 20
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

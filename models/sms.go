package models

// SMSType enumerates the direction of an SMS relative to this service
type SMSType string

const (
	SMSTypeInbound  SMSType = "inbound"
	SMSTypeOutbound SMSType = "outbound"
	SMSTypeUnknown  SMSType = "unknown"
)

// SMS statuses by convention; not validated on read
const (
	SMSStatusPending = "pending"
	SMSStatusSent    = "sent"
)

// UnknownPhone is stored when no sender/recipient field could be extracted
const UnknownPhone = "unknown"

// SMS is one message exchanged with the gateway, stored as a flat Redis hash
type SMS struct {
	ID        string            `json:"id"`
	Type      SMSType           `json:"type"`
	Phone     string            `json:"phone"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	RawData   map[string]string `json:"raw_data"`
	Processed bool              `json:"processed"`
	Status    string            `json:"status"`
}

// SMSFilter provides filter fields for index lookups. Empty fields are ignored.
type SMSFilter struct {
	Phone string
	Date  string
	Type  SMSType
}

// IsEmpty reports whether no filter field is set
func (f SMSFilter) IsEmpty() bool {
	return f.Phone == "" && f.Date == "" && f.Type == ""
}

// SMSStats summarizes index cardinalities
type SMSStats struct {
	Total       int64 `json:"total_sms"`
	Unprocessed int64 `json:"unprocessed"`
	Today       int64 `json:"today"`
	Inbound     int64 `json:"inbound"`
	Outbound    int64 `json:"outbound"`
}

// RepairResult reports the outcome of a chronological index rebuild
type RepairResult struct {
	Scanned            int   `json:"scanned"`
	Fixed              int   `json:"fixed"`
	Failed             int   `json:"failed"`
	ChronologicalTotal int64 `json:"chronological_total"`
}

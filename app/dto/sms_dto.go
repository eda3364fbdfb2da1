package dto

import (
	"net/url"

	"github.com/amirphl/sms-receiver/models"
)

// IngestSMSRequest carries an undecoded gateway request to the ingestion flow
type IngestSMSRequest struct {
	ContentType string
	Body        []byte
	// Form holds multipart form values decoded by the transport
	Form  url.Values
	Query url.Values
}

// IngestSMSResponse is returned by the receive and send endpoints. SMSID is omitted
// when the record could not be persisted.
type IngestSMSResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	SMSID   string `json:"sms_id,omitempty"`
}

// ListSMSRequest selects records for listing and export
type ListSMSRequest struct {
	Limit  int    `query:"limit" json:"limit" validate:"min=0,max=1000"`
	Offset int    `query:"offset" json:"offset" validate:"min=0"`
	Phone  string `query:"phone" json:"phone,omitempty" validate:"omitempty,max=64"`
	Date   string `query:"date" json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Type   string `query:"type" json:"type,omitempty" validate:"omitempty,oneof=inbound outbound unknown"`
}

// Filter converts the request into an index filter
func (r *ListSMSRequest) Filter() models.SMSFilter {
	return models.SMSFilter{
		Phone: r.Phone,
		Date:  r.Date,
		Type:  models.SMSType(r.Type),
	}
}

type ListSMSResponse struct {
	Status string        `json:"status"`
	Count  int           `json:"count"`
	SMS    []*models.SMS `json:"sms"`
}

type GetSMSResponse struct {
	Status string      `json:"status"`
	SMS    *models.SMS `json:"sms"`
}

type SMSStatsResponse struct {
	Status string          `json:"status"`
	Stats  models.SMSStats `json:"stats"`
}

// ExportSMSRequest selects records and an output format for export
type ExportSMSRequest struct {
	Format string `query:"format" json:"format" validate:"omitempty,oneof=csv xlsx"`
	Limit  int    `query:"limit" json:"limit" validate:"min=0,max=1000"`
	Phone  string `query:"phone" json:"phone,omitempty" validate:"omitempty,max=64"`
	Date   string `query:"date" json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Type   string `query:"type" json:"type,omitempty" validate:"omitempty,oneof=inbound outbound unknown"`
}

// ListRequest returns the selection part of an export request
func (r *ExportSMSRequest) ListRequest() *ListSMSRequest {
	return &ListSMSRequest{Limit: r.Limit, Phone: r.Phone, Date: r.Date, Type: r.Type}
}

// ExportSMSResponse is a rendered export file
type ExportSMSResponse struct {
	Filename    string
	ContentType string
	Content     []byte
	Count       int
}

type RepairSMSResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Result  *models.RepairResult `json:"result"`
}

type ClearSMSResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// DashboardData is rendered by the dashboard template
type DashboardData struct {
	Title       string
	GeneratedAt string
	Available   bool
	Stats       models.SMSStats
	Recent      []*models.SMS
}

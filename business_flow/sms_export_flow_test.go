package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSMSQueryFlow_ExportCSV(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	ids := s.seed(t,
		&models.SMS{Type: models.SMSTypeInbound, Phone: "+1", Message: "first, with comma", Timestamp: at(base), Status: models.SMSStatusPending, RawData: map[string]string{"k": "v"}},
		&models.SMS{Type: models.SMSTypeOutbound, Phone: "+2", Message: "second", Timestamp: at(base.Add(time.Second)), Status: models.SMSStatusSent},
	)

	res, err := s.query.Export(context.Background(), &dto.ExportSMSRequest{Format: ExportFormatCSV, Limit: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Contains(t, res.ContentType, "text/csv")
	assert.Contains(t, res.Filename, ".csv")

	rows, err := csv.NewReader(bytes.NewReader(res.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, []string{ids[1], "outbound", "+2", "second", at(base.Add(time.Second)), "false", "sent", "{}"}, rows[1])
	assert.Equal(t, []string{ids[0], "inbound", "+1", "first, with comma", at(base), "false", "pending", `{"k":"v"}`}, rows[2])
}

func TestSMSQueryFlow_ExportXLSX(t *testing.T) {
	s := newTestStore(t)
	ids := s.seed(t, &models.SMS{Type: models.SMSTypeInbound, Phone: "+1", Message: "xl", Timestamp: at(time.Now())})

	res, err := s.query.Export(context.Background(), &dto.ExportSMSRequest{Format: ExportFormatXLSX, Limit: 10, Phone: "+1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	xl, err := excelize.OpenReader(bytes.NewReader(res.Content))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows(exportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, ids[0], rows[1][0])
	assert.Equal(t, "xl", rows[1][3])
}

func TestSMSQueryFlow_ExportRejectsUnknownFormat(t *testing.T) {
	s := newTestStore(t)

	_, err := s.query.Export(context.Background(), &dto.ExportSMSRequest{Format: "pdf", Limit: 10}, nil)
	require.Error(t, err)
	assert.True(t, IsUnsupportedExportFormat(err))
	assert.True(t, IsValidationError(err))
}

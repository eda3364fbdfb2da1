package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/models"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Export formats
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

const exportSheetName = "SMS"

var exportHeader = []string{"id", "type", "phone", "message", "timestamp", "processed", "status", "raw_data"}

// Export renders the records selected by req as a CSV or XLSX attachment
func (f *SMSQueryFlowImpl) Export(ctx context.Context, req *dto.ExportSMSRequest, metadata *ClientMetadata) (response *dto.ExportSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("EXPORT_SMS_FAILED", "Failed to export SMS", err)
		}
	}()

	format := req.Format
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		err = ErrUnsupportedExportFormat
		return nil, err
	}

	listReq := req.ListRequest()
	if err = validateListRequest(listReq); err != nil {
		return nil, err
	}

	records, err := f.selectRecords(ctx, listReq)
	if err != nil {
		f.log.Error("failed to select sms for export", zap.String("request_id", metadataRequestID(ctx, metadata)), zap.Error(err))
		return nil, err
	}

	rows := make([][]string, 0, len(records))
	for _, sms := range records {
		rows = append(rows, exportRow(sms))
	}

	filename := fmt.Sprintf("sms_export_%s.%s", utils.UTCNow().Format("20060102_150405"), format)
	res := &dto.ExportSMSResponse{Filename: filename, Count: len(records)}

	switch format {
	case ExportFormatXLSX:
		res.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		res.Content, err = renderXLSX(rows)
	default:
		res.ContentType = "text/csv; charset=utf-8"
		res.Content, err = renderCSV(rows)
	}
	if err != nil {
		return nil, err
	}

	f.log.Info("sms exported", zap.String("format", format), zap.Int("count", res.Count))
	return res, nil
}

func exportRow(sms *models.SMS) []string {
	raw, err := json.Marshal(sms.RawData)
	if err != nil {
		raw = []byte("{}")
	}
	return []string{
		sms.ID,
		string(sms.Type),
		sms.Phone,
		sms.Message,
		sms.Timestamp,
		strconv.FormatBool(sms.Processed),
		sms.Status,
		string(raw),
	}
}

func renderCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(rows [][]string) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), exportSheetName); err != nil {
		return nil, err
	}

	header := exportHeader
	if err := xl.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, err
	}
	if style, err := xl.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = xl.SetRowStyle(exportSheetName, 1, 1, style)
	}

	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(exportSheetName, cellRef, &row); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

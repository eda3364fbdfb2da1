package handlers

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/sms-receiver/app/dto"
	businessflow "github.com/amirphl/sms-receiver/business_flow"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

type SMSHandlerInterface interface {
	Receive(c fiber.Ctx) error
	Send(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Stats(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

type SMSHandler struct {
	ingestFlow businessflow.SMSIngestFlow
	queryFlow  businessflow.SMSQueryFlow
	validator  *validator.Validate
	log        *zap.Logger
	timeout    time.Duration
}

func NewSMSHandler(ingestFlow businessflow.SMSIngestFlow, queryFlow businessflow.SMSQueryFlow, log *zap.Logger, timeout time.Duration) SMSHandlerInterface {
	return &SMSHandler{
		ingestFlow: ingestFlow,
		queryFlow:  queryFlow,
		validator:  validator.New(),
		log:        log.Named("sms_handler"),
		timeout:    timeout,
	}
}

// Receive accepts an inbound SMS from the gateway
// @Summary Receive SMS
// @Description Accepts JSON, form-encoded, multipart or raw bodies. Succeeds even when the record could not be stored.
// @Tags SMS
// @Accept json
// @Accept x-www-form-urlencoded
// @Accept mpfd
// @Produce json
// @Success 200 {object} dto.IngestSMSResponse
// @Failure 500 {object} dto.APIResponse
// @Router /sms/receive [post]
func (h *SMSHandler) Receive(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/sms/receive", h.timeout)
	defer cancel()

	res, err := h.ingestFlow.Receive(ctx, ingestRequest(c), clientMetadata(c))
	if err != nil {
		h.log.Error("receive sms failed", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to receive SMS", "RECEIVE_SMS_FAILED", nil)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// Send records an outbound SMS
// @Summary Send SMS
// @Description Hands the message to the configured carrier and records it
// @Tags SMS
// @Accept json
// @Accept x-www-form-urlencoded
// @Accept mpfd
// @Produce json
// @Success 200 {object} dto.IngestSMSResponse
// @Failure 500 {object} dto.APIResponse
// @Router /sms/send [post]
func (h *SMSHandler) Send(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/sms/send", h.timeout)
	defer cancel()

	res, err := h.ingestFlow.Send(ctx, ingestRequest(c), clientMetadata(c))
	if err != nil {
		h.log.Error("send sms failed", zap.Error(err))
		if businessflow.IsCarrierFailed(err) {
			return errorResponse(c, fiber.StatusInternalServerError, "Carrier rejected the message", "CARRIER_FAILED", nil)
		}
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to send SMS", "SEND_SMS_FAILED", nil)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// List returns stored SMS newest first
// @Summary List SMS
// @Tags SMS
// @Produce json
// @Param limit query integer false "Page size (default 50, max 1000)"
// @Param offset query integer false "Records to skip"
// @Param phone query string false "Exact phone"
// @Param date query string false "UTC date YYYY-MM-DD"
// @Param type query string false "inbound, outbound or unknown"
// @Success 200 {object} dto.ListSMSResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /sms/list [get]
func (h *SMSHandler) List(c fiber.Ctx) error {
	req := dto.ListSMSRequest{Limit: utils.DefaultListLimit}
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/sms/list", h.timeout)
	defer cancel()

	res, err := h.queryFlow.List(ctx, &req, clientMetadata(c))
	if err != nil {
		return queryErrorResponse(c, err, "Failed to list SMS")
	}
	return c.JSON(res)
}

// Get returns a single SMS
// @Summary Get SMS
// @Tags SMS
// @Produce json
// @Param id path string true "SMS id"
// @Success 200 {object} dto.GetSMSResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /sms/{id} [get]
func (h *SMSHandler) Get(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/sms/:id", h.timeout)
	defer cancel()

	res, err := h.queryFlow.Get(ctx, c.Params("id"), clientMetadata(c))
	if err != nil {
		return queryErrorResponse(c, err, "Failed to get SMS")
	}
	return c.JSON(res)
}

// Stats returns index counters
// @Summary SMS statistics
// @Tags SMS
// @Produce json
// @Success 200 {object} dto.SMSStatsResponse
// @Failure 503 {object} dto.APIResponse
// @Router /sms/stats [get]
func (h *SMSHandler) Stats(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/sms/stats", h.timeout)
	defer cancel()

	res, err := h.queryFlow.Stats(ctx, clientMetadata(c))
	if err != nil {
		return queryErrorResponse(c, err, "Failed to read SMS stats")
	}
	return c.JSON(res)
}

// Export streams the selected SMS as a file attachment
// @Summary Export SMS
// @Tags SMS
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv (default) or xlsx"
// @Param limit query integer false "Maximum records (default and max 1000)"
// @Param phone query string false "Exact phone"
// @Param date query string false "UTC date YYYY-MM-DD"
// @Param type query string false "inbound, outbound or unknown"
// @Failure 400 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /sms/export [get]
func (h *SMSHandler) Export(c fiber.Ctx) error {
	req := dto.ExportSMSRequest{Format: businessflow.ExportFormatCSV, Limit: utils.MaxListLimit}
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/sms/export", h.timeout)
	defer cancel()

	res, err := h.queryFlow.Export(ctx, &req, clientMetadata(c))
	if err != nil {
		return queryErrorResponse(c, err, "Failed to export SMS")
	}

	c.Attachment(res.Filename)
	c.Set(fiber.HeaderContentType, res.ContentType)
	c.Set("X-Total-Count", strconv.Itoa(res.Count))
	return c.Status(fiber.StatusOK).Send(res.Content)
}

// ingestRequest copies the request parts the flow needs; fiber reuses body buffers
func ingestRequest(c fiber.Ctx) *dto.IngestSMSRequest {
	contentType := c.Get(fiber.HeaderContentType)
	// ParseQuery keeps every pair it could decode alongside the first error
	query, _ := url.ParseQuery(string(c.RequestCtx().QueryArgs().QueryString()))
	req := &dto.IngestSMSRequest{
		ContentType: contentType,
		Body:        append([]byte(nil), c.Body()...),
		Query:       query,
	}

	if strings.HasPrefix(strings.ToLower(contentType), fiber.MIMEMultipartForm) {
		// file parts are ignored; a malformed body is kept raw
		if form, err := c.MultipartForm(); err == nil && form != nil {
			req.Form = make(url.Values, len(form.Value))
			for name, values := range form.Value {
				req.Form[name] = append([]string(nil), values...)
			}
		}
	}
	return req
}

package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/amirphl/sms-receiver/app/dto"
	businessflow "github.com/amirphl/sms-receiver/business_flow"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type DashboardHandlerInterface interface {
	Dashboard(c fiber.Ctx) error
}

type DashboardHandler struct {
	queryFlow businessflow.SMSQueryFlow
	log       *zap.Logger
	timeout   time.Duration
}

func NewDashboardHandler(queryFlow businessflow.SMSQueryFlow, log *zap.Logger, timeout time.Duration) DashboardHandlerInterface {
	return &DashboardHandler{
		queryFlow: queryFlow,
		log:       log.Named("dashboard"),
		timeout:   timeout,
	}
}

// Dashboard renders counters and the most recent messages. Store failures
// render the page with a banner instead of an error status.
func (h *DashboardHandler) Dashboard(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/", h.timeout)
	defer cancel()
	metadata := clientMetadata(c)

	data := dto.DashboardData{
		Title:       "SMS Receiver",
		GeneratedAt: utils.FormatTimestamp(utils.UTCNow()),
		Available:   true,
	}

	stats, err := h.queryFlow.Stats(ctx, metadata)
	if err != nil {
		h.log.Warn("dashboard stats unavailable", zap.Error(err))
		data.Available = false
	} else {
		data.Stats = stats.Stats
	}

	if data.Available {
		recent, err := h.queryFlow.List(ctx, &dto.ListSMSRequest{Limit: utils.DashboardRecentLimit}, metadata)
		if err != nil {
			h.log.Warn("dashboard recent sms unavailable", zap.Error(err))
			data.Available = false
		} else {
			data.Recent = recent.SMS
		}
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		h.log.Error("failed to render dashboard", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to render dashboard", "DASHBOARD_RENDER_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

package handlers

import (
	"time"

	businessflow "github.com/amirphl/sms-receiver/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

type AdminHandlerInterface interface {
	Repair(c fiber.Ctx) error
	Clear(c fiber.Ctx) error
}

type AdminHandler struct {
	repairFlow businessflow.SMSRepairFlow
	log        *zap.Logger
	timeout    time.Duration
}

func NewAdminHandler(repairFlow businessflow.SMSRepairFlow, log *zap.Logger, timeout time.Duration) AdminHandlerInterface {
	return &AdminHandler{
		repairFlow: repairFlow,
		log:        log.Named("admin_handler"),
		timeout:    timeout,
	}
}

// Repair rebuilds the secondary indexes from the stored records
// @Summary Repair SMS indexes
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.RepairSMSResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /sms/admin/repair [post]
func (h *AdminHandler) Repair(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/sms/admin/repair", h.timeout)
	defer cancel()

	res, err := h.repairFlow.Repair(ctx, clientMetadata(c))
	if err != nil {
		h.log.Error("repair failed", zap.Error(err))
		return queryErrorResponse(c, err, "Failed to repair SMS indexes")
	}
	return c.JSON(res)
}

// Clear deletes every stored record and index
// @Summary Clear SMS store
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.ClearSMSResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /sms/admin/clear [delete]
func (h *AdminHandler) Clear(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/sms/admin/clear", h.timeout)
	defer cancel()

	res, err := h.repairFlow.Clear(ctx, clientMetadata(c))
	if err != nil {
		h.log.Error("clear failed", zap.Error(err))
		return queryErrorResponse(c, err, "Failed to clear SMS store")
	}
	return c.JSON(res)
}

// internal/handlers/admin.go
package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estatechain/ledger-backend/internal/services"
	"github.com/estatechain/ledger-backend/internal/utils"
)

type AdminHandler struct {
	auditService *services.LedgerAuditService
	guard        *services.SettlementGuard
}

func NewAdminHandler(auditService *services.LedgerAuditService, guard *services.SettlementGuard) *AdminHandler {
	return &AdminHandler{
		auditService: auditService,
		guard:        guard,
	}
}

// GET /admin/ledger/audit?repair=true
func (h *AdminHandler) RunLedgerAudit(c *gin.Context) {
	repair := false
	if raw := c.Query("repair"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			utils.BadRequestResponse(c, "repair must be a boolean", nil)
			return
		}
		repair = parsed
	}

	report, err := h.auditService.Run(c.Request.Context(), repair)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// GET /admin/settlements/*settlement_id
// Settlement ids are opaque and may contain slashes, hence the wildcard.
func (h *AdminHandler) GetSettlement(c *gin.Context) {
	settlementID := strings.TrimPrefix(c.Param("settlement_id"), "/")
	if settlementID == "" {
		utils.BadRequestResponse(c, "Invalid settlement ID", nil)
		return
	}

	settlement, err := h.guard.Get(c.Request.Context(), settlementID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, settlement)
}

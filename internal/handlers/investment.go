// internal/handlers/investment.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estatechain/ledger-backend/internal/services"
	"github.com/estatechain/ledger-backend/internal/utils"
)

type InvestmentHandler struct {
	investmentService *services.InvestmentService
	portfolioService  *services.PortfolioService
}

func NewInvestmentHandler(investmentService *services.InvestmentService, portfolioService *services.PortfolioService) *InvestmentHandler {
	return &InvestmentHandler{
		investmentService: investmentService,
		portfolioService:  portfolioService,
	}
}

// POST /investments
func (h *InvestmentHandler) RecordInvestment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.RecordInvestmentRequest
	if !bindWithWallet(c, &req, &req.WalletAddress) {
		return
	}

	investment, replayed, err := h.investmentService.RecordInvestment(c.Request.Context(), userID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.LedgerWriteResponse(c, http.StatusCreated, investment, replayed)
}

// GET /investments
func (h *InvestmentHandler) GetInvestments(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	propertyID, ok := parseOptionalUUID(c, "property_id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	filter := services.InvestmentFilter{
		UserID:        userID,
		WalletAddress: c.Query("wallet_address"),
		PropertyID:    propertyID,
	}

	investments, total, err := h.portfolioService.Investments(c.Request.Context(), filter, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(investments, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /investments/holdings
func (h *InvestmentHandler) GetHoldings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	holdings, err := h.portfolioService.Holdings(c.Request.Context(), userID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, holdings)
}

// GET /investments/transactions?property_id=
func (h *InvestmentHandler) GetTransactions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	propertyID, ok := parseOptionalUUID(c, "property_id")
	if !ok {
		return
	}
	if propertyID == nil {
		utils.BadRequestResponse(c, "property_id is required", nil)
		return
	}

	history, err := h.portfolioService.Transactions(c.Request.Context(), userID, *propertyID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, history)
}

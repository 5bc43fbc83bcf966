// internal/handlers/sell_order.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/services"
	"github.com/estatechain/ledger-backend/internal/utils"
)

type SellOrderHandler struct {
	sellOrderService *services.SellOrderService
	portfolioService *services.PortfolioService
}

func NewSellOrderHandler(sellOrderService *services.SellOrderService, portfolioService *services.PortfolioService) *SellOrderHandler {
	return &SellOrderHandler{
		sellOrderService: sellOrderService,
		portfolioService: portfolioService,
	}
}

// POST /sell-orders
func (h *SellOrderHandler) CreateSellOrder(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.CreateSellOrderRequest
	if !bindWithWallet(c, &req, &req.WalletAddress) {
		return
	}

	order, replayed, err := h.sellOrderService.CreateSellOrder(c.Request.Context(), sellerID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.LedgerWriteResponse(c, http.StatusCreated, order, replayed)
}

// GET /sell-orders
func (h *SellOrderHandler) GetMarketplace(c *gin.Context) {
	propertyID, ok := parseOptionalUUID(c, "property_id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	requesterID, _ := utils.GetUserIDFromContext(c)

	listings, total, err := h.portfolioService.Marketplace(c.Request.Context(), services.MarketplaceFilter{
		PaginationParams: params,
		PropertyID:       propertyID,
		RequesterID:      requesterID,
	})
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(listings, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /sell-orders/mine
func (h *SellOrderHandler) GetMyOrders(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}

	var status *models.SellOrderStatus
	if raw := c.Query("status"); raw != "" {
		s := models.SellOrderStatus(strings.ToUpper(raw))
		status = &s
	}

	params := utils.GetPaginationParams(c)
	orders, total, err := h.portfolioService.SellerOrders(c.Request.Context(), sellerID, status, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /sell-orders/:id
func (h *SellOrderHandler) GetSellOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "sell order")
	if !ok {
		return
	}

	order, err := h.sellOrderService.GetSellOrder(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /sell-orders/:id/complete
func (h *SellOrderHandler) CompleteSellOrder(c *gin.Context) {
	buyerID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "sell order")
	if !ok {
		return
	}

	var req services.CompleteSellOrderRequest
	if !bindWithWallet(c, &req, &req.WalletAddress) {
		return
	}

	completion, replayed, err := h.sellOrderService.CompleteSellOrder(c.Request.Context(), id, buyerID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.LedgerWriteResponse(c, http.StatusOK, completion, replayed)
}

// POST /sell-orders/:id/cancel
func (h *SellOrderHandler) CancelSellOrder(c *gin.Context) {
	requesterID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "sell order")
	if !ok {
		return
	}

	order, err := h.sellOrderService.CancelSellOrder(c.Request.Context(), id, requesterID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// PUT /sell-orders/:id/chain-ref
func (h *SellOrderHandler) SetChainRef(c *gin.Context) {
	requesterID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "sell order")
	if !ok {
		return
	}

	var req services.SetChainRefRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.sellOrderService.SetChainRef(c.Request.Context(), id, requesterID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// GET /sell-orders/:id/chain-ref
func (h *SellOrderHandler) GetChainRef(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "sell order")
	if !ok {
		return
	}

	ref, err := h.sellOrderService.GetChainRef(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"sell_order_id": id, "chain_order_id": ref})
}

// internal/handlers/property.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/services"
	"github.com/estatechain/ledger-backend/internal/utils"
)

type PropertyHandler struct {
	propertyService  *services.PropertyService
	portfolioService *services.PortfolioService
}

func NewPropertyHandler(propertyService *services.PropertyService, portfolioService *services.PortfolioService) *PropertyHandler {
	return &PropertyHandler{
		propertyService:  propertyService,
		portfolioService: portfolioService,
	}
}

// GET /properties
func (h *PropertyHandler) GetProperties(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.PropertySearchParams{
		PaginationParams: params,
		PropertyType:     c.Query("property_type"),
		Search:           strings.TrimSpace(c.Query("search")),
	}

	// Non-listed properties are only visible to admins.
	if status := c.Query("status"); status != "" {
		role, _ := utils.GetRoleFromContext(c)
		if role == utils.RoleAdmin {
			propertyStatus := models.PropertyStatus(strings.ToUpper(status))
			searchParams.Status = &propertyStatus
		}
	}

	properties, total, err := h.propertyService.SearchProperties(c.Request.Context(), searchParams)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(properties, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /properties/:id
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "property")
	if !ok {
		return
	}

	property, err := h.propertyService.GetProperty(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, property)
}

// GET /properties/:id/availability
func (h *PropertyHandler) GetAvailability(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "property")
	if !ok {
		return
	}

	snapshot, err := h.portfolioService.Availability(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, snapshot)
}

// POST /properties
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	var req services.CreatePropertyRequest
	if !bindJSON(c, &req) {
		return
	}

	property, err := h.propertyService.CreateProperty(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, property)
}

// PUT /properties/:id
func (h *PropertyHandler) UpdateProperty(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "property")
	if !ok {
		return
	}

	var req services.UpdatePropertyRequest
	if !bindJSON(c, &req) {
		return
	}

	property, err := h.propertyService.UpdateProperty(c.Request.Context(), id, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, property)
}

// POST /properties/:id/list
func (h *PropertyHandler) ListProperty(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "property")
	if !ok {
		return
	}

	property, err := h.propertyService.ListProperty(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, property)
}

// POST /properties/:id/delist
func (h *PropertyHandler) DelistProperty(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "property")
	if !ok {
		return
	}

	property, err := h.propertyService.DelistProperty(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, property)
}

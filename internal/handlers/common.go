// internal/handlers/common.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/estatechain/ledger-backend/internal/i18n"
	"github.com/estatechain/ledger-backend/internal/utils"
)

// bindJSON decodes and validates the request body, answering the request
// itself when either step fails.
func bindJSON(c *gin.Context, req interface{}) bool {
	return decodeJSON(c, req) && validated(c, req)
}

// bindWithWallet is bindJSON for bodies whose wallet defaults to the one
// carried by the caller's token.
func bindWithWallet(c *gin.Context, req interface{}, wallet *string) bool {
	if !decodeJSON(c, req) {
		return false
	}
	if *wallet == "" {
		*wallet = utils.GetWalletFromContext(c)
	}
	return validated(c, req)
}

func decodeJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	return true
}

func validated(c *gin.Context, req interface{}) bool {
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func parseIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUID reads an optional uuid query parameter. ok is false
// when the parameter is present but malformed.
func parseOptionalUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return nil, false
	}
	return &id, true
}

func requireUser(c *gin.Context) (string, bool) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return "", false
	}
	return userID, true
}

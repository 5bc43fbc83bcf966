// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/i18n"
)

// HeaderReplayed marks a response served from an already recorded
// settlement instead of a new ledger write.
const HeaderReplayed = "Idempotent-Replayed"

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code      string      `json:"code"`
	Kind      string      `json:"kind,omitempty"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// LedgerWriteResponse answers a settlement-bearing write. A replay gets the
// same status and body as the original write plus the replay header.
func LedgerWriteResponse(c *gin.Context, status int, data interface{}, replayed bool) {
	if replayed {
		c.Header(HeaderReplayed, "true")
	}
	c.JSON(status, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAdminAccessDenied)
	}
	ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", message, nil)
}

// NotFoundResponse answers with the "<resource>.not_found" message.
func NotFoundResponse(c *gin.Context, resource string) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, resource+".not_found")
	ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func InternalErrorResponse(c *gin.Context, message string) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyInternalError)
	}
	c.JSON(http.StatusInternalServerError, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    apperrors.ErrInternal.Code,
			Kind:    string(apperrors.ErrInternal.Kind),
			Message: message,
		},
	})
}

func ValidationErrorResponse(c *gin.Context, errors []ValidationError) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, i18n.KeyValidationInvalid, "input")
	ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", message, errors)
}

// StatusForKind maps an error kind onto its HTTP status.
func StatusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusUnprocessableEntity
	case apperrors.KindUnauthorized:
		return http.StatusForbidden
	case apperrors.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppErrorResponse renders an application error. Errors outside the
// taxonomy are reported as internal without leaking their text.
func AppErrorResponse(c *gin.Context, err error) {
	lang := GetLangFromContext(c)

	appErr, ok := apperrors.As(err)
	if !ok {
		_ = c.Error(err)
		InternalErrorResponse(c, "")
		return
	}

	message := appErr.Message
	var details interface{}
	switch appErr.Kind {
	case apperrors.KindStoreUnavailable:
		_ = c.Error(err)
		message = i18n.T(lang, i18n.KeyStoreUnavailable)
	case apperrors.KindInternal:
		_ = c.Error(err)
		message = i18n.T(lang, i18n.KeyInternalError)
	default:
		if key := i18n.ErrorKey(appErr.Code); lang != "en" && i18n.Has(key) {
			message = i18n.T(lang, key)
		}
		if fields := GetValidationErrors(err); len(fields) > 0 {
			details = fields
		}
	}

	c.JSON(StatusForKind(appErr.Kind), APIResponse{
		Success: false,
		Error: &APIError{
			Code:      appErr.Code,
			Kind:      string(appErr.Kind),
			Message:   message,
			Retryable: appErr.Retryable(),
			Details:   details,
		},
	})
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	SuccessResponseWithMeta(c, result.Data, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if userID, exists := c.Get("user_id"); exists {
		if userIDStr, ok := userID.(string); ok && userIDStr != "" {
			return userIDStr, true
		}
	}
	return "", false
}

func GetWalletFromContext(c *gin.Context) string {
	return c.GetString("wallet_address")
}

func GetRoleFromContext(c *gin.Context) (string, bool) {
	if role, exists := c.Get("role"); exists {
		if roleStr, ok := role.(string); ok {
			return roleStr, true
		}
	}
	return "", false
}

// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired       = "auth.required"
	KeyAuthInvalidToken   = "auth.invalid_token"
	KeyAuthTokenExpired   = "auth.token_expired"
	KeyAdminAccessDenied  = "admin.access_denied"
	KeyRateLimitExceeded  = "rate_limit.exceeded"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRequired = "validation.required"

	// Properties
	KeyPropertyCreated  = "property.created"
	KeyPropertyUpdated  = "property.updated"
	KeyPropertyListed   = "property.listed"
	KeyPropertyDelisted = "property.delisted"
	KeyPropertyNotFound = "property.not_found"

	// Ledger
	KeyInvestmentRecorded  = "investment.recorded"
	KeySellOrderCreated    = "sell_order.created"
	KeySellOrderCompleted  = "sell_order.completed"
	KeySellOrderCancelled  = "sell_order.cancelled"
	KeySellOrderNotFound   = "sell_order.not_found"
	KeyRouteNotFound       = "route.not_found"
	KeySettlementReplayed  = "settlement.replayed"
	KeyLedgerAuditComplete = "ledger.audit_complete"

	// Errors
	KeyStoreUnavailable = "error.store_unavailable"
	KeyInternalError    = "error.internal"
)

// ErrorKey is the catalogue key for an application error code.
func ErrorKey(code string) string {
	return "error_code." + code
}

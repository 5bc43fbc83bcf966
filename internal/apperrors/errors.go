// Package apperrors defines the ledger's error taxonomy. Every failure a
// caller can act on carries a Kind (how to react) and a Code (what happened).
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindValidation       Kind = "VALIDATION"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
	KindInternal         Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that wrapped or re-created errors compare equal to
// the package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether the caller may safely repeat the operation.
func (e *Error) Retryable() bool { return e.Kind == KindStoreUnavailable }

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrPropertyNotFound     = newError(KindNotFound, "PROPERTY_NOT_FOUND", "property not found")
	ErrSellOrderNotFound    = newError(KindNotFound, "SELL_ORDER_NOT_FOUND", "sell order not found")
	ErrInvestmentNotFound   = newError(KindNotFound, "INVESTMENT_NOT_FOUND", "investment not found")
	ErrSettlementNotFound   = newError(KindNotFound, "SETTLEMENT_NOT_FOUND", "settlement not found")
	ErrChainRefNotFound     = newError(KindNotFound, "CHAIN_REF_NOT_FOUND", "sell order has no on-chain reference")
	ErrPropertyNotListed    = newError(KindValidation, "PROPERTY_NOT_LISTED", "property is not listed")
	ErrPropertyNotEditable  = newError(KindValidation, "PROPERTY_NOT_EDITABLE", "property cannot be changed in its current status")
	ErrInsufficientSupply   = newError(KindValidation, "INSUFFICIENT_SUPPLY", "not enough tokens available")
	ErrInsufficientHoldings = newError(KindValidation, "INSUFFICIENT_HOLDINGS", "not enough unreserved tokens held")
	ErrInvalidQuantity      = newError(KindValidation, "INVALID_QUANTITY", "token quantity must be positive")
	ErrInvalidPrice         = newError(KindValidation, "INVALID_PRICE", "price must be positive")
	ErrInvalidRequest       = newError(KindValidation, "INVALID_REQUEST", "invalid request")
	ErrSelfPurchase         = newError(KindValidation, "SELF_PURCHASE", "sellers cannot buy their own order")
	ErrSellOrderNotPending  = newError(KindConflict, "SELL_ORDER_NOT_PENDING", "order no longer available")
	ErrSellerHoldingsShort  = newError(KindConflict, "SELLER_HOLDINGS_INSUFFICIENT", "seller holdings do not cover the order")
	ErrSettlementReused     = newError(KindConflict, "SETTLEMENT_REUSED", "settlement already recorded for a different operation")
	ErrChainRefAlreadySet   = newError(KindConflict, "CHAIN_REF_ALREADY_SET", "on-chain reference already recorded")
	ErrNotOwner             = newError(KindUnauthorized, "NOT_OWNER", "requester does not own this resource")
	ErrStoreUnavailable     = newError(KindStoreUnavailable, "STORE_UNAVAILABLE", "ledger store unavailable, retry the request")
	ErrInternal             = newError(KindInternal, "INTERNAL_ERROR", "internal error")
)

// StoreUnavailable wraps a transport or commit failure.
func StoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{
		Kind:    KindStoreUnavailable,
		Code:    ErrStoreUnavailable.Code,
		Message: ErrStoreUnavailable.Message,
		Err:     err,
	}
}

// Invalid wraps a request validation failure.
func Invalid(err error) error {
	return &Error{
		Kind:    KindValidation,
		Code:    ErrInvalidRequest.Code,
		Message: ErrInvalidRequest.Message,
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Package accounting holds the token accounting rules of the ledger. Every
// function here is pure: callers load the relevant counts inside their own
// transaction and pass them in.
package accounting

import (
	"github.com/shopspring/decimal"

	"github.com/estatechain/ledger-backend/internal/apperrors"
)

// PriceScale is the number of decimal places kept for per-token prices and
// the consideration derived from them.
const PriceScale int32 = 8

// PricePerToken is the single valuation formula for a property's token:
// price / total_tokens, rounded half-up at PriceScale.
func PricePerToken(price decimal.Decimal, totalTokens int64) decimal.Decimal {
	if totalTokens <= 0 {
		return decimal.Zero
	}
	return price.DivRound(decimal.NewFromInt(totalTokens), PriceScale)
}

// Consideration is what a buyer pays for tokens at a unit price.
func Consideration(pricePerToken decimal.Decimal, tokens int64) decimal.Decimal {
	return pricePerToken.Mul(decimal.NewFromInt(tokens)).Round(PriceScale)
}

// AvailableTokens never reports a negative supply, even for a property whose
// ledger is already inconsistent.
func AvailableTokens(totalTokens, issuedTokens int64) int64 {
	if issuedTokens >= totalTokens {
		return 0
	}
	return totalTokens - issuedTokens
}

func ValidateQuantity(tokens int64) error {
	if tokens <= 0 {
		return apperrors.ErrInvalidQuantity
	}
	return nil
}

func ValidateInvestment(totalTokens, issuedTokens, requested int64) error {
	if err := ValidateQuantity(requested); err != nil {
		return err
	}
	available := AvailableTokens(totalTokens, issuedTokens)
	if requested > available {
		return apperrors.ErrInsufficientSupply.WithMessage(
			"requested %d tokens but only %d are available", requested, available)
	}
	return nil
}

// NetHoldings is what a seller may still list: tokens held minus tokens
// already reserved by their own pending sell orders.
func NetHoldings(held, reserved int64) int64 {
	if reserved >= held {
		return 0
	}
	return held - reserved
}

func ValidateSellOrder(held, reserved, requested int64) error {
	if err := ValidateQuantity(requested); err != nil {
		return err
	}
	net := NetHoldings(held, reserved)
	if requested > net {
		return apperrors.ErrInsufficientHoldings.WithMessage(
			"requested %d tokens but only %d are held and unreserved", requested, net)
	}
	return nil
}

// Lot is one investment row of a seller, as seen inside a transfer.
type Lot struct {
	ID     string
	Tokens int64
}

// Debit is the amount to remove from one lot.
type Debit struct {
	ID     string
	Tokens int64
}

// AllocateTransfer spreads a transfer of tokens across the seller's lots in
// the order given (callers pass them oldest first). The debits sum exactly
// to tokens and never exceed a lot's balance.
func AllocateTransfer(lots []Lot, tokens int64) ([]Debit, error) {
	if err := ValidateQuantity(tokens); err != nil {
		return nil, err
	}

	remaining := tokens
	debits := make([]Debit, 0, len(lots))
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if lot.Tokens <= 0 {
			continue
		}
		take := lot.Tokens
		if take > remaining {
			take = remaining
		}
		debits = append(debits, Debit{ID: lot.ID, Tokens: take})
		remaining -= take
	}

	if remaining > 0 {
		return nil, apperrors.ErrSellerHoldingsShort.WithMessage(
			"seller lots are short by %d tokens", remaining)
	}
	return debits, nil
}

// Sum totals the token balances of lots.
func Sum(lots []Lot) int64 {
	var total int64
	for _, lot := range lots {
		if lot.Tokens > 0 {
			total += lot.Tokens
		}
	}
	return total
}

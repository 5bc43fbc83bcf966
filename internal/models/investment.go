// internal/models/investment.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Investment is one position: tokens of a property held by a user, created
// by exactly one settlement. Tokens shrinks when the holder sells through a
// sell order; OriginalTokens keeps what the settlement established.
type Investment struct {
	BaseModel
	PropertyID     uuid.UUID        `json:"property_id" gorm:"type:uuid;not null;index"`
	UserID         string           `json:"user_id" gorm:"size:128;not null;index"`
	WalletAddress  string           `json:"wallet_address" gorm:"size:42;not null;index"`
	Tokens         int64            `json:"tokens" gorm:"not null;check:chk_investments_tokens,tokens >= 0"`
	OriginalTokens int64            `json:"original_tokens" gorm:"not null;check:chk_investments_original_tokens,original_tokens > 0 AND tokens <= original_tokens"`
	Amount         decimal.Decimal  `json:"amount" gorm:"type:numeric(30,8);not null"`
	SettlementID   string           `json:"settlement_id" gorm:"size:128;not null;uniqueIndex"`
	Source         InvestmentSource `json:"source" gorm:"type:varchar(20);not null;check:chk_investments_source,source IN ('PRIMARY','TRANSFER')"`
	SellOrderID    *uuid.UUID       `json:"sell_order_id,omitempty" gorm:"type:uuid;index"`

	// Relationships
	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}

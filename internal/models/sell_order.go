// internal/models/sell_order.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SellOrder struct {
	BaseModel
	PropertyID             uuid.UUID       `json:"property_id" gorm:"type:uuid;not null;index"`
	SellerUserID           string          `json:"seller_user_id" gorm:"size:128;not null;index"`
	SellerWalletAddress    string          `json:"seller_wallet_address" gorm:"size:42;not null"`
	Tokens                 int64           `json:"tokens" gorm:"not null;check:chk_sell_orders_tokens,tokens > 0"`
	PricePerToken          decimal.Decimal `json:"price_per_token" gorm:"type:numeric(30,8);not null"`
	Status                 SellOrderStatus `json:"status" gorm:"type:varchar(20);not null;index;check:chk_sell_orders_status,status IN ('PENDING','COMPLETED','CANCELLED')"`
	SettlementID           string          `json:"settlement_id" gorm:"size:128;not null;uniqueIndex"`
	ChainOrderID           *string         `json:"chain_order_id,omitempty" gorm:"size:78"`
	BuyerUserID            *string         `json:"buyer_user_id,omitempty" gorm:"size:128;index"`
	BuyerWalletAddress     *string         `json:"buyer_wallet_address,omitempty" gorm:"size:42"`
	CompletionSettlementID *string         `json:"completion_settlement_id,omitempty" gorm:"size:128;uniqueIndex;check:chk_sell_orders_completion,status <> 'COMPLETED' OR (buyer_user_id IS NOT NULL AND completion_settlement_id IS NOT NULL)"`
	BuyerInvestmentID      *uuid.UUID      `json:"buyer_investment_id,omitempty" gorm:"type:uuid"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
	CancelledAt            *time.Time      `json:"cancelled_at,omitempty"`

	// Relationships
	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}

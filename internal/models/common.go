// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel carries the identity and timestamps shared by ledger rows. Ledger
// rows are never deleted, so there is no soft-delete column.
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an ID unless the caller generated one up front, which
// reconciliation transactions do so the settlement registry can reference
// rows before they are inserted.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Enums
type PropertyStatus string

const (
	PropertyStatusDraft    PropertyStatus = "DRAFT"
	PropertyStatusListed   PropertyStatus = "LISTED"
	PropertyStatusDelisted PropertyStatus = "DELISTED"
)

type InvestmentSource string

const (
	// InvestmentSourcePrimary is a purchase from the property's unissued supply.
	InvestmentSourcePrimary InvestmentSource = "PRIMARY"
	// InvestmentSourceTransfer is a position created by a completed sell order.
	InvestmentSourceTransfer InvestmentSource = "TRANSFER"
)

type SellOrderStatus string

const (
	SellOrderStatusPending   SellOrderStatus = "PENDING"
	SellOrderStatusCompleted SellOrderStatus = "COMPLETED"
	SellOrderStatusCancelled SellOrderStatus = "CANCELLED"
)

type SettlementKind string

const (
	SettlementKindInvestment        SettlementKind = "INVESTMENT"
	SettlementKindSellOrderCreate   SettlementKind = "SELL_ORDER_CREATE"
	SettlementKindSellOrderComplete SettlementKind = "SELL_ORDER_COMPLETE"
)

type VerificationStatus string

const (
	VerificationStatusPending      VerificationStatus = "PENDING"
	VerificationStatusConfirmed    VerificationStatus = "CONFIRMED"
	VerificationStatusReverted     VerificationStatus = "REVERTED"
	VerificationStatusUnverifiable VerificationStatus = "UNVERIFIABLE"
)

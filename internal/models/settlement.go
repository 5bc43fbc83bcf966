// internal/models/settlement.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Settlement registers every external settlement identifier the ledger has
// consumed. Its primary key makes a settlement usable by at most one
// reconciliation transaction, whichever column of which table ends up
// carrying it.
type Settlement struct {
	SettlementID       string             `json:"settlement_id" gorm:"primaryKey;size:128"`
	Kind               SettlementKind     `json:"kind" gorm:"type:varchar(32);not null;check:chk_settlements_kind,kind IN ('INVESTMENT','SELL_ORDER_CREATE','SELL_ORDER_COMPLETE')"`
	PropertyID         uuid.UUID          `json:"property_id" gorm:"type:uuid;not null;index"`
	InvestmentID       *uuid.UUID         `json:"investment_id,omitempty" gorm:"type:uuid"`
	SellOrderID        *uuid.UUID         `json:"sell_order_id,omitempty" gorm:"type:uuid"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"type:varchar(20);not null;index;check:chk_settlements_verification,verification_status IN ('PENDING','CONFIRMED','REVERTED','UNVERIFIABLE')"`
	VerificationNote   string             `json:"verification_note,omitempty" gorm:"size:255"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

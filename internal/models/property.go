// internal/models/property.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Property struct {
	BaseModel
	Name            string                      `json:"name" gorm:"size:255;not null"`
	Location        string                      `json:"location" gorm:"size:255"`
	Description     string                      `json:"description" gorm:"type:text"`
	PropertyType    string                      `json:"property_type" gorm:"size:50;index"`
	Images          datatypes.JSONSlice[string] `json:"images"`
	Price           decimal.Decimal             `json:"price" gorm:"type:numeric(20,2);not null"`
	TotalTokens     int64                       `json:"total_tokens" gorm:"not null;check:chk_properties_total_tokens,total_tokens > 0"`
	AvailableTokens int64                       `json:"available_tokens" gorm:"not null;check:chk_properties_available_tokens,available_tokens >= 0 AND available_tokens <= total_tokens"`
	ExpectedReturn  decimal.Decimal             `json:"expected_return" gorm:"type:numeric(6,2)"`
	TokenAddress    string                      `json:"token_address,omitempty" gorm:"size:42"`
	ChainPropertyID string                      `json:"chain_property_id,omitempty" gorm:"size:78"`
	Status          PropertyStatus              `json:"status" gorm:"type:varchar(20);not null;index;check:chk_properties_status,status IN ('DRAFT','LISTED','DELISTED')"`
	ListedAt        *time.Time                  `json:"listed_at,omitempty"`
	DelistedAt      *time.Time                  `json:"delisted_at,omitempty"`
}

// IssuedTokens derives the issued count from the denormalized counter. Ledger
// writes recompute it from investment rows instead.
func (p *Property) IssuedTokens() int64 {
	if p.Status == PropertyStatusDraft {
		return 0
	}
	return p.TotalTokens - p.AvailableTokens
}

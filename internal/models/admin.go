// internal/models/admin.go
package models

import (
	"gorm.io/datatypes"
)

// AuditLog records mutating API requests.
type AuditLog struct {
	BaseModel
	UserID       *string           `json:"user_id" gorm:"size:128;index"`
	Action       string            `json:"action" gorm:"size:100;not null;index"`
	ResourceType string            `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string            `json:"resource_id" gorm:"size:64;index"`
	StatusCode   int               `json:"status_code"`
	NewValues    datatypes.JSONMap `json:"new_values"`
	IPAddress    string            `json:"ip_address" gorm:"size:45"`
	UserAgent    string            `json:"user_agent" gorm:"type:text"`
}

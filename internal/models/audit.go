package models

import "time"

// AuditLog records who changed what on reference data. One row per field
// change; rows are append-only.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	EntityType string    `gorm:"size:40;index" json:"entity_type"`
	EntityID   uint      `json:"entity_id"`
	Action     string    `gorm:"size:20" json:"action"`
	Field      string    `gorm:"size:60" json:"field,omitempty"`
	OldValue   string    `gorm:"size:255" json:"old_value,omitempty"`
	NewValue   string    `gorm:"size:255" json:"new_value,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// CallbackEvent is the audit trail of save deliveries processed from the
// document server. Webhook delivery is at-least-once; the trail makes a
// duplicate delivery visible without attempting de-duplication.
type CallbackEvent struct {
	EventID   uint64 `gorm:"primaryKey;autoIncrement"`
	ContextID uint64 `gorm:"not null;index"`
	ItemID    uint64 `gorm:"not null;index"`
	Status    int    `gorm:"not null"`
	UserID    uint64 `gorm:"not null;default:0"`
	Payload   datatypes.JSON
	CreatedAt time.Time
}

// TableName overrides the table name for CallbackEvent
func (CallbackEvent) TableName() string {
	return "callback_events"
}

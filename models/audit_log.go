package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions.
const (
	AuditPunchEdit      = "PUNCH_EDIT"
	AuditPunchDelete    = "PUNCH_DELETE"
	AuditPunchAutoClose = "PUNCH_AUTO_CLOSE"
	AuditOrphanAnnotate = "ORPHAN_ANNOTATE"
)

// AuditLog records a mutation of the punch log. PreviousState and NewState
// hold JSON snapshots of the punch.
type AuditLog struct {
	ID            string    `gorm:"type:char(36);primaryKey" json:"id"`
	Action        string    `gorm:"size:32;not null;index" json:"action"`
	PerformedBy   uint      `gorm:"index" json:"performed_by"` // 0 for the system
	TargetUser    uint      `gorm:"index;not null" json:"target_user"`
	PunchID       string    `gorm:"type:char(36);index" json:"punch_id"`
	PreviousState string    `gorm:"type:text" json:"previous_state,omitempty"`
	NewState      string    `gorm:"type:text" json:"new_state,omitempty"`
	Description   string    `gorm:"size:512" json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when missing.
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Punch types.
const (
	PunchIn  = "IN"
	PunchOut = "OUT"
)

// Punch sources. They are kept for audit and anomaly messages only.
const (
	SourceNFC    = "NFC"
	SourceManual = "MANUAL"
	SourceAdmin  = "ADMIN"
	SourceSystem = "SYSTEM"
)

// Punch is one IN or OUT event. PunchTime is stored in UTC.
type Punch struct {
	ID                string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index:idx_punch_user_time,priority:1" json:"user_id"`
	PunchType         string     `gorm:"size:3;not null" json:"punch_type"`
	PunchTime         time.Time  `gorm:"not null;index:idx_punch_user_time,priority:2" json:"punch_time"`
	Source            string     `gorm:"size:16;not null" json:"source"`
	Edited            bool       `gorm:"not null;default:false" json:"edited"`
	EditedBy          *uint      `json:"edited_by,omitempty"`
	EditedAt          *time.Time `json:"edited_at,omitempty"`
	EditReason        string     `gorm:"size:512" json:"edit_reason,omitempty"`
	OriginalPunchTime *time.Time `json:"original_punch_time,omitempty"`
	OriginalPunchType *string    `gorm:"size:3" json:"original_punch_type,omitempty"`
	Notes             string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PunchChanges lists the columns the edit and annotation paths may touch.
// Nil fields are left unchanged.
type PunchChanges struct {
	PunchTime         *time.Time
	PunchType         *string
	Notes             *string
	Edited            *bool
	EditedBy          *uint
	EditedAt          *time.Time
	EditReason        *string
	OriginalPunchTime *time.Time
	OriginalPunchType *string
}

// IsIn reports whether the punch opens a session.
func (p Punch) IsIn() bool { return p.PunchType == PunchIn }

// OppositeType returns the type that should follow t.
func OppositeType(t string) string {
	if t == PunchIn {
		return PunchOut
	}
	return PunchIn
}

// ValidPunchType reports whether t is IN or OUT.
func ValidPunchType(t string) bool {
	return t == PunchIn || t == PunchOut
}

// ValidSource reports whether s is a known provenance.
func ValidSource(s string) bool {
	switch s {
	case SourceNFC, SourceManual, SourceAdmin, SourceSystem:
		return true
	}
	return false
}

// BeforeCreate assigns an id and normalises the punch time to UTC.
func (p *Punch) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.PunchTime = p.PunchTime.UTC()
	return nil
}

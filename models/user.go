package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Roles recognised by the punch engine.
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// User is an employee together with the work profile the engine reads.
// Nil policy overrides fall back to the process-wide defaults.
type User struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	Username               string         `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email                  string         `gorm:"size:255" json:"email"`
	Role                   string         `gorm:"size:16;not null;default:employee" json:"role"`
	Active                 bool           `gorm:"not null;default:true;index" json:"active"`
	Timezone               string         `gorm:"size:64" json:"timezone"`
	DailyWorkTargetMinutes int            `gorm:"default:0" json:"daily_work_target_minutes"`
	WorkingDays            string         `gorm:"size:128" json:"working_days"` // comma separated weekday names
	BusinessHoursStart     *string        `gorm:"size:5" json:"business_hours_start,omitempty"`
	BusinessHoursEnd       *string        `gorm:"size:5" json:"business_hours_end,omitempty"`
	GraceMinutes           *int           `json:"grace_minutes,omitempty"`
	ShiftStartTime         *string        `gorm:"size:5" json:"shift_start_time,omitempty"`
	MinimumWorkHours       *float64       `json:"minimum_work_hours,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// WorkingDayNames splits the stored working days list.
func (u *User) WorkingDayNames() []string {
	if strings.TrimSpace(u.WorkingDays) == "" {
		return nil
	}
	parts := strings.Split(u.WorkingDays, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BeforeCreate fills the role for rows inserted without one.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleEmployee
	}
	return nil
}

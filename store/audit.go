package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/punchclock/models"
)

// AuditRepository persists audit entries.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository wraps db.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts entry.
func (r *AuditRepository) Record(ctx context.Context, entry models.AuditLog) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}

// ListForPunch returns the audit trail of one punch, oldest first.
func (r *AuditRepository) ListForPunch(ctx context.Context, punchID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).Where("punch_id = ?", punchID).Order("created_at ASC").Find(&logs).Error
	return logs, err
}

// ListForUser returns the latest audit entries about a user.
func (r *AuditRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).Where("target_user = ?", userID).Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
)

// PunchRepository stores punches. All times are written and queried in UTC.
type PunchRepository struct {
	db *gorm.DB
}

// NewPunchRepository wraps db.
func NewPunchRepository(db *gorm.DB) *PunchRepository {
	return &PunchRepository{db: db}
}

// FindPunchesInRange returns punches with start <= punch_time <= end, oldest first.
func (r *PunchRepository) FindPunchesInRange(ctx context.Context, userID uint, start, end time.Time) ([]models.Punch, error) {
	var punches []models.Punch
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND punch_time >= ? AND punch_time <= ?", userID, start.UTC(), end.UTC()).
		Order("punch_time ASC, created_at ASC").
		Find(&punches).Error
	return normalise(punches), err
}

// FindLastPunch returns the most recent punch or nil.
func (r *PunchRepository) FindLastPunch(ctx context.Context, userID uint) (*models.Punch, error) {
	var p models.Punch
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("punch_time DESC, created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.PunchTime = p.PunchTime.UTC()
	return &p, nil
}

// FindPunchByID returns a NotFoundError for unknown ids.
func (r *PunchRepository) FindPunchByID(ctx context.Context, id string) (*models.Punch, error) {
	var p models.Punch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &services.NotFoundError{Resource: "punch", ID: id}
	}
	if err != nil {
		return nil, err
	}
	p.PunchTime = p.PunchTime.UTC()
	return &p, nil
}

// InsertPunch creates the row; the model hook assigns the id.
func (r *PunchRepository) InsertPunch(ctx context.Context, punch *models.Punch) error {
	return r.db.WithContext(ctx).Create(punch).Error
}

// UpdatePunchFields applies changes. The original_* columns are written
// through COALESCE so a value captured by an earlier edit always survives.
func (r *PunchRepository) UpdatePunchFields(ctx context.Context, id string, changes models.PunchChanges) error {
	updates := map[string]interface{}{}
	if changes.PunchTime != nil {
		updates["punch_time"] = changes.PunchTime.UTC()
	}
	if changes.PunchType != nil {
		updates["punch_type"] = *changes.PunchType
	}
	if changes.Notes != nil {
		updates["notes"] = *changes.Notes
	}
	if changes.Edited != nil {
		updates["edited"] = *changes.Edited
	}
	if changes.EditedBy != nil {
		updates["edited_by"] = *changes.EditedBy
	}
	if changes.EditedAt != nil {
		updates["edited_at"] = changes.EditedAt.UTC()
	}
	if changes.EditReason != nil {
		updates["edit_reason"] = *changes.EditReason
	}
	if changes.OriginalPunchTime != nil {
		updates["original_punch_time"] = gorm.Expr("COALESCE(original_punch_time, ?)", changes.OriginalPunchTime.UTC())
	}
	if changes.OriginalPunchType != nil {
		updates["original_punch_type"] = gorm.Expr("COALESCE(original_punch_type, ?)", *changes.OriginalPunchType)
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Punch{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &services.NotFoundError{Resource: "punch", ID: id}
	}
	return nil
}

// DeletePunch removes the row permanently.
func (r *PunchRepository) DeletePunch(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Punch{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &services.NotFoundError{Resource: "punch", ID: id}
	}
	return nil
}

func normalise(punches []models.Punch) []models.Punch {
	for i := range punches {
		punches[i].PunchTime = punches[i].PunchTime.UTC()
	}
	return punches
}

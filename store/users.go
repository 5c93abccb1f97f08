package store

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
)

// UserRepository reads and seeds work profiles.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository wraps db.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindUser returns a NotFoundError for unknown ids.
func (r *UserRepository) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &services.NotFoundError{Resource: "user", ID: strconv.FormatUint(uint64(id), 10)}
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByUsername looks a user up by login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &services.NotFoundError{Resource: "user", ID: username}
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListActiveUsers returns active users ordered by id.
func (r *UserRepository) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&users).Error
	return users, err
}

// CreateUser inserts a profile.
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

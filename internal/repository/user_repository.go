package repository

import (
	"context"
	"fmt"

	"github.com/rowquest/rowquest-api/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return classify("users.create", fmt.Errorf("failed to create user: %w", err))
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, classify("users.get_by_id", fmt.Errorf("failed to get user by id %d: %w", id, err))
	}
	return &user, nil
}

// GetBySubject retrieves a user by the identity issued by the auth provider.
func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("subject = ?", subject).First(&user).Error; err != nil {
		return nil, classify("users.get_by_subject", fmt.Errorf("failed to get user by subject: %w", err))
	}
	return &user, nil
}

// UpdateAvatar stores the public URL of a user's avatar.
func (r *UserRepository) UpdateAvatar(ctx context.Context, userID uint, url string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("avatar_url", url)
	if result.Error != nil {
		return classify("users.update_avatar", fmt.Errorf("failed to update avatar: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return classify("users.update_avatar", fmt.Errorf("failed to update avatar for user %d: %w", userID, errNotFound))
	}
	return nil
}

// List retrieves all users ordered by ID.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, classify("users.list", fmt.Errorf("failed to list users: %w", err))
	}
	return users, nil
}

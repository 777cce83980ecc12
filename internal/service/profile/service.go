// Package profile manages user profile media.
package profile

import (
	"context"
	"fmt"
	"io"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/storage"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// DefaultMaxAvatarBytes is used when no upload limit is configured.
const DefaultMaxAvatarBytes = 5 << 20

var avatarContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID uint, url string) error
}

// Uploader stores objects and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, kind string, userID uint, filename, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// AvatarUpload describes an uploaded avatar image.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service handles avatar uploads.
type Service struct {
	userRepo UserRepository
	uploader Uploader
	maxBytes int64
	log      *logger.Logger
}

// NewService creates a new profile service.
func NewService(userRepo *repository.UserRepository, uploader *storage.Uploader, maxBytes int64, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(userRepo, uploader, maxBytes, log)
}

// NewServiceWithInterfaces creates a new profile service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(userRepo UserRepository, uploader Uploader, maxBytes int64, log *logger.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAvatarBytes
	}
	return &Service{
		userRepo: userRepo,
		uploader: uploader,
		maxBytes: maxBytes,
		log:      log,
	}
}

// MaxBytes returns the avatar size limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// UploadAvatar stores a new avatar for userID and returns the updated user. Users may only change
// their own avatar unless they are admins. The previous avatar object is removed best-effort.
func (s *Service) UploadAvatar(ctx context.Context, actor *models.User, userID uint, upload AvatarUpload) (*models.User, error) {
	if actor.ID != userID && actor.Role != models.RoleAdmin {
		return nil, apperrors.New(apperrors.Forbidden, "profile.avatar", "cannot change another user's avatar")
	}
	if !avatarContentTypes[upload.ContentType] {
		return nil, apperrors.New(apperrors.InvalidInput, "profile.avatar", fmt.Sprintf("unsupported content type %q", upload.ContentType))
	}
	if upload.Size <= 0 || upload.Size > s.maxBytes {
		return nil, apperrors.New(apperrors.InvalidInput, "profile.avatar", fmt.Sprintf("avatar must be between 1 and %d bytes", s.maxBytes))
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.uploader.Upload(ctx, storage.KindAvatar, userID, upload.Filename, upload.ContentType, io.LimitReader(upload.Body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := s.userRepo.UpdateAvatar(ctx, userID, url); err != nil {
		if delErr := s.uploader.Delete(ctx, url); delErr != nil {
			s.log.Warn().Err(delErr).Str("url", url).Msg("Failed to remove orphaned avatar")
		}
		return nil, fmt.Errorf("failed to save avatar: %w", err)
	}

	if user.AvatarURL != "" {
		if err := s.uploader.Delete(ctx, user.AvatarURL); err != nil {
			s.log.Warn().Err(err).Str("url", user.AvatarURL).Msg("Failed to remove previous avatar")
		}
	}

	s.log.Info().
		Uint("user_id", userID).
		Str("avatar_url", url).
		Msg("Avatar updated")

	user.AvatarURL = url
	return user, nil
}

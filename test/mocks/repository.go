package mocks

import (
	"context"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
)

// MockUserRepository is a simple mock for user repository
type MockUserRepository struct {
	GetByIDFunc      func(id uint) (*models.User, error)
	GetBySubjectFunc func(subject string) (*models.User, error)
	UpdateAvatarFunc func(userID uint, url string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, apperrors.New(apperrors.NotFound, "mock.users", "user not found")
}

func (m *MockUserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	if m.GetBySubjectFunc != nil {
		return m.GetBySubjectFunc(subject)
	}
	return nil, apperrors.New(apperrors.NotFound, "mock.users", "user not found")
}

func (m *MockUserRepository) UpdateAvatar(ctx context.Context, userID uint, url string) error {
	if m.UpdateAvatarFunc != nil {
		return m.UpdateAvatarFunc(userID, url)
	}
	return nil
}

// MockTeamRepository is a simple mock for team repository
type MockTeamRepository struct {
	GetByIDFunc func(id uint) (*models.Team, error)
}

func (m *MockTeamRepository) GetByID(ctx context.Context, id uint) (*models.Team, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, apperrors.New(apperrors.NotFound, "mock.teams", "team not found")
}

// MockWaypointRepository serves fixed routes from a map
type MockWaypointRepository struct {
	Routes map[string][]models.Waypoint
	Err    error
}

func (m *MockWaypointRepository) GetByRoute(ctx context.Context, route string) ([]models.Waypoint, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Routes[route], nil
}

// MockActivityRepository is a simple mock for activity repository
type MockActivityRepository struct {
	ListByUserFunc func(userID uint, filter repository.ActivityFilter) ([]models.Activity, error)
}

func (m *MockActivityRepository) ListByUser(ctx context.Context, userID uint, filter repository.ActivityFilter) ([]models.Activity, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(userID, filter)
	}
	return []models.Activity{}, nil
}

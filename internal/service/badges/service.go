// Package badges provides badge evaluation and management services.
package badges

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	prommetrics "github.com/rowquest/rowquest-api/internal/metrics"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/notify"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// BadgeRepository interface for badge operations.
type BadgeRepository interface {
	Create(ctx context.Context, badge *models.Badge) error
	Delete(ctx context.Context, id uint) error
	GetAll(ctx context.Context) ([]models.Badge, error)
	GetByID(ctx context.Context, id uint) (*models.Badge, error)
	GetApplicable(ctx context.Context, teamID *uint, requirementTypes ...string) ([]models.Badge, error)
	AwardBadge(ctx context.Context, userID, badgeID uint) (bool, error)
	GetUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
	GetUsersWithBadge(ctx context.Context, badgeID uint) ([]models.User, error)
	GetBadgeHoldersCount(ctx context.Context, badgeID uint) (int64, error)
}

// ActivityRepository interface for the activity aggregates badges are measured on.
type ActivityRepository interface {
	CountStrength(ctx context.Context, userID uint, strengthType string) (int64, error)
	SumRepetitions(ctx context.Context, userID uint, strengthType string) (int64, error)
}

// TeamRepository interface for team operations.
type TeamRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Team, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// Notifier announces earned badges.
type Notifier interface {
	SendBadgeEarned(ctx context.Context, e notify.BadgeEarned) error
}

// Service handles badge evaluation and awarding.
type Service struct {
	badgeRepo    BadgeRepository
	activityRepo ActivityRepository
	teamRepo     TeamRepository
	userRepo     UserRepository
	notifier     Notifier
	validate     *validator.Validate
	log          *logger.Logger
}

// NewService creates a new badge service.
func NewService(
	badgeRepo *repository.BadgeRepository,
	activityRepo *repository.ActivityRepository,
	teamRepo *repository.TeamRepository,
	userRepo *repository.UserRepository,
	notifier *notify.Client,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(badgeRepo, activityRepo, teamRepo, userRepo, notifier, log)
}

// NewServiceWithInterfaces creates a new badge service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	badgeRepo BadgeRepository,
	activityRepo ActivityRepository,
	teamRepo TeamRepository,
	userRepo UserRepository,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		badgeRepo:    badgeRepo,
		activityRepo: activityRepo,
		teamRepo:     teamRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		validate:     newValidator(),
		log:          log,
	}
}

// newValidator returns a validator that also understands the "requirement_type" tag.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("requirement_type", func(fl validator.FieldLevel) bool {
		return models.ValidRequirementType(fl.Field().String())
	})
	return v
}

// EvaluateActivity evaluates the badges a just-logged activity can unlock for its user and awards
// the ones now met. It returns the newly earned badges. A failure on one badge is logged and does
// not stop the others.
func (s *Service) EvaluateActivity(ctx context.Context, user *models.User, activity *models.Activity) ([]models.Badge, error) {
	team := s.userTeam(ctx, user)

	badges, err := s.badgeRepo.GetApplicable(ctx, user.TeamID, relevantRequirements(activity)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}

	return s.evaluate(ctx, &subject{user: user, team: team, activity: activity}, badges), nil
}

// EvaluateAll re-evaluates every cumulative badge for every user. Single-session badges need a
// triggering activity and are skipped. Returns the number of badges awarded.
func (s *Service) EvaluateAll(ctx context.Context) (int, error) {
	s.log.Info().Msg("Starting badge evaluation for all users")
	start := time.Now()

	users, err := s.userRepo.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get users")
		return 0, fmt.Errorf("failed to get users: %w", err)
	}

	teams := make(map[uint]*models.Team)
	awardsCount := 0

	for i := range users {
		if err := ctx.Err(); err != nil {
			return awardsCount, err
		}

		user := &users[i]

		var team *models.Team
		if user.TeamID != nil {
			if cached, ok := teams[*user.TeamID]; ok {
				team = cached
			} else {
				team = s.userTeam(ctx, user)
				teams[*user.TeamID] = team
			}
		}

		badges, err := s.badgeRepo.GetApplicable(ctx, user.TeamID, cumulativeRequirements...)
		if err != nil {
			s.log.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to get badges")
			continue
		}

		awardsCount += len(s.evaluate(ctx, &subject{user: user, team: team}, badges))
	}

	s.log.Info().
		Int("users_evaluated", len(users)).
		Int("badges_awarded", awardsCount).
		Dur("duration", time.Since(start)).
		Msg("Badge evaluation complete")

	return awardsCount, nil
}

func (s *Service) evaluate(ctx context.Context, sub *subject, badges []models.Badge) []models.Badge {
	cache := measurements{}
	var newlyEarned []models.Badge

	for i := range badges {
		badge := &badges[i]

		ok, err := s.qualifies(ctx, badge, sub, cache)
		if err != nil {
			s.log.Error().
				Err(err).
				Uint("user_id", sub.user.ID).
				Str("badge", badge.Name).
				Msg("Failed to evaluate badge")
			continue
		}
		if !ok {
			continue
		}

		awarded, err := s.AwardBadge(ctx, sub.user, sub.team, badge)
		if err != nil {
			s.log.Error().
				Err(err).
				Uint("user_id", sub.user.ID).
				Str("badge", badge.Name).
				Msg("Failed to award badge")
			continue
		}
		if awarded {
			newlyEarned = append(newlyEarned, *badge)
		}
	}

	return newlyEarned
}

// AwardBadge awards a badge to a user. It reports false when the user already held it.
func (s *Service) AwardBadge(ctx context.Context, user *models.User, team *models.Team, badge *models.Badge) (bool, error) {
	awarded, err := s.badgeRepo.AwardBadge(ctx, user.ID, badge.ID)
	if err != nil {
		return false, err
	}
	if !awarded {
		prommetrics.RecordBadgeAwardConflict(badge.Name)
		return false, nil
	}

	teamName := "none"
	if team != nil {
		teamName = team.Name
	}

	prommetrics.RecordBadgeAwarded(badge.Name, teamName)
	if count, err := s.badgeRepo.GetBadgeHoldersCount(ctx, badge.ID); err == nil {
		prommetrics.SetActiveBadgeHolders(badge.Name, int(count))
	}

	s.log.Info().
		Uint("user_id", user.ID).
		Str("username", user.Username).
		Str("badge", badge.Name).
		Msg("Badge awarded")

	if s.notifier != nil {
		err := s.notifier.SendBadgeEarned(ctx, notify.BadgeEarned{
			Username:  user.Username,
			TeamName:  teamName,
			BadgeName: badge.Name,
			Icon:      badge.Icon,
			Tier:      badge.Tier,
			AvatarURL: user.AvatarURL,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("badge", badge.Name).Msg("Failed to send badge notification")
		}
	}

	return true, nil
}

func (s *Service) userTeam(ctx context.Context, user *models.User) *models.Team {
	if user.TeamID == nil {
		return nil
	}
	team, err := s.teamRepo.GetByID(ctx, *user.TeamID)
	if err != nil {
		s.log.Warn().Err(err).Uint("team_id", *user.TeamID).Msg("Failed to get team for badge evaluation")
		return nil
	}
	return team
}

// CreateBadgeInput is the payload for defining a badge.
type CreateBadgeInput struct {
	Name             string  `json:"name" validate:"required,max=100"`
	Description      string  `json:"description" validate:"max=1000"`
	Icon             string  `json:"icon" validate:"max=50"`
	RequirementType  string  `json:"requirement_type" validate:"required,requirement_type"`
	RequirementValue float64 `json:"requirement_value" validate:"gt=0"`
	Tier             string  `json:"tier" validate:"omitempty,oneof=bronze silver gold"`
	TeamID           *uint   `json:"team_id"`
}

// CreateBadge defines a new badge. Admins may create any badge; managers only badges scoped to
// their own team.
func (s *Service) CreateBadge(ctx context.Context, actor *models.User, input CreateBadgeInput) (*models.Badge, error) {
	const op = "badges.create"

	if err := s.validate.Struct(&input); err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidInput, op, err)
	}
	if !canManage(actor, input.TeamID) {
		return nil, apperrors.New(apperrors.Forbidden, op, "not allowed to manage this badge")
	}

	tier := input.Tier
	if tier == "" {
		tier = models.TierBronze
	}

	badge := &models.Badge{
		Name:             input.Name,
		Description:      input.Description,
		Icon:             input.Icon,
		RequirementType:  input.RequirementType,
		RequirementValue: input.RequirementValue,
		Tier:             tier,
		TeamID:           input.TeamID,
	}
	if err := s.badgeRepo.Create(ctx, badge); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("badge_id", badge.ID).
		Str("badge", badge.Name).
		Str("requirement_type", badge.RequirementType).
		Uint("created_by", actor.ID).
		Msg("Badge created")

	return badge, nil
}

// DeleteBadge removes a badge and all of its awards.
func (s *Service) DeleteBadge(ctx context.Context, actor *models.User, badgeID uint) error {
	badge, err := s.badgeRepo.GetByID(ctx, badgeID)
	if err != nil {
		return err
	}
	if !canManage(actor, badge.TeamID) {
		return apperrors.New(apperrors.Forbidden, "badges.delete", "not allowed to manage this badge")
	}

	if err := s.badgeRepo.Delete(ctx, badgeID); err != nil {
		return err
	}

	prommetrics.ActiveBadgeHolders.DeleteLabelValues(badge.Name)
	s.log.Info().Uint("badge_id", badgeID).Str("badge", badge.Name).Uint("deleted_by", actor.ID).Msg("Badge deleted")
	return nil
}

func canManage(actor *models.User, teamID *uint) bool {
	switch {
	case actor == nil || !actor.CanManageBadges():
		return false
	case actor.Role == models.RoleAdmin:
		return true
	default:
		return teamID != nil && actor.TeamID != nil && *teamID == *actor.TeamID
	}
}

// GetUserBadges retrieves all badges earned by a user.
func (s *Service) GetUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	return s.badgeRepo.GetUserBadges(ctx, userID)
}

// GetBadgeCatalog retrieves all available badges.
func (s *Service) GetBadgeCatalog(ctx context.Context) ([]models.Badge, error) {
	return s.badgeRepo.GetAll(ctx)
}

// GetBadgeByID retrieves a badge by its ID.
func (s *Service) GetBadgeByID(ctx context.Context, badgeID uint) (*models.Badge, error) {
	return s.badgeRepo.GetByID(ctx, badgeID)
}

// GetBadgeHolders retrieves users who have earned a specific badge.
func (s *Service) GetBadgeHolders(ctx context.Context, badgeID uint) ([]models.User, error) {
	return s.badgeRepo.GetUsersWithBadge(ctx, badgeID)
}

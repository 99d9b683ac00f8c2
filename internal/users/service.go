package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finxan/finxan-backend/pkg/auth"
	"github.com/finxan/finxan-backend/pkg/db"
	"github.com/finxan/finxan-backend/pkg/db/models"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type usersRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateDisplayName(ctx context.Context, id uuid.UUID, name string) error
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs Preferences) error
}

// Service resolves Firebase identities into tenants and manages their settings.
type Service interface {
	Resolve(ctx context.Context, identity auth.Identity) (*models.User, error)
	Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name string) (*UserDTO, error)
	Preferences(ctx context.Context, userID uuid.UUID) (Preferences, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, patch PreferencesPatch) (Preferences, error)
}

type service struct {
	repo usersRepository
	now  func() time.Time
}

func NewService(repo usersRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Resolve finds the user for a verified identity, creating it on first sight.
func (s *service) Resolve(ctx context.Context, identity auth.Identity) (*models.User, error) {
	uid := strings.TrimSpace(identity.UID)
	if uid == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing uid")
	}

	user, err := s.repo.FindByFirebaseUID(ctx, uid)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	prefs := DefaultPreferences()
	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &models.User{
		FirebaseUID:        uid,
		Email:              identity.Email,
		DisplayName:        displayName(identity),
		NotifyLowStock:     prefs.LowStock,
		NotifyNewFiles:     prefs.NewFiles,
		NotifyWeeklyReport: prefs.WeeklyReport,
		LastLoginAt:        &now,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// another request created it first
			user, findErr := s.repo.FindByFirebaseUID(ctx, uid)
			if findErr == nil {
				return user, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return created, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, name string) (*UserDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Name is required")
	}
	if err := s.repo.UpdateDisplayName(ctx, userID, name); err != nil {
		return nil, mapNotFound(err, "update profile")
	}
	return s.Profile(ctx, userID)
}

func (s *service) Preferences(ctx context.Context, userID uuid.UUID) (Preferences, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	return PreferencesFromModel(user), nil
}

// UpdatePreferences overwrites all three toggles; omitted ones reset to their defaults.
func (s *service) UpdatePreferences(ctx context.Context, userID uuid.UUID, patch PreferencesPatch) (Preferences, error) {
	prefs := patch.Resolve()
	if err := s.repo.UpdatePreferences(ctx, userID, prefs); err != nil {
		return Preferences{}, mapNotFound(err, "update notification preferences")
	}
	return prefs, nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, "load user")
	}
	return user, nil
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func displayName(identity auth.Identity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	if at := strings.Index(identity.Email, "@"); at > 0 {
		return identity.Email[:at]
	}
	return identity.Email
}

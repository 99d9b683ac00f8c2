package users

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/google/uuid"
)

// UserDTO is the transport shape for the authenticated profile.
type UserDTO struct {
	ID          uuid.UUID   `json:"id"`
	FirebaseUID string      `json:"firebaseUid"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Preferences Preferences `json:"notificationPreferences"`
	LastLoginAt *time.Time  `json:"lastLogin,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Preferences are the per-user notification toggles.
type Preferences struct {
	LowStock     bool `json:"lowStock"`
	NewFiles     bool `json:"newFiles"`
	WeeklyReport bool `json:"weeklyReport"`
}

// PreferencesPatch carries optional toggles; nil fields fall back to defaults.
type PreferencesPatch struct {
	LowStock     *bool `json:"lowStock"`
	NewFiles     *bool `json:"newFiles"`
	WeeklyReport *bool `json:"weeklyReport"`
}

// DefaultPreferences is what a new user starts with.
func DefaultPreferences() Preferences {
	return Preferences{LowStock: true, NewFiles: true, WeeklyReport: false}
}

// Resolve fills unset fields with the defaults.
func (p PreferencesPatch) Resolve() Preferences {
	out := DefaultPreferences()
	if p.LowStock != nil {
		out.LowStock = *p.LowStock
	}
	if p.NewFiles != nil {
		out.NewFiles = *p.NewFiles
	}
	if p.WeeklyReport != nil {
		out.WeeklyReport = *p.WeeklyReport
	}
	return out
}

func PreferencesFromModel(u *models.User) Preferences {
	if u == nil {
		return DefaultPreferences()
	}
	return Preferences{
		LowStock:     u.NotifyLowStock,
		NewFiles:     u.NotifyNewFiles,
		WeeklyReport: u.NotifyWeeklyReport,
	}
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		FirebaseUID: u.FirebaseUID,
		Email:       u.Email,
		Name:        u.DisplayName,
		Preferences: PreferencesFromModel(u),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

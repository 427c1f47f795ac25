package models

import (
	"time"

	"soomhub/market/internal/utils"
)

const (
	LocaleEN = "en"
	LocaleAR = "ar"
)

// ValidLocale reports whether locale is one the marketplace serves.
func ValidLocale(locale string) bool {
	return locale == LocaleEN || locale == LocaleAR
}

// User represents a user in the system.
type User struct {
	Base         `bson:",inline"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	Phone        string `bson:"phone,omitempty" json:"phone,omitempty"`
	Locale       string `bson:"locale" json:"locale"`
	PasswordHash string `bson:"password" json:"-"` // Store hash, not plaintext
	IsAdmin      bool   `bson:"is_admin" json:"is_admin"`
	Timestamps   `bson:",inline"`
	Deleted      bool `bson:"deleted" json:"-"` // Soft delete flag
}

// PreferredLocale falls back to def when the user never picked a locale.
func (u *User) PreferredLocale(def string) string {
	if ValidLocale(u.Locale) {
		return u.Locale
	}
	return def
}

// UserProfile is what other users may see about a user.
type UserProfile struct {
	ID        utils.SixID `json:"id"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
}

package model

import (
	"strings"
	"time"
)

// Role describes who the user is; it only affects defaults in the UI.
type Role string

// These constants refer to the roles supported by the app.
const (
	RoleStudent  Role = "student"
	RoleEmployee Role = "employee"
)

// Theme is the preferred color theme.
type Theme string

// These constants refer to the themes supported by the app.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// NotificationPreferences selects the channels a user wants to be notified on.
type NotificationPreferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// Preferences holds per-user settings.
type Preferences struct {
	Theme         Theme                   `json:"theme"`
	Notifications NotificationPreferences `json:"notifications"`
}

// DefaultPreferences returns the preferences assigned to a newly seen user.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme: ThemeLight,
		Notifications: NotificationPreferences{
			Email: true,
			SMS:   false,
			Push:  true,
		},
	}
}

// User is the local view of an authenticated identity.
type User struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	CreatedAt   time.Time   `json:"createdAt"`
	Preferences Preferences `json:"preferences"`
}

// NewUser derives a User from an identity, naming it after the local part of the email.
func NewUser(id, email string, now time.Time) User {
	name, _, _ := strings.Cut(email, "@")

	return User{
		ID:          id,
		Email:       email,
		Name:        name,
		Role:        RoleStudent,
		CreatedAt:   now,
		Preferences: DefaultPreferences(),
	}
}

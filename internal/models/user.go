package models

import "time"

// Role is the portal-wide role a user holds. The concrete role to
// capability mapping lives in the policy package; nothing in the workflow
// services branches on Role directly.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
	RoleClient   Role = "client"
)

// User is a portal account (staff or client).
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Username     string `gorm:"size:150;index" json:"username"`
	FirstName    string `gorm:"size:150" json:"first_name,omitempty"`
	LastName     string `gorm:"size:150" json:"last_name,omitempty"`
	PasswordHash string `gorm:"size:255" json:"-"`

	Role Role `gorm:"size:20;not null;default:'client'" json:"role"`
	// No column default: a default of true would be substituted for the
	// zero value on insert, silently reactivating a user created with
	// IsActive false. Deactivation gates authorization, so creation
	// sites set the flag explicitly.
	IsActive bool `json:"is_active"`
}

// IsStaff reports whether the user belongs to the internal team.
func (u *User) IsStaff() bool {
	switch u.Role {
	case RoleOwner, RoleAdmin, RoleHR, RoleEmployee:
		return true
	}
	return false
}

// DisplayName returns the best human-readable name available.
func (u *User) DisplayName() string {
	if u.FirstName != "" || u.LastName != "" {
		if u.FirstName == "" {
			return u.LastName
		}
		if u.LastName == "" {
			return u.FirstName
		}
		return u.FirstName + " " + u.LastName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

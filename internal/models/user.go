package models

import (
	"sort"
	"strings"
	"time"
)

// User is an authenticated principal. Credential issuance and password
// storage live in the identity provider; this table only carries the profile
// fields the workflow guards inspect.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Email       string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role        Role      `gorm:"size:32;not null" json:"role"`
	IsApproved  bool      `gorm:"not null;default:false" json:"is_approved"`
	Department  string    `gorm:"size:255" json:"department"`
	Title       string    `gorm:"size:255" json:"title"`
	Degree      string    `gorm:"size:255" json:"degree"`
	Institution string    `gorm:"size:255" json:"institution"`
	Phone       string    `gorm:"size:64" json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileMissingFields enumerates the profile fields the user still has to
// fill before the workflow accepts their actions. Reviewing roles need the
// academic credentials that end up on the rendered review document.
func (u User) ProfileMissingFields() []string {
	var missing []string

	required := map[string]string{
		"name":  u.Name,
		"email": u.Email,
	}
	switch {
	case u.Role.IsReviewingRole():
		required["department"] = u.Department
		required["title"] = u.Title
		required["degree"] = u.Degree
	case u.Role == RoleStudent:
		required["department"] = u.Department
	}

	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	sort.Strings(missing)
	return missing
}

// ProfileComplete reports whether the user's profile satisfies the workflow
// requirements for their role.
func (u User) ProfileComplete() bool {
	return len(u.ProfileMissingFields()) == 0
}

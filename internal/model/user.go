package model

import "strings"

type UserRole string

const (
	Student    UserRole = "student"
	Tutor      UserRole = "tutor"
	Admin      UserRole = "admin"
	SuperAdmin UserRole = "super_admin"
)

// ParseRole normalises free-text role names coming from tokens or the users
// table. Unknown values map to Student.
func ParseRole(s string) UserRole {
	r := strings.ToLower(strings.TrimSpace(s))
	r = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(r)
	switch r {
	case "superadmin":
		return SuperAdmin
	case "admin", "administrator":
		return Admin
	case "tutor", "teacher", "instructor":
		return Tutor
	default:
		return Student
	}
}

func (r UserRole) IsAdmin() bool {
	return r == Admin || r == SuperAdmin
}

// swagger:model User
type User struct {
	BaseModel
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role     UserRole `gorm:"size:32;default:'student'" json:"role"`
	Disabled bool     `gorm:"default:false" json:"disabled"`
}

func (User) TableName() string {
	return "users"
}

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	UserID uint
	Role   UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

// CanAuthor reports whether the actor may create courses at all.
func (a Actor) CanAuthor() bool {
	return a.Role == Tutor || a.Role.IsAdmin()
}

package models

import "time"

// User is the acting identity threaded through authorization checks. It is
// never substituted into any process-wide state.
type User struct {
	UserID    uint64 `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:255;not null"`
	Email     string `gorm:"size:255;uniqueIndex"`
	Lang      string `gorm:"size:10;not null;default:en"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// Roles understood by the capability checks.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleManager = "manager"
)

// RoleAssignment binds a user to a role on a context. ContextID zero is a
// site-wide assignment.
type RoleAssignment struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"not null;index"`
	ContextID uint64 `gorm:"not null;index"`
	Role      string `gorm:"size:50;not null"`
}

// TableName overrides the table name for RoleAssignment
func (RoleAssignment) TableName() string {
	return "role_assignments"
}

package models

import "time"

// Submission is the assignment submission record a stored file belongs to.
// GroupID zero means an individual submission.
type Submission struct {
	SubmissionID uint64 `gorm:"primaryKey;autoIncrement"`
	ContextID    uint64 `gorm:"not null;index"`
	UserID       uint64 `gorm:"not null;index"`
	GroupID      uint64 `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name for Submission
func (Submission) TableName() string {
	return "submissions"
}

// GroupMember maps users into submission groups.
type GroupMember struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	GroupID uint64 `gorm:"not null;index:idx_group_member,unique"`
	UserID  uint64 `gorm:"not null;index:idx_group_member,unique"`
}

// TableName overrides the table name for GroupMember
func (GroupMember) TableName() string {
	return "group_members"
}

// Package authz answers capability questions about users acting on
// submissions and assignment contexts.
package authz

import (
	"errors"

	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/models"
)

// ErrUnknownUser is returned when a user id has no account record.
var ErrUnknownUser = errors.New("unknown user")

// ResolveUser loads the account for a user id.
func ResolveUser(db *gorm.DB, userID uint64) (*models.User, error) {
	var user models.User
	err := db.Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CanEditSubmission reports whether the user may write to the submission:
// the owner always can, and for group submissions any group member can.
func CanEditSubmission(db *gorm.DB, sub *models.Submission, userID uint64) (bool, error) {
	if sub == nil {
		return false, nil
	}
	if sub.UserID == userID {
		return true, nil
	}
	if sub.GroupID == 0 {
		return false, nil
	}

	var count int64
	err := db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", sub.GroupID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CanManageContext reports whether the user holds a teacher or manager role
// on the context. A role assigned to context 0 applies site-wide.
func CanManageContext(db *gorm.DB, contextID, userID uint64) (bool, error) {
	return hasRole(db, userID, contextID, models.RoleTeacher, models.RoleManager)
}

// CanGrade is the capability to open another user's submission for review.
// It currently coincides with context management.
func CanGrade(db *gorm.DB, contextID, userID uint64) (bool, error) {
	return CanManageContext(db, contextID, userID)
}

// HasStudentRole reports whether the user is enrolled as a student on the
// context. Used to force view-only access on pdf forms for students.
func HasStudentRole(db *gorm.DB, contextID, userID uint64) (bool, error) {
	return hasRole(db, userID, contextID, models.RoleStudent)
}

func hasRole(db *gorm.DB, userID, contextID uint64, roles ...string) (bool, error) {
	var count int64
	err := db.Model(&models.RoleAssignment{}).
		Where("user_id = ? AND context_id IN ? AND role IN ?",
			userID, []uint64{contextID, 0}, roles).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

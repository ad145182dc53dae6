// db.go
//
// Part of docsubmit, the document submission editing gateway.
//
// docsubmit is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version. docsubmit is distributed in the hope that it
// will be useful, but WITHOUT ANY WARRANTY; without even the implied warranty
// of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.

package helpers

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openlms/docsubmit/internal/models"
)

// NewTestDB creates an in-memory SQLite database with the full schema.
func NewTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.RoleAssignment{},
		&models.Submission{},
		&models.GroupMember{},
		&models.StoredFile{},
		&models.AssignConfig{},
		&models.CallbackEvent{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestUser creates a user account for test scenarios.
func CreateTestUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	user := models.User{Name: name, Email: email, Lang: "en"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	return &user
}

// AssignRole binds a role to a user on a context.
func AssignRole(t *testing.T, db *gorm.DB, userID, contextID uint64, role string) {
	assignment := models.RoleAssignment{UserID: userID, ContextID: contextID, Role: role}
	if err := db.Create(&assignment).Error; err != nil {
		t.Fatalf("Failed to assign role %s: %v", role, err)
	}
}

// CreateTestSubmission creates a submission record owned by the user.
func CreateTestSubmission(t *testing.T, db *gorm.DB, contextID, userID, groupID uint64) *models.Submission {
	sub := models.Submission{ContextID: contextID, UserID: userID, GroupID: groupID}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}
	return &sub
}

package templatekey_test

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/templatekey"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.AutoMigrate(&models.AssignConfig{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func TestResolveContextID(t *testing.T) {
	db := setupTestDB(t)

	if err := templatekey.Register(db, 7, "abc"); err != nil {
		t.Fatalf("Failed to register key: %v", err)
	}

	contextID, err := templatekey.ResolveContextID(db, "abc")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if contextID != 7 {
		t.Errorf("Expected context 7, got %d", contextID)
	}
}

// TestResolvePrefixCollision verifies that a key must match the stored prefix
// exactly: "abc" must not resolve through a record made for "abcd".
func TestResolvePrefixCollision(t *testing.T) {
	db := setupTestDB(t)

	if err := templatekey.Register(db, 7, "abcd"); err != nil {
		t.Fatalf("Failed to register key: %v", err)
	}

	contextID, err := templatekey.ResolveContextID(db, "abc")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if contextID != 0 {
		t.Errorf("Expected not-found (0) for prefix collision, got %d", contextID)
	}
}

func TestResolveUnknownKey(t *testing.T) {
	db := setupTestDB(t)

	contextID, err := templatekey.ResolveContextID(db, "nosuchkey")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if contextID != 0 {
		t.Errorf("Expected not-found (0), got %d", contextID)
	}
}

func TestRegisterReplacesPreviousKey(t *testing.T) {
	db := setupTestDB(t)

	if err := templatekey.Register(db, 7, "first"); err != nil {
		t.Fatalf("Failed to register first key: %v", err)
	}
	if err := templatekey.Register(db, 7, "second"); err != nil {
		t.Fatalf("Failed to register second key: %v", err)
	}

	contextID, _ := templatekey.ResolveContextID(db, "first")
	if contextID != 0 {
		t.Errorf("Expected stale key to be gone, got context %d", contextID)
	}

	contextID, _ = templatekey.ResolveContextID(db, "second")
	if contextID != 7 {
		t.Errorf("Expected context 7 for replacement key, got %d", contextID)
	}
}

func TestNewKeyIsRandom(t *testing.T) {
	if templatekey.NewKey() == templatekey.NewKey() {
		t.Error("Expected distinct keys")
	}
}

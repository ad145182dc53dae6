// Package templatekey maps an ephemeral template key to its owning context.
// The key exists before any assignment instance does, so resolution failing
// is a normal state during template authoring, not an error.
package templatekey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/openlms/docsubmit/internal/models"
	"gorm.io/gorm"
)

const configName = "tmplkey"

// NewKey returns a fresh random template key.
func NewKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Register persists the "<key>_<contextid>" record in the owning context's
// plugin configuration, replacing any previous key for that context.
func Register(db *gorm.DB, contextID uint64, key string) error {
	value := fmt.Sprintf("%s_%d", key, contextID)

	var existing models.AssignConfig
	err := db.Where("context_id = ? AND plugin = ? AND name = ?",
		contextID, models.ComponentName, configName).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return db.Create(&models.AssignConfig{
			ContextID: contextID,
			Plugin:    models.ComponentName,
			Name:      configName,
			Value:     value,
		}).Error
	}
	if err != nil {
		return err
	}

	existing.Value = value
	return db.Save(&existing).Error
}

// ResolveContextID looks up the context owning the given key. The stored
// value is found by prefix search and then narrowed to an exact prefix match,
// so a shorter key never resolves through a longer key's record. Returns
// (0, nil) when no record matches; callers treat that as "no context
// available yet".
func ResolveContextID(db *gorm.DB, key string) (uint64, error) {
	if key == "" {
		return 0, nil
	}

	var records []models.AssignConfig
	err := db.Where("plugin = ? AND name = ? AND value LIKE ?",
		models.ComponentName, configName, key+"%").Find(&records).Error
	if err != nil {
		return 0, err
	}

	for _, record := range records {
		parts := strings.SplitN(record.Value, "_", 2)
		if len(parts) != 2 || parts[0] != key {
			continue
		}

		contextID, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}
		return contextID, nil
	}

	return 0, nil
}

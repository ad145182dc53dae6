package models

import "time"

// AssignConfig is a per-context plugin configuration entry, the equivalent of
// the LMS assign_plugin_config table. The template-key registry persists its
// "<key>_<contextid>" records here under the name "tmplkey"; the chosen
// submission format is stored under "format".
type AssignConfig struct {
	ConfigID  uint64 `gorm:"primaryKey;autoIncrement"`
	ContextID uint64 `gorm:"not null;index:idx_assign_config,unique"`
	Plugin    string `gorm:"size:50;not null;default:docsubmit;index:idx_assign_config,unique"`
	Name      string `gorm:"size:50;not null;index:idx_assign_config,unique"`
	Value     string `gorm:"size:255;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for AssignConfig
func (AssignConfig) TableName() string {
	return "assign_plugin_configs"
}

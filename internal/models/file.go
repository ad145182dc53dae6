package models

import (
	"path/filepath"
	"strings"
	"time"
)

// File areas a stored file can live in. Submission files hold the student's
// working document, template/initial hold the per-context form template and
// its converted fillable rendition, draft is transient staging during a
// content replace.
const (
	AreaSubmission = "submission_file"
	AreaTemplate   = "submission_template"
	AreaInitial    = "submission_initial"
	AreaDraft      = "submission_draft"
)

// ComponentName identifies this plugin's rows in the stored_files table.
const ComponentName = "docsubmit"

// StoredFile is the metadata row for a named, versioned binary blob. The
// content bytes live in the blob store under BlobKey.
type StoredFile struct {
	FileID       uint64 `gorm:"primaryKey;autoIncrement"`
	ContextID    uint64 `gorm:"not null;index:idx_file_area"`
	Component    string `gorm:"size:100;not null;default:docsubmit"`
	FileArea     string `gorm:"size:50;not null;index:idx_file_area"`
	ItemID       uint64 `gorm:"not null;index:idx_file_area"`
	Filename     string `gorm:"size:100;not null"`
	BlobKey      string `gorm:"size:64;not null"`
	UserID       uint64 `gorm:"not null;default:0"`
	TimeCreated  time.Time
	TimeModified time.Time
}

// TableName overrides the table name for StoredFile
func (StoredFile) TableName() string {
	return "stored_files"
}

// Extension returns the lowercase filename extension without the dot.
func (f *StoredFile) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Filename), "."))
}

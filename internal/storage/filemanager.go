// Package storage implements the versioned file store behind submissions,
// form templates and their converted fillable renditions. Metadata rows live
// in the database, content bytes in a pluggable blob store. Content replace
// goes through a transient draft blob so that a failed fetch never corrupts
// the original file.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/openlms/docsubmit/data"
	"github.com/openlms/docsubmit/internal/models"
	"gorm.io/gorm"
)

// maxFilenameLen bounds stored filenames. The numeric item id and the
// extension suffix must always survive intact.
const maxFilenameLen = 100

// pathLocale maps user languages to blank-document asset locales.
var pathLocale = map[string]string{
	"en":    "en-US",
	"de":    "de-DE",
	"es":    "es-ES",
	"fr":    "fr-FR",
	"ja":    "ja-JP",
	"ru":    "ru-RU",
	"zh_cn": "zh-CN",
}

// FileManager is the file store facade used by the editor config builder,
// the callback handler and the download handler.
type FileManager struct {
	DB         *gorm.DB
	Blobs      BlobStore
	HTTPClient *http.Client
}

// NewFileManager wires a manager with a default HTTP client for the content
// fetches performed during Write.
func NewFileManager(db *gorm.DB, blobs BlobStore) *FileManager {
	return &FileManager{
		DB:         db,
		Blobs:      blobs,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Get returns the most recent submission-area file for the item, nil when
// absent.
func (fm *FileManager) Get(ctx context.Context, contextID, itemID uint64) (*models.StoredFile, error) {
	return fm.getArea(ctx, contextID, models.AreaSubmission, itemID)
}

// GetTemplate returns the context's form template file, nil when absent.
func (fm *FileManager) GetTemplate(ctx context.Context, contextID uint64) (*models.StoredFile, error) {
	return fm.getArea(ctx, contextID, models.AreaTemplate, 0)
}

// GetInitial returns the context's converted fillable rendition, nil when
// absent.
func (fm *FileManager) GetInitial(ctx context.Context, contextID uint64) (*models.StoredFile, error) {
	return fm.getArea(ctx, contextID, models.AreaInitial, 0)
}

func (fm *FileManager) getArea(ctx context.Context, contextID uint64, area string, itemID uint64) (*models.StoredFile, error) {
	var file models.StoredFile
	err := fm.DB.WithContext(ctx).
		Where("context_id = ? AND component = ? AND file_area = ? AND item_id = ?",
			contextID, models.ComponentName, area, itemID).
		Order("file_id DESC").
		First(&file).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Create materializes a new submission-area file seeded from the blank
// document asset for the owner's language.
func (fm *FileManager) Create(ctx context.Context, contextID, itemID uint64, ext string, ownerID uint64, lang string) (*models.StoredFile, error) {
	content, err := SeedContent(lang, ext)
	if err != nil {
		return nil, fmt.Errorf("no blank document asset for extension %q: %w", ext, err)
	}
	return fm.createArea(ctx, contextID, models.AreaSubmission, itemID, ext, ownerID, content)
}

// CreateTemplate materializes the context's form template file from the blank
// document asset.
func (fm *FileManager) CreateTemplate(ctx context.Context, contextID uint64, ext string, ownerID uint64, lang string) (*models.StoredFile, error) {
	content, err := SeedContent(lang, ext)
	if err != nil {
		return nil, fmt.Errorf("no blank document asset for extension %q: %w", ext, err)
	}
	return fm.createArea(ctx, contextID, models.AreaTemplate, 0, ext, ownerID, content)
}

// CreateInitial materializes the context's fillable rendition from a remote
// URL, typically the conversion service's result. PDF payloads are validated
// before they are persisted.
func (fm *FileManager) CreateInitial(ctx context.Context, contextID uint64, ext string, ownerID uint64, sourceURL string) (*models.StoredFile, error) {
	content, err := fm.fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if ext == "pdf" {
		if err := ValidatePDF(content); err != nil {
			return nil, fmt.Errorf("converted artifact is not a valid PDF: %w", err)
		}
	}
	return fm.createArea(ctx, contextID, models.AreaInitial, 0, ext, ownerID, content)
}

func (fm *FileManager) createArea(ctx context.Context, contextID uint64, area string, itemID uint64, ext string, ownerID uint64, content []byte) (*models.StoredFile, error) {
	filename, err := buildFilename(itemID, ext)
	if err != nil {
		return nil, err
	}

	blobKey := uuid.New().String()
	if err := fm.Blobs.Put(ctx, blobKey, content); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	now := time.Now()
	file := models.StoredFile{
		ContextID:    contextID,
		Component:    models.ComponentName,
		FileArea:     area,
		ItemID:       itemID,
		Filename:     filename,
		BlobKey:      blobKey,
		UserID:       ownerID,
		TimeCreated:  now,
		TimeModified: now,
	}
	if err := fm.DB.WithContext(ctx).Create(&file).Error; err != nil {
		_ = fm.Blobs.Delete(ctx, blobKey)
		return nil, err
	}

	return &file, nil
}

// Write atomically replaces a file's content with the bytes fetched from
// sourceURL. The fetch lands in a draft-area temp record first and is only
// swapped in once complete, so the original content stays untouched on any
// failure. The URL originates from the external document server and is
// treated as untrusted input.
func (fm *FileManager) Write(ctx context.Context, file *models.StoredFile, sourceURL string) error {
	content, err := fm.fetch(ctx, sourceURL)
	if err != nil {
		return err
	}
	if file.FileArea == models.AreaInitial && file.Extension() == "pdf" {
		if err := ValidatePDF(content); err != nil {
			return fmt.Errorf("converted artifact is not a valid PDF: %w", err)
		}
	}

	draftKey := uuid.New().String()
	if err := fm.Blobs.Put(ctx, draftKey, content); err != nil {
		return fmt.Errorf("failed to store draft blob: %w", err)
	}

	draft := models.StoredFile{
		ContextID:    file.ContextID,
		Component:    file.Component,
		FileArea:     models.AreaDraft,
		ItemID:       file.ItemID,
		Filename:     file.Filename,
		BlobKey:      draftKey,
		UserID:       file.UserID,
		TimeCreated:  file.TimeCreated,
		TimeModified: time.Now(),
	}
	if err := fm.DB.WithContext(ctx).Create(&draft).Error; err != nil {
		_ = fm.Blobs.Delete(ctx, draftKey)
		return err
	}

	oldKey := file.BlobKey
	file.BlobKey = draftKey
	file.TimeModified = draft.TimeModified
	err = fm.DB.WithContext(ctx).Model(&models.StoredFile{}).
		Where("file_id = ?", file.FileID).
		Updates(map[string]interface{}{
			"blob_key":      draftKey,
			"time_modified": draft.TimeModified,
		}).Error
	if err != nil {
		file.BlobKey = oldKey
		_ = fm.DB.WithContext(ctx).Delete(&draft).Error
		_ = fm.Blobs.Delete(ctx, draftKey)
		return err
	}

	// Swap complete; drop the superseded blob and the draft record.
	_ = fm.Blobs.Delete(ctx, oldKey)
	_ = fm.DB.WithContext(ctx).Delete(&draft).Error

	return nil
}

// CopyToInitial duplicates a written template file into the initial area,
// used for non-form template formats that need no conversion.
func (fm *FileManager) CopyToInitial(ctx context.Context, file *models.StoredFile) error {
	content, err := fm.Content(ctx, file)
	if err != nil {
		return err
	}

	existing, err := fm.GetInitial(ctx, file.ContextID)
	if err != nil {
		return err
	}

	if existing == nil {
		_, err = fm.createArea(ctx, file.ContextID, models.AreaInitial, 0, file.Extension(), file.UserID, content)
		return err
	}

	newKey := uuid.New().String()
	if err := fm.Blobs.Put(ctx, newKey, content); err != nil {
		return err
	}
	oldKey := existing.BlobKey
	err = fm.DB.WithContext(ctx).Model(&models.StoredFile{}).
		Where("file_id = ?", existing.FileID).
		Updates(map[string]interface{}{
			"blob_key":      newKey,
			"time_modified": time.Now(),
		}).Error
	if err != nil {
		_ = fm.Blobs.Delete(ctx, newKey)
		return err
	}
	_ = fm.Blobs.Delete(ctx, oldKey)

	return nil
}

// Content returns the file's bytes from the blob store.
func (fm *FileManager) Content(ctx context.Context, file *models.StoredFile) ([]byte, error) {
	return fm.Blobs.Get(ctx, file.BlobKey)
}

// Delete removes all submission-area files for the item. Idempotent on
// missing files.
func (fm *FileManager) Delete(ctx context.Context, contextID, itemID uint64) error {
	var files []models.StoredFile
	err := fm.DB.WithContext(ctx).
		Where("context_id = ? AND component = ? AND file_area = ? AND item_id = ?",
			contextID, models.ComponentName, models.AreaSubmission, itemID).
		Find(&files).Error
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := fm.DB.WithContext(ctx).Delete(&f).Error; err != nil {
			return err
		}
		_ = fm.Blobs.Delete(ctx, f.BlobKey)
	}

	return nil
}

func (fm *FileManager) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid content URL: %w", err)
	}

	resp, err := fm.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content fetch returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// SeedContent returns the blank document asset for the language and
// extension, falling back to the en-US asset for unknown locales.
func SeedContent(lang, ext string) ([]byte, error) {
	locale, ok := pathLocale[lang]
	if !ok {
		locale = "en-US"
	}

	content, err := data.NewDocs.ReadFile("newdocs/" + locale + "/new." + ext)
	if err != nil && locale != "en-US" {
		content, err = data.NewDocs.ReadFile("newdocs/en-US/new." + ext)
	}
	return content, err
}

func buildFilename(itemID uint64, ext string) (string, error) {
	filename := strconv.FormatUint(itemID, 10) + "." + ext
	if len(filename) > maxFilenameLen {
		return "", fmt.Errorf("filename %q exceeds %d characters", filename, maxFilenameLen)
	}
	return filename, nil
}

// Package editor builds the configuration handed to the external document
// editor: document identity, access URLs, permissions and customization.
package editor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/authz"
	"github.com/openlms/docsubmit/internal/config"
	"github.com/openlms/docsubmit/internal/doctoken"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/storage"
	"github.com/openlms/docsubmit/internal/types"
)

// defaultTemplateFilename is shown for a template that has not been saved yet.
const defaultTemplateFilename = "form_template.pdf"

// Config is the transient structure returned to the client. Never persisted,
// rebuilt per request.
type Config struct {
	Document     Document     `json:"document"`
	DocumentType string       `json:"documentType"`
	EditorConfig EditorConfig `json:"editorConfig"`
	Token        string       `json:"token,omitempty"`
}

type Document struct {
	FileType    string      `json:"fileType"`
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Permissions Permissions `json:"permissions"`
}

type Permissions struct {
	Edit      bool `json:"edit"`
	FillForms bool `json:"fillForms"`
	Protect   bool `json:"protect"`
}

type EditorConfig struct {
	User          UserInfo      `json:"user"`
	Lang          string        `json:"lang,omitempty"`
	Mode          string        `json:"mode,omitempty"`
	CallbackURL   string        `json:"callbackUrl,omitempty"`
	Customization Customization `json:"customization"`
}

type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Customization struct {
	Plugins         bool   `json:"plugins"`
	Macros          bool   `json:"macros"`
	IntegrationMode string `json:"integrationMode"`
}

// Params are the request parameters an editor-config build takes. A non-empty
// TemplateKey selects the template path; otherwise ItemID selects a
// submission.
type Params struct {
	ContextID    uint64
	ItemID       uint64
	ReadOnly     bool
	TemplateKey  string
	Format       string
	TemplateType string
}

// Builder assembles editor configs from the file store and capability checks.
type Builder struct {
	DB      *gorm.DB
	Files   *storage.FileManager
	Handles *doctoken.Codec
	Server  *doctoken.Codec
	Cfg     *config.Config
}

func NewBuilder(db *gorm.DB, files *storage.FileManager, handles, server *doctoken.Codec, cfg *config.Config) *Builder {
	return &Builder{DB: db, Files: files, Handles: handles, Server: server, Cfg: cfg}
}

// Build produces the editor config for the acting user. Authorization runs
// against the explicit actingUser, never any ambient identity.
func (b *Builder) Build(ctx context.Context, params Params, actingUser *models.User) (*Config, error) {
	var (
		filename string
		key      string
		editable bool
	)

	if params.TemplateKey != "" {
		file, err := b.Files.GetTemplate(ctx, params.ContextID)
		if err != nil {
			return nil, err
		}
		if file != nil {
			filename = file.Filename
		} else {
			filename = defaultTemplateFilename
		}
		key = params.TemplateKey

		if params.ContextID == 0 {
			// No context persisted yet; the template author is the only
			// party who can hold this key.
			editable = true
		} else {
			editable, err = authz.CanManageContext(b.DB, params.ContextID, actingUser.UserID)
			if err != nil {
				return nil, err
			}
		}
	} else {
		var sub models.Submission
		err := b.DB.Where("submission_id = ?", params.ItemID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &types.CustomError{Code: 400, Message: "submission not found", Type: "bad_request"}
		}
		if err != nil {
			return nil, err
		}
		if params.ContextID == 0 {
			params.ContextID = sub.ContextID
		}

		file, err := b.Files.Get(ctx, sub.ContextID, params.ItemID)
		if err != nil {
			return nil, err
		}
		if file == nil {
			return nil, &types.CustomError{Code: 404, Message: "submission file not found", Type: "not_found"}
		}
		filename = file.Filename
		key = fmt.Sprintf("%d_%d_%d", sub.ContextID, params.ItemID, file.TimeModified.Unix())

		editable, err = authz.CanEditSubmission(b.DB, &sub, actingUser.UserID)
		if err != nil {
			return nil, err
		}
	}

	ext := extOf(filename)

	downloadToken, err := b.Handles.Encode(doctoken.Handle{
		Action:       doctoken.ActionDownload,
		ContextID:    params.ContextID,
		ItemID:       params.ItemID,
		TemplateKey:  params.TemplateKey,
		UserID:       actingUser.UserID,
		Format:       params.Format,
		TemplateType: params.TemplateType,
	})
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Document: Document{
			FileType: ext,
			Key:      key,
			Title:    filename,
			URL:      b.Cfg.StorageURL + "/download?doc=" + downloadToken,
			Permissions: Permissions{
				Protect: false,
			},
		},
		DocumentType: DocumentType(ext),
		EditorConfig: EditorConfig{
			User: UserInfo{
				ID:   fmt.Sprintf("%d", actingUser.UserID),
				Name: actingUser.Name,
			},
			Lang: actingUser.Lang,
			Customization: Customization{
				Plugins:         b.Cfg.EditorPlugins,
				Macros:          b.Cfg.EditorMacros,
				IntegrationMode: "embed",
			},
		},
	}

	if editable && Editable(ext) && !params.ReadOnly {
		trackToken, err := b.Handles.Encode(doctoken.Handle{
			Action:      doctoken.ActionTrack,
			ContextID:   params.ContextID,
			ItemID:      params.ItemID,
			TemplateKey: params.TemplateKey,
			UserID:      actingUser.UserID,
			Format:      params.Format,
		})
		if err != nil {
			return nil, err
		}
		cfg.EditorConfig.CallbackURL = b.Cfg.StorageURL + "/callback?doc=" + trackToken
		cfg.Document.Permissions.Edit = true
		cfg.Document.Permissions.FillForms = true

		// PDF forms are fillable-only for student-role users even inside an
		// editable session.
		if ext == "pdf" && params.TemplateKey == "" {
			student, err := authz.HasStudentRole(b.DB, params.ContextID, actingUser.UserID)
			if err != nil {
				return nil, err
			}
			if student {
				cfg.Document.Permissions.Edit = false
			}
		}
	} else {
		canGrade, err := authz.CanGrade(b.DB, params.ContextID, actingUser.UserID)
		if err != nil {
			return nil, err
		}
		if !canGrade && !editable {
			return nil, &types.CustomError{Code: 403, Message: "access denied", Type: "unauthorized"}
		}
		cfg.EditorConfig.Mode = "view"
	}

	if b.Server.Configured() {
		token, err := b.Server.Sign(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Token = token
	}

	return cfg, nil
}

func extOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// app.go
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
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/config"
	"github.com/openlms/docsubmit/internal/docserver"
	"github.com/openlms/docsubmit/internal/doctoken"
	"github.com/openlms/docsubmit/internal/editor"
	"github.com/openlms/docsubmit/internal/handlers"
	"github.com/openlms/docsubmit/internal/middleware"
	"github.com/openlms/docsubmit/internal/storage"
	"github.com/openlms/docsubmit/internal/types"
)

// TestAppConfig returns a config suitable for in-process tests. The blob
// store writes to a per-test temp directory; identity runs in trusted-header
// mode.
func TestAppConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:          "3000",
		StorageURL:    "http://localhost:3000",
		DocServerURL:  "http://localhost:8080",
		HandleSecret:  "test-handle-secret",
		BlobStore:     "local",
		BlobDir:       t.TempDir(),
		DefaultFormat: "docx",
	}
}

// TestApp is the in-process application plus the collaborators tests use to
// seed and inspect state.
type TestApp struct {
	App     *fiber.App
	Files   *storage.FileManager
	Handles *doctoken.Codec
	Server  *doctoken.Codec
}

// BuildTestApp wires the full route surface over the given database and
// config, the same way cmd/server does.
func BuildTestApp(t *testing.T, db *gorm.DB, cfg *config.Config) *TestApp {
	blobs, err := storage.NewLocalBlobStore(cfg.BlobDir)
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}
	files := storage.NewFileManager(db, blobs)

	handleCodec := doctoken.New(cfg.HandleSecret)
	serverCodec := doctoken.New(cfg.DocServerSecret)
	docServer := docserver.NewClient(cfg.DocServerURL)

	app := fiber.New(fiber.Config{
		ErrorHandler: testErrorHandler,
	})

	builder := editor.NewBuilder(db, files, handleCodec, serverCodec, cfg)
	editorHandler := &handlers.EditorHandler{DB: db, Builder: builder}
	callbackHandler := &handlers.CallbackHandler{
		DB: db, Files: files, Handles: handleCodec, Server: serverCodec,
		DocServer: docServer, Cfg: cfg,
	}
	downloadHandler := &handlers.DownloadHandler{
		DB: db, Files: files, Handles: handleCodec, Server: serverCodec,
	}
	submissionHandler := &handlers.SubmissionHandler{DB: db, Files: files, Cfg: cfg}
	settingsHandler := &handlers.SettingsHandler{DB: db}

	app.Post("/callback", callbackHandler.HandleCallback)
	app.Get("/download", downloadHandler.Download)

	api := app.Group("/api", middleware.Identity(cfg, db))
	api.Get("/editor/config", editorHandler.GetEditorConfig)
	api.Post("/submission/:itemid/file", submissionHandler.CreateSubmissionFile)
	api.Delete("/submission/:itemid", submissionHandler.DeleteSubmission)
	api.Put("/context/:contextid/settings", settingsHandler.SaveSettings)

	return &TestApp{App: app, Files: files, Handles: handleCodec, Server: serverCodec}
}

func testErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var custom *types.CustomError
	if errors.As(err, &custom) {
		code = custom.Code
		message = custom.Message
		errorType = custom.Type
	} else if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

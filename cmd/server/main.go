// main.go
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

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	"github.com/openlms/docsubmit/internal/config"
	"github.com/openlms/docsubmit/internal/database"
	"github.com/openlms/docsubmit/internal/docserver"
	"github.com/openlms/docsubmit/internal/doctoken"
	"github.com/openlms/docsubmit/internal/editor"
	"github.com/openlms/docsubmit/internal/handlers"
	"github.com/openlms/docsubmit/internal/middleware"
	"github.com/openlms/docsubmit/internal/services"
	"github.com/openlms/docsubmit/internal/storage"
	"github.com/openlms/docsubmit/internal/types"

	_ "github.com/openlms/docsubmit/docs/api" // Swagger docs
)

// @title Docsubmit API
// @version 1.0.0
// @description Document submission editing gateway for an external document server
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/openlms/docsubmit

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Blob backend
	var blobs storage.BlobStore
	switch cfg.BlobStore {
	case "s3":
		blobs, err = storage.NewS3BlobStore(context.Background(), cfg)
		if err != nil {
			log.Fatalf("Failed to create S3 blob store: %v", err)
		}
	default:
		blobs, err = storage.NewLocalBlobStore(cfg.BlobDir)
		if err != nil {
			log.Fatalf("Failed to create local blob store: %v", err)
		}
	}
	files := storage.NewFileManager(db, blobs)

	// Two token codecs: one over the service-held handle secret, one over
	// the document server's shared secret (possibly open mode).
	handleCodec := doctoken.New(cfg.HandleSecret)
	serverCodec := doctoken.New(cfg.DocServerSecret)

	docServer := docserver.NewClient(cfg.DocServerURL)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("docsubmit")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health
	app.Get("/health", func(c *fiber.Ctx) error {
		result := services.HealthCheck(cfg, db)
		status := fiber.StatusOK
		if result.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	// Create handlers
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

	// Document server facing routes. Authenticated by signed handles and the
	// optional shared secret, never by an interactive session.
	app.Post("/callback", callbackHandler.HandleCallback)
	app.Get("/download", downloadHandler.Download)

	// Interactive routes under /api
	api := app.Group("/api", middleware.Identity(cfg, db))
	api.Get("/editor/config", editorHandler.GetEditorConfig)
	api.Post("/submission/:itemid/file", submissionHandler.CreateSubmissionFile)
	api.Delete("/submission/:itemid", submissionHandler.DeleteSubmission)
	api.Put("/context/:contextid/settings", settingsHandler.SaveSettings)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
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

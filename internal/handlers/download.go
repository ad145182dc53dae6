// download.go
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

package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/doctoken"
	"github.com/openlms/docsubmit/internal/storage"
	"github.com/openlms/docsubmit/internal/templatekey"
	"github.com/openlms/docsubmit/internal/types"
)

// DownloadHandler streams stored file bytes to the document server.
type DownloadHandler struct {
	DB      *gorm.DB
	Files   *storage.FileManager
	Handles *doctoken.Codec
	Server  *doctoken.Codec
}

// Download handles GET /download?doc=...
// @Summary Stream document content
// @Description Serves the bytes of the file a download handle resolves to
// @Tags Download
// @Produce octet-stream
// @Param doc query string true "Signed document handle (action=download)"
// @Success 200 {file} binary
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /download [get]
func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	// When a shared secret is configured the document server authenticates
	// its fetch with a bearer JWT of its own.
	if h.Server.Configured() {
		if _, err := h.Server.DecodeInbound("", c.Get(fiber.HeaderAuthorization)); err != nil {
			return c.SendStatus(fiber.StatusForbidden)
		}
	}

	handle, err := h.Handles.Decode(c.Query("doc"))
	if err != nil {
		// The caller is the document server, not a browser; no error
		// envelope on a bad handle.
		return c.SendStatus(fiber.StatusForbidden)
	}
	if handle.Action != doctoken.ActionDownload {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "wrong handle action", Type: "download.token"}
	}

	if handle.TemplateKey != "" {
		return h.downloadTemplate(c, handle)
	}

	file, err := h.Files.Get(c.Context(), handle.ContextID, handle.ItemID)
	if err != nil {
		return err
	}
	if file == nil {
		return &types.CustomError{Code: fiber.StatusNotFound, Message: "file not found", Type: "download.file"}
	}
	content, err := h.Files.Content(c.Context(), file)
	if err != nil {
		return err
	}
	return stream(c, file.Filename, content)
}

// downloadTemplate resolves a template-by-key download. A key without a
// persisted context or template yet is a normal authoring state: the blank
// seed document is served instead of a 404.
func (h *DownloadHandler) downloadTemplate(c *fiber.Ctx, handle *doctoken.Handle) error {
	contextID := handle.ContextID
	if contextID == 0 {
		var err error
		contextID, err = templatekey.ResolveContextID(h.DB, handle.TemplateKey)
		if err != nil {
			return err
		}
	}

	if contextID != 0 {
		file, err := h.Files.GetTemplate(c.Context(), contextID)
		if err != nil {
			return err
		}
		if file != nil {
			content, err := h.Files.Content(c.Context(), file)
			if err != nil {
				return err
			}
			return stream(c, file.Filename, content)
		}
	}

	ext := handle.Format
	if ext == "" || ext == "upload" {
		ext = "pdf"
	}
	content, err := storage.SeedContent("en", ext)
	if err != nil {
		return err
	}
	return stream(c, "form_template."+ext, content)
}

func stream(c *fiber.Ctx, filename string, content []byte) error {
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Set(fiber.HeaderContentType, "application/octet-stream")
	return c.Status(fiber.StatusOK).Send(content)
}

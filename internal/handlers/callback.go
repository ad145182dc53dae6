// callback.go
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
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/authz"
	"github.com/openlms/docsubmit/internal/config"
	"github.com/openlms/docsubmit/internal/docserver"
	"github.com/openlms/docsubmit/internal/doctoken"
	"github.com/openlms/docsubmit/internal/editor"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/storage"
	"github.com/openlms/docsubmit/internal/templatekey"
	"github.com/openlms/docsubmit/internal/types"
)

// CallbackHandler is the webhook entry point the document server posts save
// notifications to.
type CallbackHandler struct {
	DB        *gorm.DB
	Files     *storage.FileManager
	Handles   *doctoken.Codec
	Server    *doctoken.Codec
	DocServer *docserver.Client
	Cfg       *config.Config
}

// callbackEvent is the normalized callback payload. Exactly one
// authentication step produces it; everything downstream consumes it
// uniformly, whether the fields arrived in the raw body or inside a
// verified JWT.
type callbackEvent struct {
	Status types.FlexInt          `json:"status"`
	URL    string                 `json:"url"`
	Users  types.FlexList[string] `json:"users"`
	Key    string                 `json:"key"`
}

// rawCallbackBody is the untrusted request body. Only Token is ever read from
// it when a shared secret is configured.
type rawCallbackBody struct {
	callbackEvent
	Token string `json:"token"`
}

// HandleCallback handles POST /callback?doc=...
// @Summary Document server save callback
// @Description Webhook invoked by the document server on editing status changes
// @Tags Callback
// @Accept json
// @Produce json
// @Param doc query string true "Signed document handle (action=track)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /callback [post]
func (h *CallbackHandler) HandleCallback(c *fiber.Ctx) error {
	handle, err := h.Handles.Decode(c.Query("doc"))
	if err != nil {
		// The caller is the document server, not a browser; no error
		// envelope on a bad handle.
		return c.SendStatus(fiber.StatusForbidden)
	}
	if handle.Action != doctoken.ActionTrack {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "wrong handle action", Type: "callback.token"}
	}

	var raw rawCallbackBody
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "unreadable callback body", Type: "callback.body"}
	}

	event, err := h.authenticate(&raw, c.Get(fiber.HeaderAuthorization))
	if err != nil {
		// Business-visible auth failure, by the document server's protocol
		// convention: transport succeeds, the body carries the denial.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "error",
			"error":  "403 Access denied",
		})
	}

	actingUserID := handle.UserID
	if users := event.Users.Slice(); len(users) > 0 {
		if id, err := strconv.ParseUint(users[0], 10, 64); err == nil {
			actingUserID = id
		}
	}
	actingUser, err := authz.ResolveUser(h.DB, actingUserID)
	if err != nil {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "unknown acting user", Type: "callback.user"}
	}

	contextID := handle.ContextID
	if contextID == 0 && handle.TemplateKey != "" {
		contextID, err = templatekey.ResolveContextID(h.DB, handle.TemplateKey)
		if err != nil {
			return err
		}
	}
	if contextID == 0 {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "unresolvable context", Type: "callback.context"}
	}

	var sub *models.Submission
	if handle.TemplateKey != "" {
		ok, err := authz.CanManageContext(h.DB, contextID, actingUser.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return &types.CustomError{Code: fiber.StatusForbidden, Message: "access denied", Type: "callback.capability"}
		}
	} else {
		var s models.Submission
		if err := h.DB.Where("submission_id = ?", handle.ItemID).First(&s).Error; err != nil {
			return &types.CustomError{Code: fiber.StatusForbidden, Message: "access denied", Type: "callback.capability"}
		}
		sub = &s
		ok, err := authz.CanEditSubmission(h.DB, sub, actingUser.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return &types.CustomError{Code: fiber.StatusForbidden, Message: "access denied", Type: "callback.capability"}
		}
	}

	switch event.Status.Int() {
	case docserver.StatusEditing, docserver.StatusClosedNoChanges:
		return callbackResult(c, 0)
	case docserver.StatusMustSave, docserver.StatusErrorSaving:
		return h.persist(c, handle, event, contextID, actingUser)
	default:
		return callbackResult(c, 1)
	}
}

// authenticate applies the dual-path rule: inline body token first, bearer
// header second. When a secret is configured the verified payload is
// authoritative and raw body fields are never read again.
func (h *CallbackHandler) authenticate(raw *rawCallbackBody, authHeader string) (*callbackEvent, error) {
	if !h.Server.Configured() {
		// Open mode for trusted deployments.
		return &raw.callbackEvent, nil
	}

	claims, err := h.Server.DecodeInbound(raw.Token, authHeader)
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so the flexible field types apply to the
	// verified claims the same way they apply to a raw body.
	buf, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}
	var event callbackEvent
	if err := json.Unmarshal(buf, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// persist runs the save path: resolve the target file (lazily creating it
// for templates only), replace its content, and derive the fillable artifact
// for form containers.
func (h *CallbackHandler) persist(c *fiber.Ctx, handle *doctoken.Handle, event *callbackEvent, contextID uint64, actingUser *models.User) error {
	ctx := c.Context()
	isTemplate := handle.TemplateKey != ""

	var file *models.StoredFile
	var err error
	if isTemplate {
		file, err = h.Files.GetTemplate(ctx, contextID)
	} else {
		file, err = h.Files.Get(ctx, contextID, handle.ItemID)
	}
	if err != nil {
		return err
	}

	if file == nil {
		if !isTemplate {
			// A submission file only exists while its submission does.
			// Seeding a blank one here would resurrect a removed submission.
			return &types.CustomError{Code: fiber.StatusNotFound, Message: "submission file not found", Type: "callback.file"}
		}
		format := handle.Format
		if format == "upload" {
			// An uploaded template cannot be seeded from a blank
			// document; nothing to save into.
			return callbackResult(c, 1)
		}
		if format == "" {
			format = "docxf"
		}
		file, err = h.Files.CreateTemplate(ctx, contextID, format, actingUser.UserID, actingUser.Lang)
		if err != nil {
			log.Printf("Callback: lazy template create failed: %v", err)
			return callbackResult(c, 1)
		}
	}

	if event.URL != "" {
		if err := h.Files.Write(ctx, file, event.URL); err != nil {
			log.Printf("Callback: content write failed for file %d: %v", file.FileID, err)
			return callbackResult(c, 1)
		}
	}

	if editor.FormContainer(file.Extension()) {
		// Form containers always derive their fillable rendition, whether
		// they came in as a template or a submission. Best effort: a failed
		// conversion leaves the initial file untouched and the next save
		// retries.
		if err := h.deriveInitial(c, handle, file, contextID, actingUser); err != nil {
			log.Printf("Callback: conversion skipped for context %d: %v", contextID, err)
		}
	} else if isTemplate {
		if err := h.Files.CopyToInitial(ctx, file); err != nil {
			log.Printf("Callback: initial copy failed for context %d: %v", contextID, err)
			return callbackResult(c, 1)
		}
	}

	h.record(handle, event, contextID, actingUser.UserID, c.Body())

	return callbackResult(c, 0)
}

// deriveInitial converts the saved form container into its fillable
// rendition and stores it in the initial area.
func (h *CallbackHandler) deriveInitial(c *fiber.Ctx, handle *doctoken.Handle, file *models.StoredFile, contextID uint64, actingUser *models.User) error {
	ctx := c.Context()

	downloadToken, err := h.Handles.Encode(doctoken.Handle{
		Action:      doctoken.ActionDownload,
		ContextID:   contextID,
		ItemID:      handle.ItemID,
		TemplateKey: handle.TemplateKey,
		UserID:      actingUser.UserID,
	})
	if err != nil {
		return err
	}

	outputType := h.DocServer.FormFormat(ctx)
	resultURL, err := h.DocServer.Convert(ctx, docserver.ConvertRequest{
		URL:        h.Cfg.StorageURL + "/download?doc=" + downloadToken,
		FileType:   file.Extension(),
		OutputType: outputType,
		Title:      file.Filename,
		Key:        fmt.Sprintf("%d_%d_%d", contextID, handle.ItemID, file.TimeModified.Unix()),
	})
	if err != nil {
		return err
	}

	initial, err := h.Files.GetInitial(ctx, contextID)
	if err != nil {
		return err
	}
	if initial != nil {
		return h.Files.Write(ctx, initial, resultURL)
	}
	_, err = h.Files.CreateInitial(ctx, contextID, outputType, actingUser.UserID, resultURL)
	return err
}

// record appends the processed save delivery to the audit trail. Failures
// only log: the audit row is not load-bearing for the callback result.
func (h *CallbackHandler) record(handle *doctoken.Handle, event *callbackEvent, contextID, userID uint64, body []byte) {
	payload := datatypes.JSON(body)
	if len(body) == 0 {
		payload = datatypes.JSON([]byte("{}"))
	}
	entry := models.CallbackEvent{
		ContextID: contextID,
		ItemID:    handle.ItemID,
		Status:    event.Status.Int(),
		UserID:    userID,
		Payload:   payload,
	}
	if err := h.DB.Create(&entry).Error; err != nil {
		log.Printf("Callback: audit record failed: %v", err)
	}
}

// callbackResult writes the document server's {error: N} acknowledgment.
// Always HTTP 200; the error field carries business failure.
func callbackResult(c *fiber.Ctx, code int) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"error": code})
}

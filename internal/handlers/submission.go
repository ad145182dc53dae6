package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/authz"
	"github.com/openlms/docsubmit/internal/config"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/storage"
	"github.com/openlms/docsubmit/internal/types"
	"github.com/openlms/docsubmit/internal/utils"
)

// SubmissionHandler manages the lifecycle of submission files.
type SubmissionHandler struct {
	DB    *gorm.DB
	Files *storage.FileManager
	Cfg   *config.Config
}

// CreateSubmissionFile handles POST /api/submission/:itemid/file
// @Summary Lazily create the submission file
// @Description Creates the submission's working document in the configured format if absent
// @Tags Submission
// @Produce json
// @Param itemid path int true "Submission item id"
// @Success 200 {object} models.StoredFile
// @Success 201 {object} models.StoredFile
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /submission/{itemid}/file [post]
func (h *SubmissionHandler) CreateSubmissionFile(c *fiber.Ctx) error {
	itemID, err := strconv.ParseUint(c.Params("itemid"), 10, 64)
	if err != nil {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "invalid itemid", Type: "submission.params"}
	}

	actingUser, ok := c.Locals("actingUser").(*models.User)
	if !ok {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "no authenticated user", Type: "submission.identity"}
	}

	var sub models.Submission
	if err := h.DB.Where("submission_id = ?", itemID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.CustomError{Code: fiber.StatusBadRequest, Message: "submission not found", Type: "submission.lookup"}
		}
		return err
	}

	canEdit, err := authz.CanEditSubmission(h.DB, &sub, actingUser.UserID)
	if err != nil {
		return err
	}
	if !canEdit {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "access denied", Type: "submission.capability"}
	}

	// First render already created it; idempotent.
	file, err := h.Files.Get(c.Context(), sub.ContextID, itemID)
	if err != nil {
		return err
	}
	if file != nil {
		return utils.SuccessResponse(c, file, fiber.StatusOK)
	}

	format := contextFormat(h.DB, sub.ContextID, h.Cfg.DefaultFormat)
	file, err = h.Files.Create(c.Context(), sub.ContextID, itemID, format, actingUser.UserID, actingUser.Lang)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, file, fiber.StatusCreated)
}

// DeleteSubmission handles DELETE /api/submission/:itemid
// @Summary Remove submission files
// @Description Deletes all submission-area files for the item
// @Tags Submission
// @Produce json
// @Param itemid path int true "Submission item id"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /submission/{itemid} [delete]
func (h *SubmissionHandler) DeleteSubmission(c *fiber.Ctx) error {
	itemID, err := strconv.ParseUint(c.Params("itemid"), 10, 64)
	if err != nil {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "invalid itemid", Type: "submission.params"}
	}

	actingUser, ok := c.Locals("actingUser").(*models.User)
	if !ok {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "no authenticated user", Type: "submission.identity"}
	}

	var sub models.Submission
	if err := h.DB.Where("submission_id = ?", itemID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.CustomError{Code: fiber.StatusBadRequest, Message: "submission not found", Type: "submission.lookup"}
		}
		return err
	}

	canEdit, err := authz.CanEditSubmission(h.DB, &sub, actingUser.UserID)
	if err != nil {
		return err
	}
	if !canEdit {
		canManage, err := authz.CanManageContext(h.DB, sub.ContextID, actingUser.UserID)
		if err != nil {
			return err
		}
		if !canManage {
			return &types.CustomError{Code: fiber.StatusForbidden, Message: "access denied", Type: "submission.capability"}
		}
	}

	if err := h.Files.Delete(c.Context(), sub.ContextID, itemID); err != nil {
		return err
	}

	return utils.MutationSuccessResponse(c, 1)
}

// contextFormat reads the configured submission format for a context,
// falling back to the service default.
func contextFormat(db *gorm.DB, contextID uint64, fallback string) string {
	var entry models.AssignConfig
	err := db.Where("context_id = ? AND plugin = ? AND name = ?",
		contextID, "docsubmit", "format").First(&entry).Error
	if err != nil || entry.Value == "" || entry.Value == "upload" {
		return fallback
	}
	return entry.Value
}

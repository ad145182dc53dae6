package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openlms/docsubmit/internal/authz"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/templatekey"
	"github.com/openlms/docsubmit/internal/types"
	"github.com/openlms/docsubmit/internal/utils"
)

// SettingsHandler stores per-context plugin settings.
type SettingsHandler struct {
	DB *gorm.DB
}

type settingsRequest struct {
	Format      string `json:"format"`
	TemplateKey string `json:"tmplkey"`
}

// SaveSettings handles PUT /api/context/:contextid/settings
// @Summary Save assignment settings
// @Description Stores the submission format and registers the template key for a context
// @Tags Settings
// @Accept json
// @Produce json
// @Param contextid path int true "Assignment context id"
// @Param settings body settingsRequest true "Settings"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /context/{contextid}/settings [put]
func (h *SettingsHandler) SaveSettings(c *fiber.Ctx) error {
	contextID, err := strconv.ParseUint(c.Params("contextid"), 10, 64)
	if err != nil || contextID == 0 {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "invalid contextid", Type: "settings.params"}
	}

	actingUser, ok := c.Locals("actingUser").(*models.User)
	if !ok {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "no authenticated user", Type: "settings.identity"}
	}

	canManage, err := authz.CanManageContext(h.DB, contextID, actingUser.UserID)
	if err != nil {
		return err
	}
	if !canManage {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "access denied", Type: "settings.capability"}
	}

	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "unreadable settings body", Type: "settings.body"}
	}
	if req.Format == "" {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "format required", Type: "settings.body"}
	}

	entry := models.AssignConfig{
		ContextID: contextID,
		Plugin:    "docsubmit",
		Name:      "format",
		Value:     req.Format,
	}
	err = h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "context_id"}, {Name: "plugin"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return err
	}

	if req.TemplateKey != "" {
		if err := templatekey.Register(h.DB, contextID, req.TemplateKey); err != nil {
			return err
		}
	}

	return utils.MutationSuccessResponse(c, 1)
}

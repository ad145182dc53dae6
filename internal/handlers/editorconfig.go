// editorconfig.go
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
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/editor"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/types"
)

// EditorHandler serves the editor configuration to the browser client.
type EditorHandler struct {
	DB      *gorm.DB
	Builder *editor.Builder
}

// GetEditorConfig handles GET /api/editor/config
// @Summary Build an editor session configuration
// @Description Produces the document editor descriptor for a submission or template
// @Tags Editor
// @Produce json
// @Param contextid query int false "Assignment context id"
// @Param itemid query int false "Submission item id"
// @Param readonly query bool false "Force view-only session"
// @Param tmplkey query string false "Template correlation key"
// @Param format query string false "Declared document format"
// @Param templatetype query string false "Template kind"
// @Success 200 {object} editor.Config
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /editor/config [get]
func (h *EditorHandler) GetEditorConfig(c *fiber.Ctx) error {
	contextID, err := queryUint(c, "contextid")
	if err != nil {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "invalid contextid", Type: "editor.params"}
	}
	itemID, err := queryUint(c, "itemid")
	if err != nil {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "invalid itemid", Type: "editor.params"}
	}

	params := editor.Params{
		ContextID:    contextID,
		ItemID:       itemID,
		ReadOnly:     c.QueryBool("readonly"),
		TemplateKey:  c.Query("tmplkey"),
		Format:       c.Query("format"),
		TemplateType: c.Query("templatetype"),
	}

	if params.ItemID == 0 && params.TemplateKey == "" {
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: "itemid or tmplkey required", Type: "editor.params"}
	}

	actingUser, ok := c.Locals("actingUser").(*models.User)
	if !ok {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "no authenticated user", Type: "editor.identity"}
	}

	cfg, err := h.Builder.Build(c.Context(), params, actingUser)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(cfg)
}

// queryUint parses an optional non-negative integer query parameter.
func queryUint(c *fiber.Ctx, name string) (uint64, error) {
	value := c.Query(name)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseUint(value, 10, 64)
}

package middleware

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/openlms/docsubmit/internal/config"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/services"
	"github.com/openlms/docsubmit/internal/types"
)

// Identity resolves the acting user for interactive endpoints and stores it
// under the "actingUser" local. Two modes: Authorizer session validation when
// AUTHZ_URL is configured, otherwise the X-User-Id header set by an
// authenticating gateway in front of the service.
func Identity(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AuthzURL == "" {
			return trustedHeaderIdentity(c, db)
		}
		return authorizerIdentity(c, cfg, db)
	}
}

func trustedHeaderIdentity(c *fiber.Ctx, db *gorm.DB) error {
	header := c.Get("X-User-Id")
	if header == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "X-User-Id header not found",
			Type:    "identity.header",
		}
	}
	userID, err := strconv.ParseUint(header, 10, 64)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Invalid X-User-Id header",
			Type:    "identity.header",
		}
	}

	var user models.User
	if err := db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Unknown user %d", userID),
			Type:    "identity.user",
		}
	}

	c.Locals("actingUser", &user)
	return c.Next()
}

func authorizerIdentity(c *fiber.Ctx, cfg *config.Config, db *gorm.DB) error {
	if !services.IsAuthorizerInitialized() {
		if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname()); err != nil {
			return &types.CustomError{
				Code:    fiber.StatusServiceUnavailable,
				Message: fmt.Sprintf("Authorizer unavailable: %v", err),
				Type:    "identity.authorizer",
			}
		}
	}

	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    "identity.session",
		}
	}

	email, err := services.ValidateSession(session, nil)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    "identity.session",
		}
	}

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("No account for %s", email),
			Type:    "identity.user",
		}
	}

	c.Locals("actingUser", &user)
	return c.Next()
}

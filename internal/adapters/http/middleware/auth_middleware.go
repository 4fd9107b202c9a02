package middleware

import (
	"errors"
	"strings"

	"membership-admin/internal/core/domain"
	"membership-admin/internal/core/services"
	"membership-admin/internal/pkg/jwt"
	"membership-admin/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AccessTokenCookie is the cookie carrying the admin session token
const AccessTokenCookie = "access_token"

// AccessToken reads the token from the cookie, falling back to a Bearer header
func AccessToken(c *fiber.Ctx) string {
	if token := c.Cookies(AccessTokenCookie); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AuthMiddleware creates authentication middleware
func AuthMiddleware(auth services.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := AccessToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := auth.ValidateAccessToken(accessToken)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return response.Unauthorized(c, "Access token expired")
			case errors.Is(err, services.ErrTokenRevoked):
				return response.Unauthorized(c, "Session has been signed out")
			default:
				return response.Unauthorized(c, "Invalid access token")
			}
		}

		c.Locals("claims", claims)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// Claims returns the claims stored by AuthMiddleware
func Claims(c *fiber.Ctx) (*jwt.Claims, bool) {
	claims, ok := c.Locals("claims").(*jwt.Claims)
	return claims, ok
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only the admin role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(string(domain.RoleAdmin))
}

package middleware

import (
	"log"
	"strings"

	"dryfruits/internal/models"
	"dryfruits/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GuestHeader carries the browser-generated id of an anonymous shopper.
const GuestHeader = "X-Guest-ID"

const principalKey = "principal"

// Principal is the caller a request acts for.
type Principal struct {
	ID      string
	IsGuest bool
	Role    string
}

// IsAdmin reports whether the principal may use the admin routes.
func (p Principal) IsAdmin() bool {
	return !p.IsGuest && p.Role == models.RoleAdmin
}

// PrincipalFrom returns the principal ResolvePrincipal stored, if any.
func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

// ResolvePrincipal identifies the caller from a Bearer token, falling back
// to the guest header. A request with neither passes through anonymous; a
// malformed token or guest id is rejected.
func ResolvePrincipal(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			// Expected format: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if !(len(parts) == 2 && parts[0] == "Bearer") {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"message": "Authorization header format must be 'Bearer <token>'",
				})
			}

			claims, err := authService.ValidateToken(parts[1])
			if err != nil {
				log.Printf("JWT validation failed: %v", err)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"message": "Invalid or expired token",
					"error":   err.Error(),
				})
			}
			userID, _ := claims["user_id"].(string)
			role, _ := claims["role"].(string)
			if userID == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"message": "Token carries no user",
				})
			}
			c.Locals(principalKey, Principal{ID: userID, Role: role})
			return c.Next()
		}

		if guest := c.Get(GuestHeader); guest != "" {
			id, err := uuid.Parse(guest)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"message": GuestHeader + " must be a UUID",
				})
			}
			c.Locals(principalKey, Principal{ID: "guest-" + id.String(), IsGuest: true})
		}
		return c.Next()
	}
}

// RequireShopper rejects anonymous requests. Guests are allowed.
func RequireShopper() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFrom(c); !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "A bearer token or " + GuestHeader + " header is required",
			})
		}
		return c.Next()
	}
}

// AuthRequired admits signed-in users only.
func AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok || p.IsGuest {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}
		return c.Next()
	}
}

// AdminOnly admits signed-in administrators only.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok || p.IsGuest {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}
		if !p.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// RequireRole ensures the caller has one of the allowed roles. With no roles
// given it only requires authentication.
func RequireRole(allowed ...domain.UserRole) fiber.Handler {
	allowedSet := make(map[domain.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[user.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireManager restricts a route to admin and executive users.
func RequireManager() fiber.Handler {
	return RequireRole(domain.RoleAdmin, domain.RoleExecutive)
}

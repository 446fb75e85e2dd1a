package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/utils"
)

// Permission is one capability a caller may hold. Capabilities are resolved
// from the caller's role at check time; they are never stored per user.
type Permission uint16

const (
	CanViewActivities Permission = 1 << iota
	CanManageActivities
	CanUpdateCustomRequests
	CanViewStudents
	CanProcessHours
	CanManageEverything
)

var rolePermissions = map[string]Permission{
	models.RoleStudent: CanViewActivities,
	models.RoleDoctor:  CanViewStudents,
	models.RoleCenter: CanViewActivities | CanManageActivities |
		CanUpdateCustomRequests | CanViewStudents | CanProcessHours,
	models.RoleAdmin: CanManageEverything,
}

// granted reports whether the role holds the permission. CanManageEverything
// short-circuits so the admin role passes every check.
func (p Permission) granted(role string) bool {
	set := rolePermissions[role]
	if set&CanManageEverything != 0 {
		return true
	}
	return set&p != 0
}

// RequirePermission guards a route with a capability check derived from the
// authenticated caller's role.
func RequirePermission(p Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		role := ""
		if v, ok := c.Locals("user_role").(string); ok {
			role = strings.ToLower(strings.TrimSpace(v))
		}

		if !p.granted(role) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		return c.Next()
	}
}

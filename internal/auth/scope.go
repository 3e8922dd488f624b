package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"parami-backend/internal/models"
)

// Identity is the authenticated caller as stored in the request locals.
type Identity struct {
	UserID   string
	Name     string
	Role     models.UserRole
	BranchID *string
}

func CurrentIdentity(c *fiber.Ctx) (Identity, error) {
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	if !ok {
		return Identity{}, fiber.NewError(fiber.StatusForbidden, "Role missing from token")
	}
	userID, ok := c.Locals(CtxUserIDKey).(string)
	if !ok || userID == "" {
		return Identity{}, fiber.NewError(fiber.StatusForbidden, "User missing from token")
	}
	name, _ := c.Locals(CtxUserNameKey).(string)
	branchID, _ := c.Locals(CtxBranchIDKey).(*string)

	return Identity{UserID: userID, Name: name, Role: role, BranchID: branchID}, nil
}

// pinnedBranch returns the branch a non super admin is bound to.
func pinnedBranch(id Identity) (string, error) {
	if id.BranchID == nil || *id.BranchID == "" {
		return "", fiber.NewError(fiber.StatusForbidden, "Branch missing from token")
	}
	return *id.BranchID, nil
}

// BranchFromBodyOrRole pins branch users to their own branch; super admins must
// name one in the body.
func BranchFromBodyOrRole(c *fiber.Ctx, bodyBranchID *string) (string, error) {
	id, err := CurrentIdentity(c)
	if err != nil {
		return "", err
	}
	if id.Role != models.RoleSuperAdmin {
		return pinnedBranch(id)
	}

	if bodyBranchID == nil || strings.TrimSpace(*bodyBranchID) == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}
	return strings.TrimSpace(*bodyBranchID), nil
}

// BranchFromQueryOrRole is like BranchFromBodyOrRole but reads ?branch_id=.
// A super admin without branch_id gets "" which means every branch.
func BranchFromQueryOrRole(c *fiber.Ctx) (string, error) {
	id, err := CurrentIdentity(c)
	if err != nil {
		return "", err
	}
	if id.Role != models.RoleSuperAdmin {
		return pinnedBranch(id)
	}
	return strings.TrimSpace(c.Query("branch_id")), nil
}

// CanAccessBranch reports whether the caller may touch rows of branchID.
func CanAccessBranch(c *fiber.Ctx, branchID string) bool {
	id, err := CurrentIdentity(c)
	if err != nil {
		return false
	}
	if id.Role == models.RoleSuperAdmin {
		return true
	}
	return id.BranchID != nil && *id.BranchID == branchID
}

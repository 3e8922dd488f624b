package audit

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"parami-backend/internal/auth"
	"parami-backend/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

type AuditLogResponse struct {
	ID          string             `json:"id"`
	CreatedAt   string             `json:"created_at"`
	BranchID    *string            `json:"branch_id"`
	UserID      string             `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    string             `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	IsUndone    bool               `json:"is_undone"`
	UndoneBy    *string            `json:"undone_by"`
	UndoneAt    *string            `json:"undone_at"`
}

// GET /api/audit-logs?entity_type=stock_adjustment&entity_id=p1&branch_id=...
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.BranchFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := db.Model(&models.AuditLog{})
		if branchID != "" {
			dbq = dbq.Where("branch_id = ?", branchID)
		}
		if v := c.Query("user_id"); v != "" {
			dbq = dbq.Where("user_id = ?", v)
		}
		if v := c.Query("entity_type"); v != "" {
			dbq = dbq.Where("entity_type = ?", v)
		}
		if v := c.Query("entity_id"); v != "" {
			dbq = dbq.Where("entity_id = ?", v)
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC").Limit(500).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			var undoneAt *string
			if l.UndoneAt != nil {
				formatted := l.UndoneAt.Format(timeLayout)
				undoneAt = &formatted
			}

			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format(timeLayout),
				BranchID:    l.BranchID,
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				IsUndone:    l.IsUndone,
				UndoneBy:    l.UndoneBy,
				UndoneAt:    undoneAt,
			})
		}

		return c.JSON(resp)
	}
}

// POST /api/audit-logs/:id/undo
func UndoAuditLogHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}

		entry, err := svc.Find(c.Params("id"))
		if errors.Is(err, ErrLogNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Audit log not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not read audit log")
		}

		switch id.Role {
		case models.RoleSuperAdmin:
		case models.RoleBranchAdmin:
			// Branch admins may only undo changes of their own branch.
			if entry.BranchID == nil || !auth.CanAccessBranch(c, *entry.BranchID) {
				return fiber.NewError(fiber.StatusForbidden, "You can only undo changes of your own branch")
			}
		default:
			return fiber.NewError(fiber.StatusForbidden, "You are not allowed to undo changes")
		}

		err = svc.Undo(entry.ID, id.UserID, id.Name)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyUndone), errors.Is(err, ErrNotUndoable):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrLogNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Audit log not found")
		default:
			log.WithError(err).WithField("audit_log_id", entry.ID).Error("undo failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not undo change")
		}

		return c.JSON(fiber.Map{
			"message": "Change undone",
		})
	}
}

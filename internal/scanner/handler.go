package scanner

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"parami-backend/internal/auth"
	"parami-backend/internal/gs1"
	"parami-backend/internal/inventory"
	"parami-backend/internal/models"
)

type ScanRequest struct {
	RawData string `json:"raw_data"`
	// Manual entries skip decoding and use the fields below.
	Manual       bool   `json:"manual"`
	GTIN         string `json:"gtin"`
	BatchNumber  string `json:"batch_number"`
	ExpiryDate   string `json:"expiry_date"`
	SerialNumber string `json:"serial_number"`
}

// Handler exposes the scanner workflow. Sessions live in memory per user and branch.
type Handler struct {
	resolver *Resolver
	sessions *SessionStore
}

func NewHandler(resolver *Resolver, sessions *SessionStore) *Handler {
	return &Handler{resolver: resolver, sessions: sessions}
}

// Register mounts the scanner routes on r.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/scan", h.Scan())
	r.Get("/active", h.Active())
	r.Delete("/active", h.ClearActive())
	r.Post("/confirm", h.Confirm())
	r.Get("/history", h.History())
	r.Delete("/history", h.ClearHistory())
	r.Get("/logs", h.Logs())
	r.Post("/history/:id/retry", h.Retry())
}

func (h *Handler) session(c *fiber.Ctx) (*Session, error) {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return nil, err
	}
	branchID, err := auth.BranchFromQueryOrRole(c)
	if err != nil {
		return nil, err
	}
	if branchID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}

	operator := id.Name
	if operator == "" {
		operator = "Unknown"
	}
	return h.sessions.Get(id.UserID, branchID, operator), nil
}

func manualRecord(body ScanRequest) (gs1.Record, error) {
	rec := gs1.Record{
		GTIN:         strings.TrimSpace(body.GTIN),
		BatchNumber:  strings.TrimSpace(body.BatchNumber),
		SerialNumber: strings.TrimSpace(body.SerialNumber),
		RawData:      strings.TrimSpace(body.RawData),
		Type:         models.ScanTypeManual,
	}
	if rec.RawData == "" {
		rec.RawData = rec.GTIN
	}
	if rec.RawData == "" {
		return rec, fiber.NewError(fiber.StatusBadRequest, "gtin or raw_data is required")
	}
	if v := strings.TrimSpace(body.ExpiryDate); v != "" {
		t, err := inventory.ParseDate(v)
		if err != nil {
			return rec, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rec.ExpiryDate = &t
	}
	return rec, nil
}

// POST /api/scanner/scan
func (h *Handler) Scan() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}

		var body ScanRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var rec gs1.Record
		if body.Manual {
			rec, err = manualRecord(body)
			if err != nil {
				return err
			}
		} else {
			if strings.TrimSpace(body.RawData) == "" {
				return fiber.NewError(fiber.StatusBadRequest, "raw_data is required")
			}
			rec, err = gs1.Parse(body.RawData)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Could not read code: "+err.Error())
			}
		}

		draft, err := h.resolver.StartScan(c.UserContext(), sess, rec)
		if err != nil {
			return scanHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"active": draft,
			"state":  sess.State(),
		})
	}
}

// GET /api/scanner/active
func (h *Handler) Active() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"active": sess.ActiveDraft(),
			"state":  sess.State(),
		})
	}
}

// DELETE /api/scanner/active
func (h *Handler) ClearActive() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		if err := h.resolver.ClearActiveDraft(sess); err != nil {
			return scanHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/scanner/confirm
func (h *Handler) Confirm() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}

		var body models.ScannedItem
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		item, err := h.resolver.ConfirmAndSync(c.UserContext(), sess, body)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"item": item})
		case errors.Is(err, inventory.ErrProductNotFound):
			// The rejected scan is in the history; hand it back with the error.
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": msgNotFound,
				"item":  item,
			})
		default:
			return scanHTTPError(err)
		}
	}
}

// GET /api/scanner/history
func (h *Handler) History() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"items": sess.History()})
	}
}

// DELETE /api/scanner/history
func (h *Handler) ClearHistory() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		h.resolver.ClearHistory(sess)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/scanner/logs
func (h *Handler) Logs() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"logs": sess.Logs()})
	}
}

// POST /api/scanner/history/:id/retry
func (h *Handler) Retry() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		return scanHTTPError(h.resolver.RetrySync(sess, c.Params("id")))
	}
}

func scanHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNoActiveDraft), errors.Is(err, ErrDraftMismatch), errors.Is(err, ErrSyncInProgress):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrRetryNotSupported):
		return fiber.NewError(fiber.StatusNotImplemented, err.Error())
	}
	log.WithError(err).Error("scanner request failed")
	return fiber.NewError(fiber.StatusInternalServerError, "Could not sync scan")
}

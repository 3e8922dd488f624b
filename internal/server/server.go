// Package server assembles the fiber application and its routes.
package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"parami-backend/internal/admin"
	"parami-backend/internal/audit"
	"parami-backend/internal/auth"
	"parami-backend/internal/config"
	"parami-backend/internal/inventory"
	"parami-backend/internal/models"
	"parami-backend/internal/scanner"
)

// Services are the long-lived collaborators behind the handlers.
type Services struct {
	Stock      *inventory.StockService
	Reconciler *inventory.Reconciler
	Audit      *audit.Service
	Resolver   *scanner.Resolver
	Sessions   *scanner.SessionStore
}

// NewServices wires the inventory core, scanner and audit trail over db.
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	store := inventory.NewGormStore(db)
	stock := inventory.NewStockService(db)

	auditSvc := audit.NewService(db)
	auditSvc.Register(models.AuditEntityStockAdjustment, stock.RevertAdjustment)

	return &Services{
		Stock:      stock,
		Reconciler: inventory.NewReconciler(store),
		Audit:      auditSvc,
		Resolver:   scanner.NewResolver(store.Products(), inventory.NewAdjuster(store)),
		Sessions:   scanner.NewSessionStore(cfg.ScanHistoryLimit, cfg.SyncLogLimit),
	}
}

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
		})
	}
	log.WithError(err).WithField("path", c.Path()).Error("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Unexpected server error",
	})
}

func New(cfg *config.Config, db *gorm.DB, svc *Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: log.StandardLogger().Writer(),
	}))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler(db))

	managers := auth.RequireRole(models.RoleSuperAdmin, models.RoleBranchAdmin)

	// Products and stock
	protected.Get("/products", inventory.ListProductsHandler(db))
	protected.Get("/products/categories", inventory.ListCategoriesHandler(db))
	protected.Post("/products", managers, inventory.CreateProductHandler(db))
	protected.Post("/products/import", managers, inventory.ImportReceiptHandler(svc.Stock))
	protected.Put("/products/:id", managers, inventory.UpdateProductHandler(db))
	protected.Delete("/products/:id", managers, inventory.DeleteProductHandler(db))
	protected.Get("/products/:id/batches", inventory.ListBatchesHandler(db))
	protected.Post("/products/:id/batches", managers, inventory.UpsertBatchHandler(db))
	protected.Post("/products/:id/stock-adjust", inventory.StockAdjustHandler(db, svc.Stock))
	protected.Post("/products/:id/write-off", inventory.WriteOffHandler(db, svc.Stock))
	protected.Get("/inventory/reconciliation", inventory.ReconciliationHandler(svc.Reconciler))
	protected.Get("/inventory/expiring", inventory.ExpiringBatchesHandler(svc.Stock))
	protected.Get("/inventory/low-stock", inventory.LowStockHandler(svc.Stock))

	// Scanner
	scanner.NewHandler(svc.Resolver, svc.Sessions).Register(protected.Group("/scanner"))

	// Audit trail
	protected.Get("/audit-logs", managers, audit.ListAuditLogsHandler(db))
	protected.Post("/audit-logs/:id/undo", managers, audit.UndoAuditLogHandler(svc.Audit))

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	adminRoutes.Post("/branches", admin.CreateBranchHandler(db))
	adminRoutes.Get("/branches", admin.ListBranchesHandler(db))
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler(db))
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler(db))
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler(db))
	adminRoutes.Post("/branches/:id/users", admin.CreateBranchUserHandler(db))
	adminRoutes.Get("/branches/:id/users", admin.ListBranchUsersHandler(db))

	return app
}

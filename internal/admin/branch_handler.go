package admin

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"parami-backend/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

type BranchResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	ManagerName string `json:"manager_name"`
	CreatedAt   string `json:"created_at"`
}

type CreateBranchRequest struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Address     string  `json:"address"`
	Phone       *string `json:"phone"`
	ManagerName *string `json:"manager_name"`
}

type UpdateBranchRequest struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	ManagerName *string `json:"manager_name"`
}

type CreateBranchUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"` // branch_admin (default) or pharmacist
}

type BranchUserResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	BranchID  *string `json:"branch_id"`
	CreatedAt string  `json:"created_at"`
}

func toBranchResponse(b models.Branch) BranchResponse {
	return BranchResponse{
		ID:          b.ID,
		Name:        b.Name,
		Code:        b.Code,
		Address:     b.Address,
		Phone:       b.Phone,
		ManagerName: b.ManagerName,
		CreatedAt:   b.CreatedAt.Format(timeLayout),
	}
}

// ----------------------------------------
// BRANCH CRUD
// ----------------------------------------

func CreateBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Code = strings.TrimSpace(body.Code)
		if body.Name == "" || body.Code == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name and code are required")
		}

		var exists int64
		if err := db.Model(&models.Branch{}).
			Where("name = ? OR code = ?", body.Name, body.Code).
			Count(&exists).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check branches")
		}
		if exists > 0 {
			return fiber.NewError(fiber.StatusConflict, "A branch with this name or code already exists")
		}

		branch := models.Branch{
			Name:    body.Name,
			Code:    body.Code,
			Address: strings.TrimSpace(body.Address),
		}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.ManagerName != nil {
			branch.ManagerName = strings.TrimSpace(*body.ManagerName)
		}

		if err := db.Create(&branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create branch")
		}

		return c.Status(fiber.StatusCreated).JSON(toBranchResponse(branch))
	}
}

func ListBranchesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branches []models.Branch
		if err := db.Order("code asc").Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list branches")
		}

		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b))
		}
		return c.JSON(res)
	}
}

func GetBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branch models.Branch
		if err := db.First(&branch, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Branch not found")
		}
		return c.JSON(toBranchResponse(branch))
	}
}

func UpdateBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branch models.Branch
		if err := db.First(&branch, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Branch not found")
		}

		var body UpdateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
			}
			branch.Name = name
		}
		if body.Code != nil {
			code := strings.TrimSpace(*body.Code)
			if code == "" {
				return fiber.NewError(fiber.StatusBadRequest, "code cannot be empty")
			}
			branch.Code = code
		}
		if body.Address != nil {
			branch.Address = strings.TrimSpace(*body.Address)
		}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.ManagerName != nil {
			branch.ManagerName = strings.TrimSpace(*body.ManagerName)
		}

		if err := db.Save(&branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update branch")
		}

		return c.JSON(toBranchResponse(branch))
	}
}

// A branch that still owns products or users cannot be deleted.
func DeleteBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var products, users int64
		db.Model(&models.Product{}).Where("branch_id = ?", id).Count(&products)
		db.Model(&models.User{}).Where("branch_id = ?", id).Count(&users)
		if products > 0 || users > 0 {
			return fiber.NewError(fiber.StatusConflict, "Branch still has products or users")
		}

		res := db.Delete(&models.Branch{}, "id = ?", id)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete branch")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Branch not found")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// BRANCH USERS
// ----------------------------------------

// POST /api/admin/branches/:id/users
func CreateBranchUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branch models.Branch
		if err := db.First(&branch, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Branch not found")
		}

		var body CreateBranchUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}

		switch body.Role {
		case "":
			body.Role = models.RoleBranchAdmin
		case models.RoleBranchAdmin, models.RolePharmacist:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "role must be branch_admin or pharmacist")
		}

		var exist int64
		db.Model(&models.User{}).Where("email = ?", body.Email).Count(&exist)
		if exist > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "This email is already registered")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         body.Role,
			BranchID:     &branch.ID,
		}
		if err := db.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create user")
		}

		return c.Status(fiber.StatusCreated).JSON(BranchUserResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      string(user.Role),
			BranchID:  user.BranchID,
			CreatedAt: user.CreatedAt.Format(timeLayout),
		})
	}
}

// GET /api/admin/branches/:id/users
func ListBranchUsersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := db.
			Where("branch_id = ?", c.Params("id")).
			Order("created_at DESC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list users")
		}

		res := make([]BranchUserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, BranchUserResponse{
				ID:        u.ID,
				Name:      u.Name,
				Email:     u.Email,
				Role:      string(u.Role),
				BranchID:  u.BranchID,
				CreatedAt: u.CreatedAt.Format(timeLayout),
			})
		}
		return c.JSON(res)
	}
}

package handlers

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hospital-app-server/internal/models"
	"hospital-app-server/internal/utils"
)

// UserHandler serves the user directory and admin user management.
type UserHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB, log *zap.Logger) *UserHandler {
	return &UserHandler{DB: db, Log: log}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	FirstName      string `json:"firstName" binding:"required,max=50"`
	LastName       string `json:"lastName" binding:"required,max=50"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	Role           string `json:"role" binding:"required,oneof=patient doctor admin"`
	PhoneNumber    string `json:"phoneNumber" binding:"omitempty,max=30"`
	Department     string `json:"department" binding:"required_if=Role doctor"`
	Specialization string `json:"specialization" binding:"omitempty,max=100"`
	LicenseNumber  string `json:"licenseNumber" binding:"required_if=Role doctor,max=50"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.Department != "" && !slices.Contains(models.Departments, req.Department) {
		utils.BadRequest(c, "Unknown department")
		return
	}

	user := models.User{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Role:        models.Role(req.Role),
		PhoneNumber: req.PhoneNumber,
		IsActive:    true,
		IsVerified:  true,
	}
	if user.Role == models.RoleDoctor {
		user.Department = req.Department
		user.Specialization = req.Specialization
		license := req.LicenseNumber
		user.LicenseNumber = &license
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password")
		return
	}

	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Conflict(c, "Email or license number is already in use")
			return
		}
		h.Log.Error("create user failed", zap.Error(err))
		utils.InternalServerError(c, "Failed to create user")
		return
	}

	h.Log.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	utils.Created(c, "User created successfully", user.Sanitize())
}

// UserListQuery filters the user lists.
type UserListQuery struct {
	Role       string `form:"role" binding:"omitempty,oneof=patient doctor admin"`
	Department string `form:"department"`
	Search     string `form:"search"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (h *UserHandler) listUsers(c *gin.Context, q UserListQuery, activeOnly bool, label string) {
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.User{})
		if q.Role != "" {
			db = db.Where("role = ?", q.Role)
		}
		if q.Department != "" {
			db = db.Where("department = ?", q.Department)
		}
		if activeOnly {
			db = db.Where("is_active = ?", true)
		}
		if s := strings.TrimSpace(q.Search); s != "" {
			like := "%" + s + "%"
			db = db.Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR specialization LIKE ?", like, like, like, like)
		}
		return db
	}

	var total int64
	if err := h.DB.Scopes(filter).Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to count "+label)
		return
	}
	p := utils.NewPagination(q.Page, q.Limit, total)

	var users []models.User
	if err := h.DB.Scopes(filter).Order("last_name asc, first_name asc").
		Offset((p.Page - 1) * p.Limit).
		Limit(p.Limit).
		Find(&users).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch "+label)
		return
	}
	utils.Success(c, strings.ToUpper(label[:1])+label[1:]+" fetched successfully", gin.H{
		label:        models.SanitizeAll(users),
		"pagination": p,
	})
}

// GetUsers handles fetching all users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	var q UserListQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	h.listUsers(c, q, false, "users")
}

// GetDoctors lists active doctors; any authenticated user may browse them to book.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	var q UserListQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	q.Role = string(models.RoleDoctor)
	h.listUsers(c, q, true, "doctors")
}

// GetPatients lists active patients for doctors and admins.
func (h *UserHandler) GetPatients(c *gin.Context) {
	var q UserListQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	q.Role = string(models.RolePatient)
	q.Department = ""
	h.listUsers(c, q, true, "patients")
}

// GetDepartments returns the fixed department list.
func (h *UserHandler) GetDepartments(c *gin.Context) {
	utils.Success(c, "Departments fetched successfully", models.Departments)
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, ok := h.findUser(c, c.Param("id"))
	if !ok {
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
type UpdateUserRequest struct {
	FirstName      *string `json:"firstName" binding:"omitempty,min=1,max=50"`
	LastName       *string `json:"lastName" binding:"omitempty,min=1,max=50"`
	Email          *string `json:"email" binding:"omitempty,email"`
	PhoneNumber    *string `json:"phoneNumber" binding:"omitempty,max=30"`
	Department     *string `json:"department"`
	Specialization *string `json:"specialization" binding:"omitempty,max=100"`
	IsActive       *bool   `json:"isActive"`
	IsVerified     *bool   `json:"isVerified"`
}

// UpdateUser handles updating a user by ID (admin). Role changes are not supported.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	user, ok := h.findUser(c, c.Param("id"))
	if !ok {
		return
	}

	updates := map[string]any{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Department != nil {
		if user.Role != models.RoleDoctor || !slices.Contains(models.Departments, *req.Department) {
			utils.BadRequest(c, "Department applies to doctors and must be a known department")
			return
		}
		updates["department"] = *req.Department
	}
	if req.Specialization != nil {
		updates["specialization"] = *req.Specialization
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsVerified != nil {
		updates["is_verified"] = *req.IsVerified
	}

	if len(updates) > 0 {
		if err := h.DB.Model(user).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				utils.Conflict(c, "Email is already in use")
				return
			}
			utils.InternalServerError(c, "Failed to update user")
			return
		}
		if user, ok = h.findUser(c, user.ID); !ok {
			return
		}
	}
	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeactivateUser disables login and booking for a user without removing history.
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	user, ok := h.findUser(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.DB.Model(user).Update("is_active", false).Error; err != nil {
		utils.InternalServerError(c, "Failed to deactivate user")
		return
	}
	if err := h.DB.Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", user.ID, false).
		Update("is_revoked", true).Error; err != nil {
		h.Log.Warn("revoke tokens on deactivate failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.IsActive = false
	h.Log.Info("user deactivated", zap.String("user_id", user.ID))
	utils.Success(c, "User deactivated successfully", user.Sanitize())
}

// DeleteUser handles deleting a user by ID (admin). Users with clinical
// history cannot be removed and should be deactivated instead.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	user, ok := h.findUser(c, c.Param("id"))
	if !ok {
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", user.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			utils.Conflict(c, "User has appointments or records; deactivate instead")
			return
		}
		utils.InternalServerError(c, "Failed to delete user")
		return
	}
	utils.Success(c, "User deleted successfully", nil)
}

func (h *UserHandler) findUser(c *gin.Context, id string) (*models.User, bool) {
	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return nil, false
	}
	return &user, true
}

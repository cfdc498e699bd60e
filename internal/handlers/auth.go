package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hospital-app-server/internal/config"
	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Log: log}
}

// RegisterRequest is the public sign-up form. Only patients self-register;
// doctors and admins are created by an administrator.
type RegisterRequest struct {
	FirstName   string     `json:"firstName" binding:"required,max=50"`
	LastName    string     `json:"lastName" binding:"required,max=50"`
	Email       string     `json:"email" binding:"required,email"`
	Password    string     `json:"password" binding:"required,min=8"`
	PhoneNumber string     `json:"phoneNumber" binding:"omitempty,max=30"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Address     string     `json:"address" binding:"omitempty,max=255"`
}

// Register handles patient registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.InternalServerError(c, "Database error")
		return
	}
	if count > 0 {
		utils.Conflict(c, "User with this email already exists")
		return
	}

	user := models.User{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       email,
		Role:        models.RolePatient,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: req.DateOfBirth,
		Address:     req.Address,
		IsActive:    true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password")
		return
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Conflict(c, "User with this email already exists")
			return
		}
		h.Log.Error("register user failed", zap.Error(err))
		utils.InternalServerError(c, "Failed to create user")
		return
	}

	h.Log.Info("user registered", zap.String("user_id", user.ID))
	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login. Deactivated accounts cannot sign in.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return
	}
	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}
	if !user.IsActive {
		utils.Unauthorized(c, "Account is deactivated")
		return
	}

	pair, err := h.issueTokens(c, &user)
	if err != nil {
		return
	}
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates a refresh token: the presented one is revoked and a new pair issued.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	presented, err := c.Cookie(refreshCookie)
	if err != nil || presented == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		presented = req.RefreshToken
	}

	claims, err := utils.ValidateToken(presented, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	var stored models.RefreshToken
	if err := h.DB.Where("token = ? AND user_id = ?", presented, claims.UserID).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return
	}
	if !stored.Usable(time.Now()) {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil || !user.IsActive {
		utils.Unauthorized(c, "User not found or inactive")
		return
	}

	pair, err := h.generateTokens(c, &user)
	if err != nil {
		return
	}
	// Revoke and replacement commit together; on failure the presented token stays valid.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		// Only one concurrent refresh may win the revoke.
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND is_revoked = ?", stored.ID, false).
			Update("is_revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errRefreshReused
		}
		return storeRefreshToken(tx, &user, pair)
	})
	if errors.Is(err, errRefreshReused) {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}
	if err != nil {
		h.Log.Error("rotate refresh token failed", zap.String("user_id", user.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to rotate refresh token")
		return
	}
	h.setRefreshCookie(c, pair)

	utils.Success(c, "Access token refreshed successfully", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

var errRefreshReused = errors.New("refresh token already rotated")

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (utils.TokenPair, error) {
	pair, err := h.generateTokens(c, user)
	if err != nil {
		return pair, err
	}
	if err := storeRefreshToken(h.DB, user, pair); err != nil {
		h.Log.Error("store refresh token failed", zap.Error(err))
		utils.InternalServerError(c, "Failed to store refresh token")
		return pair, err
	}
	h.setRefreshCookie(c, pair)
	return pair, nil
}

func (h *AuthHandler) generateTokens(c *gin.Context, user *models.User) (utils.TokenPair, error) {
	pair, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		h.Log.Error("generate tokens failed", zap.Error(err))
		utils.InternalServerError(c, "Failed to generate tokens")
	}
	return pair, err
}

func storeRefreshToken(db *gorm.DB, user *models.User, pair utils.TokenPair) error {
	return db.Create(&models.RefreshToken{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt,
	}).Error
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, pair utils.TokenPair) {
	c.SetCookie(refreshCookie, pair.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60, "/", "", !h.Cfg.IsDevelopment(), true)
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout revokes the presented refresh token. Unknown tokens still log out.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}

	if token != "" {
		if err := h.DB.Model(&models.RefreshToken{}).
			Where("token = ? AND is_revoked = ?", token, false).
			Updates(map[string]any{"is_revoked": true, "expires_at": time.Now()}).Error; err != nil {
			utils.InternalServerError(c, "Failed to revoke refresh token")
			return
		}
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", !h.Cfg.IsDevelopment(), true)
	utils.Success(c, "Logout successful", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User profile not found")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
type UpdateProfileRequest struct {
	FirstName      *string    `json:"firstName" binding:"omitempty,min=1,max=50"`
	LastName       *string    `json:"lastName" binding:"omitempty,min=1,max=50"`
	PhoneNumber    *string    `json:"phoneNumber" binding:"omitempty,max=30"`
	Address        *string    `json:"address" binding:"omitempty,max=255"`
	DateOfBirth    *time.Time `json:"dateOfBirth"`
	Specialization *string    `json:"specialization" binding:"omitempty,max=100"`
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	updates := map[string]any{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.DateOfBirth != nil {
		updates["date_of_birth"] = *req.DateOfBirth
	}
	if req.Specialization != nil && user.Role == models.RoleDoctor {
		updates["specialization"] = *req.Specialization
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
			utils.InternalServerError(c, "Failed to update profile")
			return
		}
		if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
			utils.InternalServerError(c, "Failed to reload profile")
			return
		}
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

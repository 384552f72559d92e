package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
	"vendra-system/internal/utils"
)

const (
	STAFF_CACHE_PREFIX = "staff:"
	STAFF_LIST_KEY     = "staff:list"
	ROLE_CACHE_KEY     = "roles:list"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data}
}

func errorResponse(message string) APIResponse {
	return APIResponse{Success: false, Message: message}
}

type StaffHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewStaffHandler(db *gorm.DB, redisClient *redis.Client) *StaffHandler {
	return &StaffHandler{
		db:    db,
		redis: redisClient,
	}
}

func (s *StaffHandler) invalidateStaffCaches(c *gin.Context, staffIDs ...int64) {
	ctx := c.Request.Context()
	_ = s.redis.Del(ctx, STAFF_LIST_KEY, ROLE_CACHE_KEY)
	for _, id := range staffIDs {
		_ = s.redis.Del(ctx, fmt.Sprintf("%s%d", STAFF_CACHE_PREFIX, id))
	}
}

// --- Auth ---

type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Firstname string `json:"firstname" binding:"required"`
	Lastname  string `json:"lastname" binding:"required"`
	RoleID    int32  `json:"role_id" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
}

func (s *StaffHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	var existing models.User
	if err := s.db.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, errorResponse("Username or email already exists"))
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	var role models.Role
	if err := s.db.First(&role, req.RoleID).Error; err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid role specified"))
		return
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error hashing password"))
		return
	}

	newUser := models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(pwHash),
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		RoleID:    req.RoleID,
		IsActive:  true,
	}

	if err := s.db.Create(&newUser).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error creating user"))
		return
	}

	token, exp, err := utils.GenerateToken(newUser.ID, newUser.Username, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error generating token"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("User registered successfully", AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		UserID:    newUser.ID,
		Username:  newUser.Username,
	}))
}

func (s *StaffHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, errorResponse("Invalid username or password"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Invalid username or password"))
		return
	}

	token, exp, err := utils.GenerateToken(user.ID, user.Username, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error generating token"))
		return
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(&user)

	c.JSON(http.StatusOK, successResponse("Login successful", AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		UserID:    user.ID,
		Username:  user.Username,
	}))
}

// --- Staff ---

type CreateStaffRequest struct {
	StaffName string `json:"staff_name" binding:"required"`
	Email     string `json:"email"`
	StaffType string `json:"staff_type"`
	RoleID    int32  `json:"role_id"`
}

type UpdateStaffRequest struct {
	StaffName *string `json:"staff_name"`
	Email     *string `json:"email"`
	RoleID    *int32  `json:"role_id"`
	IsActive  *bool   `json:"is_active"`
}

func (s *StaffHandler) CreateStaff(c *gin.Context) {
	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	staffType := req.StaffType
	if staffType == "" {
		staffType = "staff"
	}
	if staffType != "staff" && staffType != "affiliate" {
		c.JSON(http.StatusBadRequest, errorResponse("staff_type must be staff or affiliate"))
		return
	}

	// Affiliates are paid by the program settings, so no role is required.
	if staffType == "staff" {
		var role models.Role
		if err := s.db.First(&role, req.RoleID).Error; err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid role specified"))
			return
		}
	}

	staff := models.Staff{
		StaffName:       req.StaffName,
		Email:           req.Email,
		StaffType:       staffType,
		RoleID:          req.RoleID,
		TotalCommission: "0",
		PaidCommission:  "0",
		IsActive:        true,
	}

	if err := s.db.Create(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error creating staff member"))
		return
	}

	s.invalidateStaffCaches(c)

	c.JSON(http.StatusCreated, successResponse("Staff member created", staff))
}

func (s *StaffHandler) ListStaff(c *gin.Context) {
	var staff []models.Staff

	query := s.db.Preload("Role").Order("id")

	if v := c.Query("type"); v != "" {
		query = query.Where("staff_type = ?", v)
	}
	if term := c.Query("search"); term != "" {
		query = query.Where("staff_name ILIKE ?", "%"+term+"%")
	}

	if err := query.Find(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Staff retrieved", staff))
}

func (s *StaffHandler) GetStaff(c *gin.Context) {
	staffID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid staff ID"))
		return
	}

	var staff models.Staff
	if err := s.db.Preload("Role").Preload("Payouts").First(&staff, staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Staff member not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Staff member retrieved", staff))
}

func (s *StaffHandler) UpdateStaff(c *gin.Context) {
	staffID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid staff ID"))
		return
	}

	var req UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	var staff models.Staff
	if err := s.db.First(&staff, staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Staff member not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	updates := map[string]interface{}{}
	if req.StaffName != nil {
		updates["staff_name"] = *req.StaffName
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.RoleID != nil {
		var role models.Role
		if err := s.db.First(&role, *req.RoleID).Error; err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid role specified"))
			return
		}
		updates["role_id"] = *req.RoleID
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(&staff).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, errorResponse("Error updating staff member"))
			return
		}
	}

	s.invalidateStaffCaches(c, staffID)

	c.JSON(http.StatusOK, successResponse("Staff member updated", staff))
}

// --- Roles ---

type CreateRoleRequest struct {
	RoleName       string `json:"role_name" binding:"required"`
	AccessLevel    int32  `json:"access_level"`
	CommissionType string `json:"commission_type" binding:"required"`
	CommissionRate string `json:"commission_rate" binding:"required"`
}

func (s *StaffHandler) CreateRole(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	if req.CommissionType != "percentage" && req.CommissionType != "fixed" {
		c.JSON(http.StatusBadRequest, errorResponse("commission_type must be percentage or fixed"))
		return
	}
	rate, err := decimal.NewFromString(req.CommissionRate)
	if err != nil || rate.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse("commission_rate must be a non-negative decimal"))
		return
	}

	role := models.Role{
		RoleName:       req.RoleName,
		AccessLevel:    req.AccessLevel,
		CommissionType: req.CommissionType,
		CommissionRate: rate.String(),
	}

	if err := s.db.Create(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error creating role"))
		return
	}

	_ = s.redis.Del(c.Request.Context(), ROLE_CACHE_KEY)

	c.JSON(http.StatusCreated, successResponse("Role created", role))
}

func (s *StaffHandler) ListRoles(c *gin.Context) {
	var roles []models.Role
	if err := s.db.Order("id").Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Roles retrieved", roles))
}

// --- Program Settings ---

type UpdateProgramRequest struct {
	CommissionType string `json:"commission_type" binding:"required"`
	CommissionRate string `json:"commission_rate" binding:"required"`
	Currency       string `json:"currency"`
}

func (s *StaffHandler) GetProgramSettings(c *gin.Context) {
	var settings models.ProgramSettings
	if err := s.db.First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Program settings not configured"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Program settings retrieved", settings))
}

func (s *StaffHandler) UpdateProgramSettings(c *gin.Context) {
	var req UpdateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	if req.CommissionType != "percentage" && req.CommissionType != "fixed" {
		c.JSON(http.StatusBadRequest, errorResponse("commission_type must be percentage or fixed"))
		return
	}
	rate, err := decimal.NewFromString(req.CommissionRate)
	if err != nil || rate.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse("commission_rate must be a non-negative decimal"))
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	// Single-row configuration table.
	settings := models.ProgramSettings{
		ID:             1,
		CommissionType: req.CommissionType,
		CommissionRate: rate.String(),
		Currency:       currency,
	}

	if err := s.db.Save(&settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error updating program settings"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Program settings updated", settings))
}

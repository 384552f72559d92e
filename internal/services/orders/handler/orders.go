package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data}
}

func errorResponse(message string) APIResponse {
	return APIResponse{Success: false, Message: message}
}

type OrderHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewOrderHandler(db *gorm.DB, redisClient *redis.Client) *OrderHandler {
	return &OrderHandler{
		db:    db,
		redis: redisClient,
	}
}

type CreateOrderRequest struct {
	OrderNumber  string `json:"order_number"`
	TotalAmount  string `json:"total_amount" binding:"required"`
	Currency     string `json:"currency"`
	SalesAgentID *int64 `json:"sales_agent_id"`
	AffiliateID  *int64 `json:"affiliate_id"`
	Channel      string `json:"channel"`
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil || total.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse("total_amount must be a non-negative decimal"))
		return
	}

	if req.SalesAgentID != nil {
		var staff models.Staff
		if err := s.db.First(&staff, *req.SalesAgentID).Error; err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Unknown sales agent"))
			return
		}
	}
	if req.AffiliateID != nil {
		var staff models.Staff
		if err := s.db.First(&staff, *req.AffiliateID).Error; err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Unknown affiliate"))
			return
		}
	}

	number := req.OrderNumber
	if number == "" {
		number = newOrderNumber()
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	order := models.Order{
		OrderNumber:  number,
		TotalAmount:  total.StringFixed(2),
		Currency:     currency,
		SalesAgentID: req.SalesAgentID,
		AffiliateID:  req.AffiliateID,
		Channel:      req.Channel,
		OrderDate:    time.Now().UTC(),
	}

	if err := s.db.Create(&order).Error; err != nil {
		c.JSON(http.StatusConflict, errorResponse("Error creating order, number may already exist"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order created", order))
}

func (s *OrderHandler) ListOrders(c *gin.Context) {
	var orders []models.Order
	var total int64

	query := s.db.Model(&models.Order{})

	if v := c.Query("sales_agent_id"); v != "" {
		query = query.Where("sales_agent_id = ?", v)
	}
	if v := c.Query("affiliate_id"); v != "" {
		query = query.Where("affiliate_id = ?", v)
	}

	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	page := 1
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		page = n
	}
	pageSize := 50
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 {
		pageSize = n
	}
	offset := (page - 1) * pageSize

	if err := query.Order("order_date DESC").Offset(offset).Limit(pageSize).Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Orders retrieved",
		Data:    orders,
		Meta: gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
		},
	})
}

func (s *OrderHandler) GetOrder(c *gin.Context) {
	var order models.Order
	if err := s.db.Where("order_number = ?", c.Param("number")).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Order not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Order retrieved", order))
}

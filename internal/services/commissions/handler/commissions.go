package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vendra-system/internal/commission"
	"vendra-system/internal/database/models"
)

const (
	SUMMARY_CACHE_PREFIX = "commissions:summary:"
	CACHE_TTL_LONG       = 2 * time.Hour
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

type CommissionHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCommissionHandler(db *gorm.DB, redisClient *redis.Client) *CommissionHandler {
	return &CommissionHandler{
		db:    db,
		redis: redisClient,
	}
}

// --- Model/Engine Conversions ---

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toEngineStaff(m models.Staff) commission.Staff {
	staff := commission.Staff{
		ID:              strconv.FormatInt(m.ID, 10),
		Name:            m.StaffName,
		Type:            commission.StaffType(m.StaffType),
		TotalCommission: parseDecimal(m.TotalCommission),
		PaidCommission:  parseDecimal(m.PaidCommission),
	}
	if m.Role != nil {
		staff.RoleName = m.Role.RoleName
	}
	for _, p := range m.Payouts {
		staff.PayoutHistory = append(staff.PayoutHistory, commission.Payout{
			ID:              p.PayoutID,
			Date:            p.PayoutDate,
			Amount:          parseDecimal(p.Amount),
			Currency:        p.Currency,
			PaidItemIDs:     p.PaidItemIDs,
			PaidByStaffID:   strconv.FormatInt(p.PaidByStaffID, 10),
			PaidByStaffName: p.PaidByStaffName,
		})
	}
	return staff
}

func toEngineOrder(m models.Order) commission.Order {
	order := commission.Order{
		Number:   m.OrderNumber,
		Total:    parseDecimal(m.TotalAmount),
		Currency: m.Currency,
	}
	if m.SalesAgentID != nil {
		order.SalesAgentID = strconv.FormatInt(*m.SalesAgentID, 10)
	}
	if m.AffiliateID != nil {
		order.AffiliateID = strconv.FormatInt(*m.AffiliateID, 10)
	}
	return order
}

func (s *CommissionHandler) loadRules(tx *gorm.DB) (map[string]commission.Rule, commission.ProgramSettings, error) {
	var roles []models.Role
	if err := tx.Find(&roles).Error; err != nil {
		return nil, commission.ProgramSettings{}, err
	}
	ruleMap := make(map[string]commission.Rule, len(roles))
	for _, r := range roles {
		ruleMap[r.RoleName] = commission.Rule{
			Type: commission.RuleType(r.CommissionType),
			Rate: parseDecimal(r.CommissionRate),
		}
	}

	var settings models.ProgramSettings
	program := commission.ProgramSettings{}
	if err := tx.First(&settings).Error; err == nil {
		program = commission.ProgramSettings{
			Rule: commission.Rule{
				Type: commission.RuleType(settings.CommissionType),
				Rate: parseDecimal(settings.CommissionRate),
			},
			Currency: settings.Currency,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commission.ProgramSettings{}, err
	}

	return ruleMap, program, nil
}

func (s *CommissionHandler) loadOrdersFor(tx *gorm.DB, staffID int64, staffType string) ([]models.Order, error) {
	var orders []models.Order
	query := tx.Order("id")
	if staffType == string(commission.StaffAffiliate) {
		query = query.Where("affiliate_id = ?", staffID)
	} else {
		query = query.Where("sales_agent_id = ?", staffID)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// --- Response Structs ---

type UnpaidOrderResponse struct {
	OrderNumber string `json:"order_number"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
	Commission  string `json:"commission"`
}

type UnpaidCommissionResponse struct {
	StaffID      int64                 `json:"staff_id"`
	StaffName    string                `json:"staff_name"`
	UnpaidOrders []UnpaidOrderResponse `json:"unpaid_orders"`
	UnpaidTotal  string                `json:"unpaid_total"`
}

// --- Endpoints ---

func (s *CommissionHandler) GetUnpaidCommission(c *gin.Context) {
	staffID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid staff ID"))
		return
	}

	var staffModel models.Staff
	if err := s.db.Preload("Role").Preload("Payouts").First(&staffModel, staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Staff member not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	orders, err := s.loadOrdersFor(s.db, staffModel.ID, staffModel.StaffType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	staff := toEngineStaff(staffModel)
	ruleMap, program, err := s.loadRules(s.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	engineOrders := make([]commission.Order, len(orders))
	for i, o := range orders {
		engineOrders[i] = toEngineOrder(o)
	}

	agg := commission.AggregateUnpaidCommission(engineOrders, staff, ruleMap, program)

	resp := UnpaidCommissionResponse{
		StaffID:     staffModel.ID,
		StaffName:   staffModel.StaffName,
		UnpaidTotal: agg.Total.StringFixed(2),
	}
	for _, oc := range agg.UnpaidOrders {
		resp.UnpaidOrders = append(resp.UnpaidOrders, UnpaidOrderResponse{
			OrderNumber: oc.Order.Number,
			Total:       oc.Order.Total.StringFixed(2),
			Currency:    oc.Order.Currency,
			Commission:  oc.Commission.StringFixed(2),
		})
	}

	c.JSON(http.StatusOK, successResponse("Unpaid commission retrieved", resp))
}

// RecordPayout settles everything currently unpaid for one staff member. The
// staff row is locked for the whole transaction so concurrent payout requests
// serialize and the loser sees a zero recomputed total.
func (s *CommissionHandler) RecordPayout(c *gin.Context) {
	staffID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid staff ID"))
		return
	}

	payerID := c.GetInt64("user_id")
	payer := commission.Payer{StaffID: strconv.FormatInt(payerID, 10)}
	var payerUser models.User
	if err := s.db.First(&payerUser, payerID).Error; err == nil {
		payer.Name = payerUser.Firstname + " " + payerUser.Lastname
	}

	var record models.PayoutRecord
	var payout commission.Payout

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var staffModel models.Staff
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&staffModel, staffID)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return commission.ErrStaffMemberNotFound
		} else if result.Error != nil {
			return result.Error
		}

		if err := tx.Preload("Role").Preload("Payouts").First(&staffModel, staffID).Error; err != nil {
			return err
		}

		orders, err := s.loadOrdersFor(tx, staffModel.ID, staffModel.StaffType)
		if err != nil {
			return err
		}
		ruleMap, program, err := s.loadRules(tx)
		if err != nil {
			return err
		}

		engineOrders := make([]commission.Order, len(orders))
		for i, o := range orders {
			engineOrders[i] = toEngineOrder(o)
		}

		updated, p, err := commission.RecordPayout(toEngineStaff(staffModel), engineOrders, ruleMap, program, payer)
		if err != nil {
			return err
		}
		payout = p

		record = models.PayoutRecord{
			PayoutID:        payout.ID,
			StaffID:         staffModel.ID,
			Amount:          payout.Amount.StringFixed(2),
			Currency:        payout.Currency,
			PaidItemIDs:     payout.PaidItemIDs,
			PaidByStaffID:   payerID,
			PaidByStaffName: payer.Name,
			PayoutDate:      payout.Date,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		return tx.Model(&staffModel).Updates(map[string]interface{}{
			"paid_commission":  updated.PaidCommission.StringFixed(2),
			"total_commission": updated.TotalCommission.StringFixed(2),
		}).Error
	})

	if err != nil {
		switch {
		case errors.Is(err, commission.ErrStaffMemberNotFound):
			c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		case errors.Is(err, commission.ErrNothingToPayOut):
			c.JSON(http.StatusConflict, errorResponse(err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, errorResponse("Failed to record payout"))
		}
		return
	}

	_ = s.redis.Del(c.Request.Context(), fmt.Sprintf("%s%d", SUMMARY_CACHE_PREFIX, staffID))

	c.JSON(http.StatusCreated, successResponse("Payout recorded", record))
}

func (s *CommissionHandler) ListPayouts(c *gin.Context) {
	staffID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid staff ID"))
		return
	}

	var payouts []models.PayoutRecord
	if err := s.db.Where("staff_id = ?", staffID).Order("payout_date DESC").Find(&payouts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Payouts retrieved", payouts))
}

type CommissionSummaryResponse struct {
	StaffID       int64  `json:"staff_id"`
	StaffName     string `json:"staff_name"`
	StaffType     string `json:"staff_type"`
	UnpaidTotal   string `json:"unpaid_total"`
	PaidTotal     string `json:"paid_total"`
	PayoutCount   int    `json:"payout_count"`
	LifetimeTotal string `json:"lifetime_total"`
}

func (s *CommissionHandler) GetCommissionSummary(c *gin.Context) {
	staffID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid staff ID"))
		return
	}

	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("%s%d", SUMMARY_CACHE_PREFIX, staffID)

	if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var cached CommissionSummaryResponse
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			c.JSON(http.StatusOK, successResponse("Commission summary retrieved", cached))
			return
		}
	}

	var staffModel models.Staff
	if err := s.db.Preload("Role").Preload("Payouts").First(&staffModel, staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Staff member not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	orders, err := s.loadOrdersFor(s.db, staffModel.ID, staffModel.StaffType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	ruleMap, program, err := s.loadRules(s.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	engineOrders := make([]commission.Order, len(orders))
	for i, o := range orders {
		engineOrders[i] = toEngineOrder(o)
	}

	staff := toEngineStaff(staffModel)
	agg := commission.AggregateUnpaidCommission(engineOrders, staff, ruleMap, program)

	paid := decimal.Zero
	for _, p := range staff.PayoutHistory {
		paid = paid.Add(p.Amount)
	}

	summary := CommissionSummaryResponse{
		StaffID:       staffModel.ID,
		StaffName:     staffModel.StaffName,
		StaffType:     staffModel.StaffType,
		UnpaidTotal:   agg.Total.StringFixed(2),
		PaidTotal:     paid.StringFixed(2),
		PayoutCount:   len(staff.PayoutHistory),
		LifetimeTotal: agg.Total.Add(paid).StringFixed(2),
	}

	if jsonData, err := json.Marshal(summary); err == nil {
		_ = s.redis.Set(ctx, cacheKey, jsonData, CACHE_TTL_LONG).Err()
	}

	c.JSON(http.StatusOK, successResponse("Commission summary retrieved", summary))
}

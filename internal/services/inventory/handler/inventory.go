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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vendra-system/internal/database/models"
	"vendra-system/internal/ledger"
)

const (
	STOCKS_CACHE_PREFIX = "inventory:stocks:"
	LOCATIONS_CACHE_KEY = "inventory:locations"
	VARIANTS_CACHE_KEY  = "inventory:variants"
	CACHE_TTL_SHORT     = 5 * time.Minute
	CACHE_TTL_MEDIUM    = 30 * time.Minute
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

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

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data, Meta: meta}
}

// ledgerStatus maps ledger validation failures onto HTTP status codes.
func ledgerStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrSameLocationTransfer):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNoStockAtSource):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientAvailableStock), errors.Is(err, ledger.ErrInsufficientReservedStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// --- Handler ---

type InventoryHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewInventoryHandler(db *gorm.DB, redisClient *redis.Client) *InventoryHandler {
	return &InventoryHandler{
		db:    db,
		redis: redisClient,
	}
}

func (s *InventoryHandler) invalidateStockCaches(c *gin.Context, variantIDs ...int32) {
	ctx := c.Request.Context()
	_ = s.redis.Del(ctx, LOCATIONS_CACHE_KEY, VARIANTS_CACHE_KEY)
	for _, id := range variantIDs {
		_ = s.redis.Del(ctx, fmt.Sprintf("%s%d", STOCKS_CACHE_PREFIX, id))
	}
}

// --- Ledger Conversions ---

func toLedgerRecord(rec models.StockRecord, locationCode string) ledger.Record {
	return ledger.Record{
		Location:  locationCode,
		OnHand:    int(rec.OnHand),
		Available: int(rec.Available),
		Reserved:  int(rec.Reserved),
		Damaged:   int(rec.Damaged),
		Sold:      int(rec.Sold),
	}
}

func applyLedgerRecord(rec *models.StockRecord, lr ledger.Record) {
	rec.OnHand = int32(lr.OnHand)
	rec.Available = int32(lr.Available)
	rec.Reserved = int32(lr.Reserved)
	rec.Damaged = int32(lr.Damaged)
	rec.Sold = int32(lr.Sold)
	rec.UpdatedAt = time.Now()
}

func entryModel(e ledger.Entry, variantID, locationID int32, createdBy int64) models.AdjustmentEntry {
	return models.AdjustmentEntry{
		EntryID:    e.ID,
		VariantID:  variantID,
		LocationID: locationID,
		EntryType:  string(e.Type),
		Quantity:   int32(e.Quantity),
		Reason:     strPtr(e.Reason),
		Channel:    e.Channel,
		Details:    strPtr(e.Details),
		CreatedBy:  createdBy,
		CreatedAt:  e.Date,
	}
}

// --- Request Structs ---

type CreateLocationRequest struct {
	LocationCode string `json:"location_code" binding:"required"`
	LocationName string `json:"location_name" binding:"required"`
	Address      string `json:"address"`
}

type CreateVariantRequest struct {
	SKU          string `json:"sku" binding:"required"`
	ProductName  string `json:"product_name" binding:"required"`
	OptionLabel  string `json:"option_label"`
	ReorderLevel int32  `json:"reorder_level"`
}

type AdjustStockRequest struct {
	VariantID  int32  `json:"variant_id" binding:"required"`
	LocationID int32  `json:"location_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
	Reason     string `json:"reason"`
	Channel    string `json:"channel"`
}

type TransferStockRequest struct {
	VariantID      int32  `json:"variant_id" binding:"required"`
	FromLocationID int32  `json:"from_location_id" binding:"required"`
	ToLocationID   int32  `json:"to_location_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	Reason         string `json:"reason"`
}

// --- Locations ---

func (s *InventoryHandler) CreateLocation(c *gin.Context) {
	var req CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	location := models.Location{
		LocationCode: req.LocationCode,
		LocationName: req.LocationName,
		Address:      strPtr(req.Address),
		IsActive:     true,
	}

	if err := s.db.Create(&location).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error creating location"))
		return
	}

	_ = s.redis.Del(c.Request.Context(), LOCATIONS_CACHE_KEY)

	c.JSON(http.StatusCreated, successResponse("Location created", location))
}

func (s *InventoryHandler) ListLocations(c *gin.Context) {
	ctx := c.Request.Context()

	if val, err := s.redis.Get(ctx, LOCATIONS_CACHE_KEY).Result(); err == nil {
		var cached []models.Location
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			c.JSON(http.StatusOK, successResponse("Locations retrieved", cached))
			return
		}
	}

	var locations []models.Location
	if err := s.db.Order("id").Find(&locations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	if jsonData, err := json.Marshal(locations); err == nil {
		_ = s.redis.Set(ctx, LOCATIONS_CACHE_KEY, jsonData, CACHE_TTL_MEDIUM).Err()
	}

	c.JSON(http.StatusOK, successResponse("Locations retrieved", locations))
}

// --- Variants ---

func (s *InventoryHandler) CreateVariant(c *gin.Context) {
	var req CreateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	variant := models.Variant{
		SKU:          req.SKU,
		ProductName:  req.ProductName,
		OptionLabel:  req.OptionLabel,
		ReorderLevel: req.ReorderLevel,
		IsActive:     true,
	}

	if err := s.db.Create(&variant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Error creating variant"))
		return
	}

	_ = s.redis.Del(c.Request.Context(), VARIANTS_CACHE_KEY)

	c.JSON(http.StatusCreated, successResponse("Variant created", variant))
}

func (s *InventoryHandler) ListVariants(c *gin.Context) {
	var variants []models.Variant
	var total int64

	query := s.db.Model(&models.Variant{})

	if term := c.Query("search"); term != "" {
		searchTerm := "%" + term + "%"
		query = query.Where("sku ILIKE ? OR product_name ILIKE ?", searchTerm, searchTerm)
	}

	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	page, pageSize := pagination(c, 20)
	offset := (page - 1) * pageSize

	if err := query.Order("id").Offset(offset).Limit(pageSize).Preload("Stocks").Find(&variants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Variants retrieved", variants, gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
	}))
}

func pagination(c *gin.Context, defaultSize int) (int, int) {
	page := 1
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		page = n
	}
	pageSize := defaultSize
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 {
		pageSize = n
	}
	return page, pageSize
}

// --- Stocks ---

func (s *InventoryHandler) GetVariantStocks(c *gin.Context) {
	variantID, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid variant ID"))
		return
	}

	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("%s%d", STOCKS_CACHE_PREFIX, variantID)

	if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var cached []models.StockRecord
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			c.JSON(http.StatusOK, successResponse("Stocks retrieved", cached))
			return
		}
	}

	var stocks []models.StockRecord
	if err := s.db.Preload("Location").Where("variant_id = ?", variantID).Order("location_id").Find(&stocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	if jsonData, err := json.Marshal(stocks); err == nil {
		_ = s.redis.Set(ctx, cacheKey, jsonData, CACHE_TTL_SHORT).Err()
	}

	c.JSON(http.StatusOK, successResponse("Stocks retrieved", stocks))
}

// adjustStock runs one single-record ledger operation inside a transaction:
// load-or-init the row under a write lock, apply the pure operation, persist
// the result plus its audit entry. Nothing is written when the operation
// rejects its preconditions.
func (s *InventoryHandler) adjustStock(c *gin.Context, op func(ledger.Record, int, string, string) (ledger.Record, ledger.Entry, error), createMissing bool) {
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	channel := req.Channel
	if channel == "" {
		channel = ledger.ChannelManual
	}
	createdBy := c.GetInt64("user_id")

	var variant models.Variant
	if err := s.db.First(&variant, req.VariantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Variant not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	var location models.Location
	if err := s.db.First(&location, req.LocationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Location not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	var stock models.StockRecord
	var entry ledger.Entry

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("variant_id = ? AND location_id = ?", req.VariantID, req.LocationID).
			First(&stock)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if !createMissing {
				return result.Error
			}
			stock = models.StockRecord{
				VariantID:  req.VariantID,
				LocationID: req.LocationID,
				CreatedAt:  time.Now(),
			}
		} else if result.Error != nil {
			return result.Error
		}

		newRec, e, err := op(toLedgerRecord(stock, location.LocationCode), req.Quantity, req.Reason, channel)
		if err != nil {
			return err
		}
		entry = e
		applyLedgerRecord(&stock, newRec)

		if err := tx.Save(&stock).Error; err != nil {
			return err
		}

		adjustment := entryModel(entry, req.VariantID, req.LocationID, createdBy)
		return tx.Create(&adjustment).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Stock record not found"))
			return
		}
		if status := ledgerStatus(err); status != http.StatusInternalServerError {
			c.JSON(status, errorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to apply stock adjustment"))
		return
	}

	s.invalidateStockCaches(c, req.VariantID)

	c.JSON(http.StatusOK, successResponse("Stock adjusted", gin.H{
		"stock":    stock,
		"entry_id": entry.ID,
	}))
}

func (s *InventoryHandler) AddStock(c *gin.Context) {
	s.adjustStock(c, ledger.Add, true)
}

func (s *InventoryHandler) ReserveStock(c *gin.Context) {
	s.adjustStock(c, ledger.Reserve, false)
}

func (s *InventoryHandler) ReleaseStock(c *gin.Context) {
	s.adjustStock(c, ledger.Unreserve, false)
}

func (s *InventoryHandler) DamageStock(c *gin.Context) {
	s.adjustStock(c, ledger.Damage, false)
}

func (s *InventoryHandler) TransferStock(c *gin.Context) {
	var req TransferStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	createdBy := c.GetInt64("user_id")

	var variant models.Variant
	if err := s.db.First(&variant, req.VariantID).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("Variant not found"))
		return
	}

	var fromLocation, toLocation models.Location
	if err := s.db.First(&fromLocation, req.FromLocationID).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("Source location not found"))
		return
	}
	if err := s.db.First(&toLocation, req.ToLocationID).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("Destination location not found"))
		return
	}

	var fromStock, toStock models.StockRecord
	var entry ledger.Entry

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("variant_id = ? AND location_id = ?", req.VariantID, req.FromLocationID).
			First(&fromStock)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ledger.ErrNoStockAtSource
		} else if result.Error != nil {
			return result.Error
		}

		var toPtr *ledger.Record
		result = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("variant_id = ? AND location_id = ?", req.VariantID, req.ToLocationID).
			First(&toStock)
		if result.Error == nil {
			rec := toLedgerRecord(toStock, toLocation.LocationCode)
			toPtr = &rec
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		newFrom, newTo, e, err := ledger.Transfer(
			toLedgerRecord(fromStock, fromLocation.LocationCode),
			toPtr,
			toLocation.LocationCode,
			req.Quantity,
			req.Reason,
			ledger.ChannelManual,
		)
		if err != nil {
			return err
		}
		entry = e

		applyLedgerRecord(&fromStock, newFrom)
		if err := tx.Save(&fromStock).Error; err != nil {
			return err
		}

		if toPtr == nil {
			toStock = models.StockRecord{
				VariantID:  req.VariantID,
				LocationID: req.ToLocationID,
				CreatedAt:  time.Now(),
			}
		}
		applyLedgerRecord(&toStock, newTo)
		if err := tx.Save(&toStock).Error; err != nil {
			return err
		}

		// Single audit entry from the source perspective; Details names
		// both locations.
		adjustment := entryModel(entry, req.VariantID, req.FromLocationID, createdBy)
		return tx.Create(&adjustment).Error
	})

	if err != nil {
		if status := ledgerStatus(err); status != http.StatusInternalServerError {
			c.JSON(status, errorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to transfer stock"))
		return
	}

	s.invalidateStockCaches(c, req.VariantID)

	c.JSON(http.StatusOK, successResponse("Stock transferred", gin.H{
		"source_stock":      fromStock,
		"destination_stock": toStock,
		"entry_id":          entry.ID,
	}))
}

// --- Adjustments (audit trail) ---

func (s *InventoryHandler) ListAdjustments(c *gin.Context) {
	var adjustments []models.AdjustmentEntry
	var total int64

	query := s.db.Model(&models.AdjustmentEntry{})

	if v := c.Query("variant_id"); v != "" {
		query = query.Where("variant_id = ?", v)
	}
	if v := c.Query("location_id"); v != "" {
		query = query.Where("location_id = ?", v)
	}
	if v := c.Query("type"); v != "" {
		query = query.Where("entry_type = ?", v)
	}
	if v := c.Query("start_date"); v != "" {
		if startDate, err := time.Parse("2006-01-02", v); err == nil {
			query = query.Where("created_at >= ?", startDate)
		}
	}
	if v := c.Query("end_date"); v != "" {
		if endDate, err := time.Parse("2006-01-02", v); err == nil {
			query = query.Where("created_at < ?", endDate.Add(24*time.Hour))
		}
	}

	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to count adjustments"))
		return
	}

	page, pageSize := pagination(c, 50)
	offset := (page - 1) * pageSize

	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&adjustments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Adjustments retrieved", adjustments, gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
	}))
}

func (s *InventoryHandler) ListLowStock(c *gin.Context) {
	var stocks []models.StockRecord

	query := s.db.Preload("Variant").Preload("Location").
		Joins("JOIN variants ON variants.id = stock_records.variant_id").
		Where("stock_records.available <= variants.reorder_level")

	if v := c.Query("location_id"); v != "" {
		query = query.Where("stock_records.location_id = ?", v)
	}

	if err := query.Find(&stocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Low stock retrieved", stocks))
}

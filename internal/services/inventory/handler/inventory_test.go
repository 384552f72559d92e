package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vendra-system/internal/database"
	"vendra-system/internal/database/models"
	"vendra-system/internal/services/inventory/handler"
)

// memdb opens a fresh in-memory database per test. A single connection keeps
// sqlite from handing gorm a second, empty in-memory database.
func memdb(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newRedis points at a port nothing listens on, so every cache read misses
// and every handler exercises its database fallback.
func newRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func newRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memdb(t)
	h := handler.NewInventoryHandler(db, newRedis())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", int64(1))
	})
	r.POST("/inventory/locations", h.CreateLocation)
	r.GET("/inventory/locations", h.ListLocations)
	r.POST("/inventory/variants", h.CreateVariant)
	r.GET("/inventory/variants", h.ListVariants)
	r.GET("/inventory/variants/:id/stocks", h.GetVariantStocks)
	r.POST("/inventory/stocks/add", h.AddStock)
	r.POST("/inventory/stocks/reserve", h.ReserveStock)
	r.POST("/inventory/stocks/release", h.ReleaseStock)
	r.POST("/inventory/stocks/damage", h.DamageStock)
	r.POST("/inventory/stocks/transfer", h.TransferStock)
	r.GET("/inventory/adjustments", h.ListAdjustments)
	r.GET("/inventory/low-stock", h.ListLowStock)
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedLocation(t *testing.T, db *gorm.DB, code string) models.Location {
	t.Helper()
	loc := models.Location{LocationCode: code, LocationName: code, IsActive: true}
	if err := db.Create(&loc).Error; err != nil {
		t.Fatal(err)
	}
	return loc
}

func seedVariant(t *testing.T, db *gorm.DB, sku string, reorderLevel int32) models.Variant {
	t.Helper()
	v := models.Variant{SKU: sku, ProductName: "Shirt " + sku, ReorderLevel: reorderLevel, IsActive: true}
	if err := db.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	return v
}

func getStock(t *testing.T, db *gorm.DB, variantID, locationID int32) models.StockRecord {
	t.Helper()
	var stock models.StockRecord
	if err := db.Where("variant_id = ? AND location_id = ?", variantID, locationID).First(&stock).Error; err != nil {
		t.Fatalf("stock record for variant %d at location %d: %v", variantID, locationID, err)
	}
	return stock
}

func TestCreateAndListLocations(t *testing.T) {
	r, _ := newRouter(t)

	w := doJSON(t, r, http.MethodPost, "/inventory/locations", gin.H{
		"location_code": "WH-A",
		"location_name": "Main warehouse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create location: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/inventory/locations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list locations: %d", w.Code)
	}

	var resp struct {
		Data []models.Location `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].LocationCode != "WH-A" {
		t.Fatalf("locations = %+v", resp.Data)
	}
}

func TestAddStockCreatesRecordAndEntry(t *testing.T) {
	r, db := newRouter(t)
	loc := seedLocation(t, db, "WH-A")
	variant := seedVariant(t, db, "SKU-1", 0)

	w := doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id":  variant.ID,
		"location_id": loc.ID,
		"quantity":    100,
		"reason":      "initial",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add stock: %d %s", w.Code, w.Body.String())
	}

	stock := getStock(t, db, variant.ID, loc.ID)
	if stock.OnHand != 100 || stock.Available != 100 {
		t.Fatalf("stock after add: %+v", stock)
	}

	var entries []models.AdjustmentEntry
	if err := db.Find(&entries).Error; err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("adjustment entries = %d, want 1", len(entries))
	}
	if entries[0].EntryType != "initial_stock" || entries[0].Quantity != 100 || entries[0].EntryID == "" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].CreatedBy != 1 {
		t.Fatalf("entry created_by = %d, want authenticated user", entries[0].CreatedBy)
	}
}

func TestAddStockUnknownLocation(t *testing.T) {
	r, db := newRouter(t)
	variant := seedVariant(t, db, "SKU-1", 0)

	w := doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id":  variant.ID,
		"location_id": 999,
		"quantity":    10,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("add to unknown location: %d %s", w.Code, w.Body.String())
	}

	loc := seedLocation(t, db, "WH-A")
	w = doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id":  999,
		"location_id": loc.ID,
		"quantity":    10,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("add unknown variant: %d %s", w.Code, w.Body.String())
	}
}

func TestReserveFailureWritesNothing(t *testing.T) {
	r, db := newRouter(t)
	loc := seedLocation(t, db, "WH-A")
	variant := seedVariant(t, db, "SKU-1", 0)

	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 10,
	})

	w := doJSON(t, r, http.MethodPost, "/inventory/stocks/reserve", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 11,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("over-reserve: %d %s", w.Code, w.Body.String())
	}

	stock := getStock(t, db, variant.ID, loc.ID)
	if stock.Available != 10 || stock.Reserved != 0 {
		t.Fatalf("stock mutated by failed reserve: %+v", stock)
	}

	var count int64
	db.Model(&models.AdjustmentEntry{}).Where("entry_type = ?", "reserve").Count(&count)
	if count != 0 {
		t.Fatalf("failed reserve left %d audit entries", count)
	}
}

func TestDamageAndRelease(t *testing.T) {
	r, db := newRouter(t)
	loc := seedLocation(t, db, "WH-A")
	variant := seedVariant(t, db, "SKU-1", 0)

	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 10,
	})
	doJSON(t, r, http.MethodPost, "/inventory/stocks/reserve", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 4,
	})

	w := doJSON(t, r, http.MethodPost, "/inventory/stocks/damage", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 2, "reason": "broken in transit",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("damage: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/inventory/stocks/release", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("release: %d %s", w.Code, w.Body.String())
	}

	stock := getStock(t, db, variant.ID, loc.ID)
	if stock.OnHand != 10 || stock.Available != 8 || stock.Reserved != 0 || stock.Damaged != 2 {
		t.Fatalf("stock after damage+release: %+v", stock)
	}

	w = doJSON(t, r, http.MethodPost, "/inventory/stocks/release", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 1,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("release beyond reserved: %d", w.Code)
	}
}

func TestInvalidQuantityRejected(t *testing.T) {
	r, db := newRouter(t)
	loc := seedLocation(t, db, "WH-A")
	variant := seedVariant(t, db, "SKU-1", 0)

	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 10,
	})

	w := doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": -3,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative add: %d %s", w.Code, w.Body.String())
	}
}

func TestTransferBetweenLocations(t *testing.T) {
	r, db := newRouter(t)
	locA := seedLocation(t, db, "WH-A")
	locB := seedLocation(t, db, "WH-B")
	variant := seedVariant(t, db, "SKU-1", 0)

	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": variant.ID, "location_id": locA.ID, "quantity": 20,
	})
	doJSON(t, r, http.MethodPost, "/inventory/stocks/reserve", gin.H{
		"variant_id": variant.ID, "location_id": locA.ID, "quantity": 5,
	})

	w := doJSON(t, r, http.MethodPost, "/inventory/stocks/transfer", gin.H{
		"variant_id":       variant.ID,
		"from_location_id": locA.ID,
		"to_location_id":   locB.ID,
		"quantity":         10,
		"reason":           "rebalance",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("transfer: %d %s", w.Code, w.Body.String())
	}

	source := getStock(t, db, variant.ID, locA.ID)
	if source.OnHand != 10 || source.Available != 5 || source.Reserved != 5 {
		t.Fatalf("source after transfer: %+v", source)
	}
	dest := getStock(t, db, variant.ID, locB.ID)
	if dest.OnHand != 10 || dest.Available != 10 {
		t.Fatalf("destination after transfer: %+v", dest)
	}

	var entries []models.AdjustmentEntry
	if err := db.Where("entry_type = ?", "transfer").Find(&entries).Error; err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("transfer entries = %d, want 1", len(entries))
	}
	if entries[0].Quantity != -10 || entries[0].LocationID != locA.ID {
		t.Fatalf("transfer entry: %+v", entries[0])
	}
	if entries[0].Details == nil || *entries[0].Details != "From WH-A to WH-B" {
		t.Fatalf("transfer details: %+v", entries[0].Details)
	}
}

func TestTransferRejections(t *testing.T) {
	r, db := newRouter(t)
	locA := seedLocation(t, db, "WH-A")
	locB := seedLocation(t, db, "WH-B")
	variant := seedVariant(t, db, "SKU-1", 0)

	// No stock record at the source yet.
	w := doJSON(t, r, http.MethodPost, "/inventory/stocks/transfer", gin.H{
		"variant_id":       variant.ID,
		"from_location_id": locA.ID,
		"to_location_id":   locB.ID,
		"quantity":         5,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("transfer without source record: %d %s", w.Code, w.Body.String())
	}

	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": variant.ID, "location_id": locA.ID, "quantity": 5,
	})

	w = doJSON(t, r, http.MethodPost, "/inventory/stocks/transfer", gin.H{
		"variant_id":       variant.ID,
		"from_location_id": locA.ID,
		"to_location_id":   locA.ID,
		"quantity":         5,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("same-location transfer: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/inventory/stocks/transfer", gin.H{
		"variant_id":       variant.ID,
		"from_location_id": locA.ID,
		"to_location_id":   locB.ID,
		"quantity":         6,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("transfer beyond available: %d", w.Code)
	}
}

func TestListAdjustmentsFilters(t *testing.T) {
	r, db := newRouter(t)
	loc := seedLocation(t, db, "WH-A")
	variant := seedVariant(t, db, "SKU-1", 0)

	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 10,
	})
	doJSON(t, r, http.MethodPost, "/inventory/stocks/reserve", gin.H{
		"variant_id": variant.ID, "location_id": loc.ID, "quantity": 3,
	})

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/inventory/adjustments?variant_id=%d&type=reserve", variant.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list adjustments: %d %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []models.AdjustmentEntry `json:"data"`
		Meta struct {
			TotalCount int64 `json:"total_count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].EntryType != "reserve" || resp.Data[0].Quantity != -3 {
		t.Fatalf("filtered adjustments: %+v", resp.Data)
	}
	if resp.Meta.TotalCount != 1 {
		t.Fatalf("total_count = %d", resp.Meta.TotalCount)
	}
}

func TestListLowStock(t *testing.T) {
	r, db := newRouter(t)
	loc := seedLocation(t, db, "WH-A")
	low := seedVariant(t, db, "SKU-LOW", 10)
	ok := seedVariant(t, db, "SKU-OK", 2)

	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": low.ID, "location_id": loc.ID, "quantity": 5,
	})
	doJSON(t, r, http.MethodPost, "/inventory/stocks/add", gin.H{
		"variant_id": ok.ID, "location_id": loc.ID, "quantity": 50,
	})

	w := doJSON(t, r, http.MethodGet, "/inventory/low-stock", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("low stock: %d %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []models.StockRecord `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].VariantID != low.ID {
		t.Fatalf("low stock rows: %+v", resp.Data)
	}
}

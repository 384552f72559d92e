package models

import "time"

type Location struct {
	ID           int32   `gorm:"primaryKey"`
	LocationCode string  `gorm:"size:100;uniqueIndex"`
	LocationName string  `gorm:"size:255"`
	Address      *string `gorm:"size:255"`
	IsActive     bool    `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Stocks []StockRecord `gorm:"foreignKey:LocationID"`
}

type Variant struct {
	ID           int32  `gorm:"primaryKey"`
	SKU          string `gorm:"size:100;uniqueIndex"`
	ProductName  string `gorm:"size:255"`
	OptionLabel  string `gorm:"size:100"`
	ReorderLevel int32
	IsActive     bool `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Stocks []StockRecord `gorm:"foreignKey:VariantID"`
}

// StockRecord is the stock position of one variant at one location. Sold is
// a cumulative counter, not subtracted from OnHand.
type StockRecord struct {
	ID         int64 `gorm:"primaryKey"`
	VariantID  int32 `gorm:"index:idx_variant_location,unique"`
	LocationID int32 `gorm:"index:idx_variant_location,unique"`
	OnHand     int32
	Available  int32
	Reserved   int32
	Damaged    int32
	Sold       int32
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Variant  *Variant  `gorm:"foreignKey:VariantID"`
	Location *Location `gorm:"foreignKey:LocationID"`
}

// AdjustmentEntry rows are append-only; they are created inside the same
// transaction as the stock mutation they describe and never updated.
type AdjustmentEntry struct {
	ID         int64  `gorm:"primaryKey"`
	EntryID    string `gorm:"size:64;uniqueIndex"`
	VariantID  int32  `gorm:"index"`
	LocationID int32  `gorm:"index"`
	EntryType  string `gorm:"size:32;index"`
	Quantity   int32
	Reason     *string `gorm:"size:255"`
	Channel    string  `gorm:"size:32"`
	Details    *string `gorm:"size:255"`
	CreatedBy  int64
	CreatedAt  time.Time
}

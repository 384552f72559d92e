package models

import "time"

// Order is the thin order-store record feeding commission aggregation:
// totals plus attribution, nothing else.
type Order struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	OrderNumber  string     `gorm:"size:100;uniqueIndex;not null"`
	TotalAmount  string     `gorm:"type:decimal(18,2);not null"`
	Currency     string     `gorm:"size:8;not null"`
	SalesAgentID *int64     `gorm:"index"`
	AffiliateID  *int64     `gorm:"index"`
	Channel      string     `gorm:"size:32"`
	OrderDate    time.Time
	CreatedAt    *time.Time `gorm:"autoCreateTime"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("failed to scan StringArray: %v", value)
	}
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"uniqueIndex;not null"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	Firstname string `gorm:"not null"`
	Lastname  string `gorm:"not null"`
	RoleID    int32  `gorm:"not null"`
	Role      Role   `gorm:"foreignKey:RoleID"`
	IsActive  bool   `gorm:"default:true"`
	LastLogin *time.Time
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

// Role carries the commission rule for every staff member holding it:
// commission_rate is percentage points for "percentage" and an absolute
// amount for "fixed".
type Role struct {
	ID             int32      `gorm:"primaryKey;autoIncrement"`
	RoleName       string     `gorm:"uniqueIndex;not null"`
	AccessLevel    int32      `gorm:"not null"`
	CommissionType string     `gorm:"size:32;not null"`
	CommissionRate string     `gorm:"type:decimal(18,4);not null"`
	CreatedAt      *time.Time `gorm:"autoCreateTime"`
	UpdatedAt      *time.Time `gorm:"autoUpdateTime"`
}

type Staff struct {
	ID              int64      `gorm:"primaryKey;autoIncrement"`
	StaffName       string     `gorm:"not null"`
	Email           string
	StaffType       string     `gorm:"size:32;not null;default:staff"`
	RoleID          int32      `gorm:"index"`
	Role            *Role      `gorm:"foreignKey:RoleID"`
	TotalCommission string     `gorm:"type:decimal(18,2);not null;default:0"`
	PaidCommission  string     `gorm:"type:decimal(18,2);not null;default:0"`
	IsActive        bool       `gorm:"default:true"`
	CreatedAt       *time.Time `gorm:"autoCreateTime"`
	UpdatedAt       *time.Time `gorm:"autoUpdateTime"`

	Payouts []PayoutRecord `gorm:"foreignKey:StaffID"`
}

// PayoutRecord is immutable once written. PaidItemIDs holds the order
// numbers the payout settled; future unpaid aggregations exclude them.
type PayoutRecord struct {
	ID              int64       `gorm:"primaryKey;autoIncrement"`
	PayoutID        string      `gorm:"size:64;uniqueIndex"`
	StaffID         int64       `gorm:"index;not null"`
	Amount          string      `gorm:"type:decimal(18,2);not null"`
	Currency        string      `gorm:"size:8;not null"`
	PaidItemIDs     StringArray `gorm:"type:text"`
	PaidByStaffID   int64
	PaidByStaffName string
	PayoutDate      time.Time
	CreatedAt       *time.Time `gorm:"autoCreateTime"`
}

// ProgramSettings is the affiliate program configuration, kept as a single
// row and passed explicitly into engine calls.
type ProgramSettings struct {
	ID             int32      `gorm:"primaryKey"`
	CommissionType string     `gorm:"size:32;not null"`
	CommissionRate string     `gorm:"type:decimal(18,4);not null"`
	Currency       string     `gorm:"size:8;not null;default:USD"`
	UpdatedAt      *time.Time `gorm:"autoUpdateTime"`
}

package domain

import "time"

// Discount rule. A nil Category or CustomerGroup matches anything.
type Discount struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Category      *string   `gorm:"size:100" json:"category"`
	MinQty        int       `gorm:"not null;default:1" json:"min_qty"`
	Percent       float64   `gorm:"not null;check:percent >= 0 AND percent <= 100" json:"percent"`
	CustomerGroup *string   `gorm:"size:50" json:"customer_group"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Discount) TableName() string {
	return "discounts"
}

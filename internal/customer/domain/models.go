package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is a storage account holder. ConsolidatedBilling folds completed
// work orders into the monthly storage invoice instead of billing them separately.
type Customer struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name                string       `gorm:"not null" json:"name"`
	Email               string       `gorm:"not null" json:"email"`
	ConsolidatedBilling bool         `gorm:"not null" json:"consolidated_billing"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

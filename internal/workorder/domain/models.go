package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindShredding Kind = "SHREDDING"
	KindRetrieval Kind = "RETRIEVAL"
)

func (k Kind) Valid() bool {
	return k == KindShredding || k == KindRetrieval
}

type State string

const (
	StateDraft     State = "DRAFT"
	StateScheduled State = "SCHEDULED"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
)

// WorkOrder is a field service job. Completed orders of customers on
// consolidated billing wait for the next storage invoice.
type WorkOrder struct {
	ID                         snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID                      snowflake.ID    `gorm:"not null;index:ix_work_order_pending,priority:1" json:"organization_id"`
	CustomerID                 snowflake.ID    `gorm:"not null;index:ix_work_order_pending,priority:2" json:"customer_id"`
	Kind                       Kind            `gorm:"type:text;not null" json:"kind"`
	State                      State           `gorm:"type:text;not null" json:"state"`
	Description                string          `gorm:"not null" json:"description"`
	ProductCode                string          `gorm:"not null" json:"product_code"`
	Quantity                   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice                  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Subtotal                   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	PendingConsolidatedBilling bool            `gorm:"not null" json:"pending_consolidated_billing"`
	InvoiceID                  *snowflake.ID   `gorm:"index" json:"invoice_id,omitempty"`
	CompletedAt                *time.Time      `json:"completed_at,omitempty"`
	CreatedAt                  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt                  time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (WorkOrder) TableName() string { return "work_orders" }

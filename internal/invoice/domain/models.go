// Package domain contains persistence models for invoicing.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
)

// Invoice is one customer's bill for one billing period.
type Invoice struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoice_number,priority:1" json:"organization_id"`
	CustomerID      snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoice_period_customer,priority:2" json:"customer_id"`
	BillingPeriodID snowflake.ID      `gorm:"not null;uniqueIndex:ux_invoice_period_customer,priority:1" json:"billing_period_id"`
	InvoiceNumber   string            `gorm:"type:text;not null;uniqueIndex:ux_invoice_number,priority:2" json:"invoice_number"`
	InvoiceSeq      int64             `gorm:"not null" json:"-"`
	InvoiceDate     time.Time         `gorm:"not null" json:"invoice_date"`
	Status          InvoiceStatus     `gorm:"type:text;not null" json:"status"`
	SubtotalAmount  decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"subtotal_amount"`
	Currency        string            `gorm:"type:text;not null" json:"currency"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`

	Items []InvoiceItem `gorm:"-" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	InvoiceID       snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Position        int             `gorm:"not null" json:"position"`
	Kind            string          `gorm:"type:text;not null" json:"kind"`
	ProductCode     string          `gorm:"type:text;not null" json:"product_code"`
	Description     string          `gorm:"type:text" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	ContainerTypeID *snowflake.ID   `json:"container_type_id,omitempty"`
	WorkOrderID     *snowflake.ID   `gorm:"index" json:"work_order_id,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// FormatNumber renders INV-YYYYMM-000042 from the invoice date and the org sequence.
func FormatNumber(invoiceDate time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%06d", invoiceDate.UTC().Format("200601"), seq)
}

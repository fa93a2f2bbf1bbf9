package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status tracks invoicing progress of a period.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusInvoicing Status = "INVOICING"
	StatusInvoiced  Status = "INVOICED"
)

// DateLayout is the wire format of period boundaries and invoice dates.
const DateLayout = "2006-01-02"

// BillingPeriod is a date range billed as one batch. Both boundaries are
// inclusive calendar dates stored at midnight UTC.
type BillingPeriod struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"organization_id"`
	PeriodStart time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time    `gorm:"not null" json:"period_end"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	InvoiceDate *time.Time   `json:"invoice_date,omitempty"`
	ClaimedAt   *time.Time   `json:"claimed_at,omitempty"`
	ClaimToken  *string      `gorm:"type:text" json:"-"`
	InvoicedAt  *time.Time   `json:"invoiced_at,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (BillingPeriod) TableName() string { return "billing_periods" }

// EndExclusive is the first instant after the period's last day.
func (p BillingPeriod) EndExclusive() time.Time {
	return p.PeriodEnd.AddDate(0, 0, 1)
}

// Contains reports whether t falls on any day of the period.
func (p BillingPeriod) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.PeriodStart) && t.Before(p.EndExclusive())
}

// EffectiveInvoiceDate is the override when set, otherwise the period end.
func (p BillingPeriod) EffectiveInvoiceDate() time.Time {
	if p.InvoiceDate != nil && !p.InvoiceDate.IsZero() {
		return *p.InvoiceDate
	}
	return p.PeriodEnd
}

// Truncate normalizes t to midnight UTC of its calendar day.
func Truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

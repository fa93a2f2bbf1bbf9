package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const WarningZeroRate = "zero_rate"

// Warning flags a data gap that did not block billing.
type Warning struct {
	Code            string       `json:"code"`
	Message         string       `json:"message"`
	CustomerID      snowflake.ID `json:"customer_id"`
	ContainerID     snowflake.ID `json:"container_id"`
	ContainerTypeID snowflake.ID `json:"container_type_id"`
}

// StorageGroup is the storage charge of containers sharing a type and an
// effective monthly rate.
type StorageGroup struct {
	ContainerTypeID   snowflake.ID    `json:"container_type_id"`
	ContainerTypeCode string          `json:"container_type_code"`
	ContainerTypeName string          `json:"container_type_name"`
	Quantity          int             `json:"quantity"`
	UnitRate          decimal.Decimal `json:"unit_rate"`
	Subtotal          decimal.Decimal `json:"subtotal"`
}

// PreviewLine is the computed, unpersisted charge summary of one customer.
type PreviewLine struct {
	CustomerID        snowflake.ID    `json:"customer_id"`
	CustomerName      string          `json:"customer_name"`
	NewContainers     int             `json:"new_containers"`
	TotalContainers   int             `json:"total_containers"`
	PendingWorkOrders int             `json:"pending_work_orders"`
	SetupFees         decimal.Decimal `json:"setup_fees"`
	StorageFees       decimal.Decimal `json:"storage_fees"`
	MinimumAdjustment decimal.Decimal `json:"minimum_adjustment"`
	WorkOrderFees     decimal.Decimal `json:"work_order_fees"`
	Total             decimal.Decimal `json:"total"`
	StorageBreakdown  []StorageGroup  `json:"storage_breakdown"`
	Warnings          []Warning       `json:"warnings,omitempty"`
}

type PreviewTotals struct {
	Customers         int             `json:"customers"`
	NewContainers     int             `json:"new_containers"`
	TotalContainers   int             `json:"total_containers"`
	PendingWorkOrders int             `json:"pending_work_orders"`
	SetupFees         decimal.Decimal `json:"setup_fees"`
	StorageFees       decimal.Decimal `json:"storage_fees"`
	MinimumAdjustment decimal.Decimal `json:"minimum_adjustment"`
	WorkOrderFees     decimal.Decimal `json:"work_order_fees"`
	Total             decimal.Decimal `json:"total"`
}

// Add accumulates one customer line into the totals.
func (t PreviewTotals) Add(line PreviewLine) PreviewTotals {
	t.Customers++
	t.NewContainers += line.NewContainers
	t.TotalContainers += line.TotalContainers
	t.PendingWorkOrders += line.PendingWorkOrders
	t.SetupFees = t.SetupFees.Add(line.SetupFees)
	t.StorageFees = t.StorageFees.Add(line.StorageFees)
	t.MinimumAdjustment = t.MinimumAdjustment.Add(line.MinimumAdjustment)
	t.WorkOrderFees = t.WorkOrderFees.Add(line.WorkOrderFees)
	t.Total = t.Total.Add(line.Total)
	return t
}

type Preview struct {
	BillingPeriodID snowflake.ID  `json:"billing_period_id"`
	PeriodStart     time.Time     `json:"period_start"`
	PeriodEnd       time.Time     `json:"period_end"`
	Currency        string        `json:"currency"`
	Lines           []PreviewLine `json:"lines"`
	Totals          PreviewTotals `json:"totals"`
}

// RunRequest selects the period and customers of a run. Nil overrides fall
// back to the rate card; an empty string clears the value.
type RunRequest struct {
	BillingPeriodID      string
	CustomerIDs          []string
	SetupFee             *string
	MinimumMonthlyCharge *string
	IncludeWorkOrders    *bool
}

const (
	SkipReasonAlreadyInvoiced = "already_invoiced"
	SkipReasonNoContainers    = "no_containers"
	SkipReasonZeroTotal       = "zero_total"
)

type InvoiceSummary struct {
	InvoiceID     snowflake.ID    `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    snowflake.ID    `json:"customer_id"`
	Lines         int             `json:"lines"`
	Total         decimal.Decimal `json:"total"`
}

type SkippedCustomer struct {
	CustomerID snowflake.ID `json:"customer_id"`
	Reason     string       `json:"reason"`
}

type MaterializeResult struct {
	BillingPeriodID snowflake.ID      `json:"billing_period_id"`
	PeriodInvoiced  bool              `json:"period_invoiced"`
	Invoices        []InvoiceSummary  `json:"invoices"`
	Skipped         []SkippedCustomer `json:"skipped,omitempty"`
	Failures        []CustomerFailure `json:"failures,omitempty"`
	Warnings        []Warning         `json:"warnings,omitempty"`
	Total           decimal.Decimal   `json:"total"`
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type CreateBillingPeriodRequest struct {
	PeriodStart string
	PeriodEnd   string
	InvoiceDate string
}

type ListBillingPeriodRequest struct {
	PageToken string
	PageSize  int32
	Status    Status
}

type ListBillingPeriodResponse struct {
	pagination.PageInfo
	BillingPeriods []BillingPeriod `json:"billing_periods"`
}

type Service interface {
	Create(context.Context, CreateBillingPeriodRequest) (BillingPeriod, error)
	List(context.Context, ListBillingPeriodRequest) (ListBillingPeriodResponse, error)
	GetByID(context.Context, string) (BillingPeriod, error)
	// EnsureMonthlyPeriod opens the calendar month before now when no period covers it yet.
	EnsureMonthlyPeriod(ctx context.Context, orgID snowflake.ID, now time.Time) (BillingPeriod, bool, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidInvoiceDate  = errors.New("invalid_invoice_date")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrOverlappingPeriod   = errors.New("overlapping_period")
	ErrNotFound            = errors.New("not_found")
)

package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type ListInvoiceRequest struct {
	PageToken       string
	PageSize        int32
	CustomerID      string
	BillingPeriodID string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)

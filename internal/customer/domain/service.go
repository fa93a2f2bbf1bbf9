package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken           string
	PageSize            int32
	Name                string
	Email               string
	ConsolidatedBilling *bool
}

type ListCustomerFilter struct {
	Name                string
	Email               string
	ConsolidatedBilling *bool
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name                string
	Email               string
	ConsolidatedBilling bool
}

type GetCustomerRequest struct {
	ID string
}

type SetConsolidatedBillingRequest struct {
	ID      string
	Enabled bool
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	SetConsolidatedBilling(context.Context, SetConsolidatedBillingRequest) (Customer, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)

package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type CreateWorkOrderRequest struct {
	CustomerID  string
	Kind        Kind
	Description string
	ProductCode string
	Quantity    string
	UnitPrice   string
}

type ListWorkOrderRequest struct {
	PageToken  string
	PageSize   int32
	CustomerID string
	Kind       Kind
	State      State
}

type ListWorkOrderResponse struct {
	pagination.PageInfo
	WorkOrders []WorkOrder `json:"work_orders"`
}

type Service interface {
	Create(context.Context, CreateWorkOrderRequest) (WorkOrder, error)
	List(context.Context, ListWorkOrderRequest) (ListWorkOrderResponse, error)
	GetByID(context.Context, string) (WorkOrder, error)
	Complete(context.Context, string) (WorkOrder, error)
	Cancel(context.Context, string) (WorkOrder, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidTransition   = errors.New("invalid_state_transition")
	ErrNotFound            = errors.New("not_found")
)

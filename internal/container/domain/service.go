package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type CreateContainerTypeRequest struct {
	Code                string
	Name                string
	StandardMonthlyRate string
	StandardSetupFee    string
}

type CreateContainerRequest struct {
	CustomerID            string
	ContainerTypeID       string
	Barcode               string
	State                 State
	NegotiatedMonthlyRate *string
}

type ListContainerRequest struct {
	PageToken       string
	PageSize        int32
	CustomerID      string
	ContainerTypeID string
	State           State
}

type ListContainerResponse struct {
	pagination.PageInfo
	Containers []Container `json:"containers"`
}

type Service interface {
	CreateType(context.Context, CreateContainerTypeRequest) (ContainerType, error)
	ListTypes(context.Context) ([]ContainerType, error)

	Create(context.Context, CreateContainerRequest) (Container, error)
	List(context.Context, ListContainerRequest) (ListContainerResponse, error)
	GetByID(context.Context, string) (Container, error)
	Destroy(context.Context, string) (Container, error)
	PermOut(context.Context, string) (Container, error)
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidRate          = errors.New("invalid_rate")
	ErrInvalidBarcode       = errors.New("invalid_barcode")
	ErrInvalidState         = errors.New("invalid_state")
	ErrInvalidCustomer      = errors.New("invalid_customer")
	ErrInvalidContainerType = errors.New("invalid_container_type")
	ErrDuplicateCode        = errors.New("duplicate_code")
	ErrAlreadyRemoved       = errors.New("container_already_removed")
	ErrNotFound             = errors.New("not_found")
)

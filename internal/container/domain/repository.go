package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListContainerFilter struct {
	CustomerID      snowflake.ID
	ContainerTypeID snowflake.ID
	State           State
}

type Repository interface {
	InsertType(ctx context.Context, db *gorm.DB, containerType *ContainerType) error
	FindTypeByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ContainerType, error)
	ListTypes(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]ContainerType, error)
	ListTypesByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]ContainerType, error)

	Insert(ctx context.Context, db *gorm.DB, container *Container) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Container, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListContainerFilter, page pagination.Pagination) ([]*Container, error)
	UpdateState(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, state State, active bool, now time.Time) (bool, error)

	// ListBillable returns active, non-terminal containers of a customer
	// created before createdBefore, ordered by id.
	ListBillable(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, createdBefore time.Time) ([]Container, error)
	ListBillableCustomerIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, createdBefore time.Time) ([]snowflake.ID, error)
	// MarkSetupFeeCharged only touches rows whose setup fee is still uncharged.
	MarkSetupFeeCharged(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID snowflake.ID, now time.Time) (int64, error)
	SetLastBilledPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, periodID snowflake.ID, now time.Time) (int64, error)
}

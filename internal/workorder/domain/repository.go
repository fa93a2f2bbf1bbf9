package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListWorkOrderFilter struct {
	CustomerID snowflake.ID
	Kind       Kind
	State      State
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *WorkOrder) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*WorkOrder, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListWorkOrderFilter, page pagination.Pagination) ([]*WorkOrder, error)
	Complete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, pending bool, now time.Time) (bool, error)
	Cancel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (bool, error)

	// ListPendingConsolidated returns completed, uninvoiced orders flagged for
	// consolidated billing, ordered by kind then id.
	ListPendingConsolidated(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID) ([]WorkOrder, error)
	// LinkInvoice only touches rows that are still pending and uninvoiced.
	LinkInvoice(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID snowflake.ID, now time.Time) (int64, error)
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	CustomerID      snowflake.ID
	BillingPeriodID snowflake.ID
}

type Repository interface {
	// Insert reports false when the customer already has an invoice for the period.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	FindByCustomerPeriod(ctx context.Context, db *gorm.DB, orgID, periodID, customerID snowflake.ID) (*Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]InvoiceItem, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)
	NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/internal/workorder/domain"
	"github.com/smallbiznis/vaultline/pkg/db/option"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.WorkOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO work_orders (id, org_id, customer_id, kind, state, description, product_code,
		 quantity, unit_price, subtotal, pending_consolidated_billing, invoice_id, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OrgID,
		order.CustomerID,
		order.Kind,
		order.State,
		order.Description,
		order.ProductCode,
		order.Quantity,
		order.UnitPrice,
		order.Subtotal,
		order.PendingConsolidatedBilling,
		order.InvoiceID,
		order.CompletedAt,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	err := db.WithContext(ctx).
		Model(&domain.WorkOrder{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListWorkOrderFilter, page pagination.Pagination) ([]*domain.WorkOrder, error) {
	var orders []*domain.WorkOrder
	stmt := db.WithContext(ctx).
		Model(&domain.WorkOrder{}).
		Where("org_id = ?", orgID)
	if filter.CustomerID != 0 {
		stmt = option.ApplyOperator(option.Condition{Field: "customer_id", Operator: option.EQ, Value: filter.CustomerID}).Apply(stmt)
	}
	if filter.Kind != "" {
		stmt = option.ApplyOperator(option.Condition{Field: "kind", Operator: option.EQ, Value: filter.Kind}).Apply(stmt)
	}
	if filter.State != "" {
		stmt = option.ApplyOperator(option.Condition{Field: "state", Operator: option.EQ, Value: filter.State}).Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, pending bool, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE work_orders SET state = ?, pending_consolidated_billing = ?, completed_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND state IN ?`,
		domain.StateCompleted,
		pending,
		now,
		now,
		orgID,
		id,
		[]domain.State{domain.StateDraft, domain.StateScheduled},
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE work_orders SET state = ?, pending_consolidated_billing = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND state IN ?`,
		domain.StateCancelled,
		false,
		now,
		orgID,
		id,
		[]domain.State{domain.StateDraft, domain.StateScheduled},
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListPendingConsolidated(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID) ([]domain.WorkOrder, error) {
	var orders []domain.WorkOrder
	err := db.WithContext(ctx).
		Model(&domain.WorkOrder{}).
		Where("org_id = ? AND customer_id = ?", orgID, customerID).
		Where("state = ?", domain.StateCompleted).
		Where("pending_consolidated_billing = ?", true).
		Where("invoice_id IS NULL").
		Where("kind IN ?", []domain.Kind{domain.KindShredding, domain.KindRetrieval}).
		Order("kind asc, id asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) LinkInvoice(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE work_orders SET invoice_id = ?, pending_consolidated_billing = ?, updated_at = ?
		 WHERE org_id = ? AND id IN ? AND invoice_id IS NULL AND pending_consolidated_billing = ?`,
		invoiceID,
		false,
		now,
		orgID,
		ids,
		true,
	)
	return result.RowsAffected, result.Error
}

package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"gorm.io/gorm"
)

// collectWorkOrders returns the completed work orders waiting for the
// customer's storage invoice, ordered by kind then id. Customers without
// consolidated billing, or runs that exclude work orders, get nothing.
func (s *Service) collectWorkOrders(ctx context.Context, db *gorm.DB, customer customerdomain.Customer, cfg domain.RunConfig) ([]workorderdomain.WorkOrder, decimal.Decimal, error) {
	if !customer.ConsolidatedBilling || !cfg.IncludeWorkOrders {
		return nil, decimal.Zero, nil
	}

	orders, err := s.workOrderRepo.ListPendingConsolidated(ctx, db, customer.OrgID, customer.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	orders = lo.Filter(orders, func(o workorderdomain.WorkOrder, _ int) bool {
		return o.PendingConsolidatedBilling && o.InvoiceID == nil && o.State == workorderdomain.StateCompleted
	})

	total := lo.Reduce(orders, func(sum decimal.Decimal, o workorderdomain.WorkOrder, _ int) decimal.Decimal {
		return sum.Add(o.Subtotal)
	}, decimal.Zero)
	return orders, total.Round(2), nil
}

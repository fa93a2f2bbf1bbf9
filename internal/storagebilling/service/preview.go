package service

import (
	"context"
	"time"

	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	obslogger "github.com/smallbiznis/vaultline/internal/observability/logger"
	"github.com/smallbiznis/vaultline/internal/observability/metrics"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// customerBilling is everything one customer is charged for in a period.
type customerBilling struct {
	customer   customerdomain.Customer
	fresh      []containerdomain.Container
	all        []containerdomain.Container
	workOrders []workorderdomain.WorkOrder
	fees       feeBreakdown
}

// evaluate runs population selection, work order collection and fee
// aggregation for one customer against db. It only reads.
func (s *Service) evaluate(ctx context.Context, db *gorm.DB, period billingperioddomain.BillingPeriod, cfg domain.RunConfig, customer customerdomain.Customer) (customerBilling, error) {
	fresh, all, err := s.selectPopulation(ctx, db, customer.OrgID, customer.ID, period)
	if err != nil {
		return customerBilling{}, err
	}
	if len(all) == 0 {
		return customerBilling{customer: customer}, nil
	}

	types, err := s.loadContainerTypes(ctx, db, customer.OrgID, all)
	if err != nil {
		return customerBilling{}, err
	}

	orders, orderTotal, err := s.collectWorkOrders(ctx, db, customer, cfg)
	if err != nil {
		return customerBilling{}, err
	}

	return customerBilling{
		customer:   customer,
		fresh:      fresh,
		all:        all,
		workOrders: orders,
		fees:       aggregateFees(customer.ID, all, fresh, types, cfg, orderTotal),
	}, nil
}

func (b customerBilling) previewLine() domain.PreviewLine {
	return domain.PreviewLine{
		CustomerID:        b.customer.ID,
		CustomerName:      b.customer.Name,
		NewContainers:     b.fees.newContainers,
		TotalContainers:   b.fees.totalContainers,
		PendingWorkOrders: len(b.workOrders),
		SetupFees:         b.fees.setupFees,
		StorageFees:       b.fees.storageFees,
		MinimumAdjustment: b.fees.minimumAdjustment,
		WorkOrderFees:     b.fees.workOrderFees,
		Total:             b.fees.total,
		StorageBreakdown:  b.fees.groups,
		Warnings:          b.fees.warnings,
	}
}

func (s *Service) Preview(ctx context.Context, req domain.RunRequest) (preview domain.Preview, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "storagebilling.Preview")
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.ObserveRun(metrics.RunModePreview, outcome, time.Since(started))
		span.End()
	}()

	run, err := s.prepareRun(ctx, req)
	if err != nil {
		return domain.Preview{}, err
	}
	ctx = obslogger.WithBillingPeriodID(ctx, run.period.ID.String())
	span.SetAttributes(
		attribute.String("billing_period_id", run.period.ID.String()),
		attribute.Int("customers_in_scope", len(run.customers)),
	)

	preview = domain.Preview{
		BillingPeriodID: run.period.ID,
		PeriodStart:     run.period.PeriodStart,
		PeriodEnd:       run.period.PeriodEnd,
		Currency:        run.config.Currency,
		Lines:           []domain.PreviewLine{},
	}

	gaps := 0
	for _, customer := range run.customers {
		billing, err := s.evaluate(ctx, s.db, run.period, run.config, customer)
		if err != nil {
			return domain.Preview{}, err
		}
		if billing.fees.totalContainers == 0 {
			continue
		}

		line := billing.previewLine()
		for _, warning := range line.Warnings {
			s.log.Warn("container has no monthly rate",
				zap.String("customer_id", warning.CustomerID.String()),
				zap.String("container_id", warning.ContainerID.String()),
				zap.String("container_type_id", warning.ContainerTypeID.String()),
			)
		}
		gaps += len(line.Warnings)

		preview.Lines = append(preview.Lines, line)
		preview.Totals = preview.Totals.Add(line)
	}
	s.metrics.AddZeroRateGaps(gaps)

	s.log.Info("billing preview built",
		zap.String("billing_period_id", run.period.ID.String()),
		zap.Int("customers", preview.Totals.Customers),
		zap.String("total", preview.Totals.Total.StringFixed(2)),
	)
	return preview, nil
}

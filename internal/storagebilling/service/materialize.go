package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/vaultline/internal/invoice/domain"
	obslogger "github.com/smallbiznis/vaultline/internal/observability/logger"
	"github.com/smallbiznis/vaultline/internal/observability/metrics"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// customerOutcome is the result of one customer's transaction.
type customerOutcome struct {
	invoice    *invoicedomain.Invoice
	skipReason string
	warnings   []domain.Warning
}

func (s *Service) Materialize(ctx context.Context, req domain.RunRequest) (result domain.MaterializeResult, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "storagebilling.Materialize")
	defer func() {
		outcome := metrics.OutcomeSuccess
		var partial *domain.PartialFailureError
		switch {
		case errors.As(err, &partial):
			outcome = metrics.OutcomePartial
		case err != nil:
			outcome = metrics.OutcomeFailed
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.ObserveRun(metrics.RunModeMaterialize, outcome, time.Since(started))
		span.End()
	}()

	run, err := s.prepareRun(ctx, req)
	if err != nil {
		return domain.MaterializeResult{}, err
	}
	ctx = obslogger.WithBillingPeriodID(ctx, run.period.ID.String())
	if run.period.Status == billingperioddomain.StatusInvoiced {
		return domain.MaterializeResult{}, domain.ErrPeriodAlreadyInvoiced
	}
	span.SetAttributes(
		attribute.String("billing_period_id", run.period.ID.String()),
		attribute.Int("customers_in_scope", len(run.customers)),
	)

	claimToken, err := s.claimPeriod(ctx, run)
	if err != nil {
		return domain.MaterializeResult{}, err
	}

	log := s.log.With(
		zap.String("org_id", run.orgID.String()),
		zap.String("billing_period_id", run.period.ID.String()),
	)

	result = domain.MaterializeResult{
		BillingPeriodID: run.period.ID,
		Invoices:        []domain.InvoiceSummary{},
		Total:           decimal.Zero,
	}

	for _, customer := range run.customers {
		outcome, custErr := s.materializeCustomer(ctx, run, customer)
		if custErr != nil {
			log.Error("customer invoicing failed",
				zap.String("customer_id", customer.ID.String()),
				zap.Error(custErr),
			)
			s.metrics.IncCustomerFailure()
			result.Failures = append(result.Failures, domain.CustomerFailure{
				CustomerID:   customer.ID,
				CustomerName: customer.Name,
				Message:      custErr.Error(),
				Err:          custErr,
			})
			continue
		}

		result.Warnings = append(result.Warnings, outcome.warnings...)
		if outcome.invoice == nil {
			result.Skipped = append(result.Skipped, domain.SkippedCustomer{
				CustomerID: customer.ID,
				Reason:     outcome.skipReason,
			})
			continue
		}

		invoice := outcome.invoice
		result.Invoices = append(result.Invoices, domain.InvoiceSummary{
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			CustomerID:    customer.ID,
			Lines:         len(invoice.Items),
			Total:         invoice.SubtotalAmount,
		})
		result.Total = result.Total.Add(invoice.SubtotalAmount)
		s.recordInvoiceMetrics(invoice)
	}
	s.metrics.AddZeroRateGaps(len(result.Warnings))

	now := s.clock.Now()
	if len(result.Failures) > 0 {
		if _, releaseErr := s.periodRepo.Release(ctx, s.db, run.orgID, run.period.ID, claimToken, now); releaseErr != nil {
			log.Error("failed to release billing period claim", zap.Error(releaseErr))
		}
		log.Warn("billing period left open after partial failure",
			zap.Int("invoices", len(result.Invoices)),
			zap.Int("failures", len(result.Failures)),
		)
		return result, &domain.PartialFailureError{Failures: result.Failures}
	}

	// A run over named customers cannot know the rest of the period is
	// billed, so it hands the period back instead of closing it.
	if run.scoped {
		released, err := s.periodRepo.Release(ctx, s.db, run.orgID, run.period.ID, claimToken, now)
		if err != nil {
			return result, err
		}
		if !released {
			return result, domain.ErrPeriodLocked
		}
		log.Info("billing period left open after scoped run",
			zap.Int("invoices", len(result.Invoices)),
			zap.Int("skipped", len(result.Skipped)),
		)
		return result, nil
	}

	closed, err := s.periodRepo.MarkInvoiced(ctx, s.db, run.orgID, run.period.ID, claimToken, now)
	if err != nil {
		return result, err
	}
	if !closed {
		return result, domain.ErrPeriodLocked
	}
	result.PeriodInvoiced = true

	log.Info("billing period invoiced",
		zap.Int("invoices", len(result.Invoices)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("total", result.Total.StringFixed(2)),
	)
	return result, nil
}

// claimPeriod flips the period to INVOICING so no other run can bill it
// concurrently. The returned token identifies this claim.
func (s *Service) claimPeriod(ctx context.Context, run *billingRun) (string, error) {
	claimedAt := s.clock.Now()
	token := uuid.NewString()

	// A zero staleBefore never matches, which disables takeover.
	var staleBefore time.Time
	if run.claimLease > 0 {
		staleBefore = claimedAt.Add(-run.claimLease)
	}

	claimed, err := s.periodRepo.Claim(ctx, s.db, run.orgID, run.period.ID, token, claimedAt, staleBefore)
	if err != nil {
		return "", err
	}
	if claimed {
		return token, nil
	}

	current, err := s.periodRepo.FindByID(ctx, s.db, run.orgID, run.period.ID)
	if err != nil {
		return "", err
	}
	if current != nil && current.Status == billingperioddomain.StatusInvoiced {
		return "", domain.ErrPeriodAlreadyInvoiced
	}
	return "", domain.ErrPeriodLocked
}

// materializeCustomer bills one customer in its own transaction against live
// state. A customer that already holds an invoice for the period is skipped,
// which makes re-running a partially failed period safe.
func (s *Service) materializeCustomer(ctx context.Context, run *billingRun, customer customerdomain.Customer) (customerOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "storagebilling.materializeCustomer")
	span.SetAttributes(attribute.String("customer_id", customer.ID.String()))
	defer span.End()

	var outcome customerOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.invoiceRepo.FindByCustomerPeriod(ctx, tx, run.orgID, run.period.ID, customer.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			outcome = customerOutcome{skipReason: domain.SkipReasonAlreadyInvoiced}
			return nil
		}

		billing, err := s.evaluate(ctx, tx, run.period, run.config, customer)
		if err != nil {
			return err
		}
		if billing.fees.totalContainers == 0 {
			outcome = customerOutcome{skipReason: domain.SkipReasonNoContainers}
			return nil
		}
		if !billing.fees.total.IsPositive() {
			outcome = customerOutcome{skipReason: domain.SkipReasonZeroTotal, warnings: billing.fees.warnings}
			return nil
		}

		invoice, err := s.createInvoice(ctx, tx, run, billing)
		if err != nil {
			return err
		}
		if invoice == nil {
			outcome = customerOutcome{skipReason: domain.SkipReasonAlreadyInvoiced}
			return nil
		}

		if err := s.consumeBilledState(ctx, tx, run, billing, invoice.ID); err != nil {
			return err
		}

		outcome = customerOutcome{invoice: invoice, warnings: billing.fees.warnings}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return customerOutcome{}, err
	}
	return outcome, nil
}

// createInvoice inserts the invoice with its ordered lines. It returns nil
// when a concurrent writer already invoiced the customer for the period.
func (s *Service) createInvoice(ctx context.Context, tx *gorm.DB, run *billingRun, billing customerBilling) (*invoicedomain.Invoice, error) {
	seq, err := s.invoiceRepo.NextSequence(ctx, tx, run.orgID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	invoiceDate := run.period.EffectiveInvoiceDate()
	invoice := invoicedomain.Invoice{
		ID:              s.genID.Generate(),
		OrgID:           run.orgID,
		CustomerID:      billing.customer.ID,
		BillingPeriodID: run.period.ID,
		InvoiceNumber:   invoicedomain.FormatNumber(invoiceDate, seq),
		InvoiceSeq:      seq,
		InvoiceDate:     invoiceDate,
		Status:          invoicedomain.InvoiceStatusDraft,
		SubtotalAmount:  billing.fees.total,
		Currency:        run.config.Currency,
		Metadata: datatypes.JSONMap{
			"period_start":     run.period.PeriodStart.Format(billingperioddomain.DateLayout),
			"period_end":       run.period.PeriodEnd.Format(billingperioddomain.DateLayout),
			"new_containers":   billing.fees.newContainers,
			"total_containers": billing.fees.totalContainers,
			"work_orders":      len(billing.workOrders),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	inserted, err := s.invoiceRepo.Insert(ctx, tx, &invoice)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}

	invoice.Items = s.buildInvoiceItems(run, billing, invoice, now)
	if err := s.invoiceRepo.InsertItems(ctx, tx, invoice.Items); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// buildInvoiceItems orders lines as setup fee, storage per group, minimum
// adjustment, then one line per work order.
func (s *Service) buildInvoiceItems(run *billingRun, billing customerBilling, invoice invoicedomain.Invoice, now time.Time) []invoicedomain.InvoiceItem {
	catalog := run.config.Catalog
	fees := billing.fees
	var items []invoicedomain.InvoiceItem

	add := func(item invoicedomain.InvoiceItem) {
		item.ID = s.genID.Generate()
		item.OrgID = invoice.OrgID
		item.InvoiceID = invoice.ID
		item.Position = len(items) + 1
		item.CreatedAt = now
		items = append(items, item)
	}

	if fees.newContainers > 0 {
		add(invoicedomain.InvoiceItem{
			Kind:        string(domain.LineKindSetupFee),
			ProductCode: catalog.SetupFee,
			Description: "Container setup fee",
			Quantity:    decimal.NewFromInt(int64(fees.newContainers)),
			UnitPrice:   fees.setupFee,
			Amount:      fees.setupFees,
		})
	}

	for _, group := range fees.groups {
		if group.Quantity == 0 {
			continue
		}
		typeID := group.ContainerTypeID
		add(invoicedomain.InvoiceItem{
			Kind:            string(domain.LineKindStorageFee),
			ProductCode:     catalog.StorageFee,
			Description:     storageDescription(group),
			Quantity:        decimal.NewFromInt(int64(group.Quantity)),
			UnitPrice:       group.UnitRate,
			Amount:          group.Subtotal,
			ContainerTypeID: &typeID,
		})
	}

	if fees.minimumAdjustment.IsPositive() {
		add(invoicedomain.InvoiceItem{
			Kind:        string(domain.LineKindMinimumAdjustment),
			ProductCode: catalog.MinimumAdjustment,
			Description: "Minimum monthly charge adjustment",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   fees.minimumAdjustment,
			Amount:      fees.minimumAdjustment,
		})
	}

	for _, order := range billing.workOrders {
		orderID := order.ID
		add(invoicedomain.InvoiceItem{
			Kind:        string(domain.LineKindWorkOrder),
			ProductCode: workOrderProduct(catalog, order.Kind),
			Description: workOrderDescription(order),
			Quantity:    order.Quantity,
			UnitPrice:   order.UnitPrice,
			Amount:      order.Subtotal,
			WorkOrderID: &orderID,
		})
	}

	return items
}

// consumeBilledState flags what the invoice consumed. Every update is
// conditional, and a row count mismatch aborts the customer's transaction.
func (s *Service) consumeBilledState(ctx context.Context, tx *gorm.DB, run *billingRun, billing customerBilling, invoiceID snowflake.ID) error {
	now := s.clock.Now()

	freshIDs := lo.Map(billing.fresh, func(c containerdomain.Container, _ int) snowflake.ID { return c.ID })
	charged, err := s.containerRepo.MarkSetupFeeCharged(ctx, tx, run.orgID, freshIDs, invoiceID, now)
	if err != nil {
		return err
	}
	if charged != int64(len(freshIDs)) {
		return fmt.Errorf("%w: %d of %d setup fees already charged", domain.ErrStaleState, int64(len(freshIDs))-charged, len(freshIDs))
	}

	allIDs := lo.Map(billing.all, func(c containerdomain.Container, _ int) snowflake.ID { return c.ID })
	if _, err := s.containerRepo.SetLastBilledPeriod(ctx, tx, run.orgID, allIDs, run.period.ID, now); err != nil {
		return err
	}

	orderIDs := lo.Map(billing.workOrders, func(o workorderdomain.WorkOrder, _ int) snowflake.ID { return o.ID })
	linked, err := s.workOrderRepo.LinkInvoice(ctx, tx, run.orgID, orderIDs, invoiceID, now)
	if err != nil {
		return err
	}
	if linked != int64(len(orderIDs)) {
		return fmt.Errorf("%w: %d of %d work orders already invoiced", domain.ErrStaleState, int64(len(orderIDs))-linked, len(orderIDs))
	}
	return nil
}

func (s *Service) recordInvoiceMetrics(invoice *invoicedomain.Invoice) {
	s.metrics.IncInvoiceCreated()
	for _, item := range invoice.Items {
		s.metrics.AddInvoicedAmount(item.Kind, item.Amount.InexactFloat64())
	}
}

func storageDescription(group domain.StorageGroup) string {
	name := group.ContainerTypeName
	if name == "" {
		name = "Unknown container type"
	}
	return fmt.Sprintf("Monthly storage: %s @ %s", name, group.UnitRate.StringFixed(2))
}

// workOrderDescription keeps the order's own service code next to its text.
func workOrderDescription(order workorderdomain.WorkOrder) string {
	if order.ProductCode == "" {
		return order.Description
	}
	return fmt.Sprintf("%s [%s]", order.Description, order.ProductCode)
}

func workOrderProduct(catalog domain.Catalog, kind workorderdomain.Kind) string {
	if kind == workorderdomain.KindShredding {
		return catalog.WorkOrderShredding
	}
	return catalog.WorkOrderRetrieval
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/config"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/vaultline/internal/invoice/domain"
	"github.com/smallbiznis/vaultline/internal/observability/metrics"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "github.com/smallbiznis/vaultline/internal/storagebilling"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	BillingConfig *config.BillingConfigHolder

	CustomerRepo  customerdomain.Repository
	ContainerRepo containerdomain.Repository
	WorkOrderRepo workorderdomain.Repository
	PeriodRepo    billingperioddomain.Repository
	InvoiceRepo   invoicedomain.Repository

	Metrics *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	billing *config.BillingConfigHolder
	tracer  trace.Tracer
	metrics *metrics.BillingMetrics

	customerRepo  customerdomain.Repository
	containerRepo containerdomain.Repository
	workOrderRepo workorderdomain.Repository
	periodRepo    billingperioddomain.Repository
	invoiceRepo   invoicedomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("storagebilling.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		billing: p.BillingConfig,
		tracer:  otel.Tracer(tracerName),
		metrics: p.Metrics,

		customerRepo:  p.CustomerRepo,
		containerRepo: p.ContainerRepo,
		workOrderRepo: p.WorkOrderRepo,
		periodRepo:    p.PeriodRepo,
		invoiceRepo:   p.InvoiceRepo,
	}
}

// billingRun is the resolved input shared by preview and materialization.
type billingRun struct {
	orgID      snowflake.ID
	period     billingperioddomain.BillingPeriod
	config     domain.RunConfig
	claimLease time.Duration
	customers  []customerdomain.Customer
	// scoped is set when the caller named the customers to bill.
	scoped bool
}

// prepareRun validates the request and resolves the period and customer
// scope. Nothing is written.
func (s *Service) prepareRun(ctx context.Context, req domain.RunRequest) (*billingRun, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	rateCard := s.billing.Get()
	cfg, err := buildRunConfig(rateCard, req)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	period, err := s.periodRepo.FindByID(ctx, s.db, orgID, cfg.BillingPeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, domain.ErrBillingPeriodNotFound
	}

	customers, err := s.resolveScope(ctx, s.db, orgID, *period, req.CustomerIDs)
	if err != nil {
		return nil, err
	}

	return &billingRun{
		orgID:      orgID,
		period:     *period,
		config:     cfg,
		claimLease: rateCard.ClaimLease,
		customers:  customers,
		scoped:     len(req.CustomerIDs) > 0,
	}, nil
}

// buildRunConfig merges request overrides into the rate card snapshot.
func buildRunConfig(rateCard config.BillingConfig, req domain.RunRequest) (domain.RunConfig, error) {
	cfg := domain.RunConfig{
		Currency:             strings.ToUpper(strings.TrimSpace(rateCard.Currency)),
		MinimumMonthlyCharge: parseOptionalAmount(rateCard.MinimumMonthlyCharge),
		SetupFee:             parseOptionalAmount(rateCard.SetupFee),
		IncludeWorkOrders:    rateCard.IncludeWorkOrders,
		Catalog: domain.Catalog{
			SetupFee:           rateCard.Catalog.SetupFee,
			StorageFee:         rateCard.Catalog.StorageFee,
			MinimumAdjustment:  rateCard.Catalog.MinimumAdjustment,
			WorkOrderShredding: rateCard.Catalog.WorkOrderShredding,
			WorkOrderRetrieval: rateCard.Catalog.WorkOrderRetrieval,
		},
	}

	if raw := strings.TrimSpace(req.BillingPeriodID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.RunConfig{}, fmt.Errorf("%w: %q", domain.ErrMissingBillingPeriod, raw)
		}
		cfg.BillingPeriodID = id
	}

	if req.MinimumMonthlyCharge != nil {
		cfg.MinimumMonthlyCharge = parseOptionalAmount(*req.MinimumMonthlyCharge)
		if strings.TrimSpace(*req.MinimumMonthlyCharge) != "" && !cfg.MinimumMonthlyCharge.Valid {
			return domain.RunConfig{}, fmt.Errorf("%w: %q", domain.ErrMissingMinimumCharge, *req.MinimumMonthlyCharge)
		}
	}
	if req.SetupFee != nil {
		cfg.SetupFee = parseOptionalAmount(*req.SetupFee)
		if strings.TrimSpace(*req.SetupFee) != "" && !cfg.SetupFee.Valid {
			return domain.RunConfig{}, fmt.Errorf("%w: %q", domain.ErrMissingSetupFee, *req.SetupFee)
		}
	}
	if req.IncludeWorkOrders != nil {
		cfg.IncludeWorkOrders = *req.IncludeWorkOrders
	}

	return cfg, nil
}

func parseOptionalAmount(raw string) decimal.NullDecimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount.Round(2))
}

// resolveScope returns the explicitly requested customers, or every customer
// with at least one container billable in the period. Output is ordered by
// customer id.
func (s *Service) resolveScope(ctx context.Context, db *gorm.DB, orgID snowflake.ID, period billingperioddomain.BillingPeriod, rawIDs []string) ([]customerdomain.Customer, error) {
	var ids []snowflake.ID
	if len(rawIDs) > 0 {
		for _, raw := range rawIDs {
			id, err := snowflake.ParseString(strings.TrimSpace(raw))
			if err != nil || id == 0 {
				return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCustomer, raw)
			}
			ids = append(ids, id)
		}
		ids = lo.Uniq(ids)
	} else {
		billable, err := s.containerRepo.ListBillableCustomerIDs(ctx, db, orgID, period.EndExclusive())
		if err != nil {
			return nil, err
		}
		ids = billable
	}

	if len(ids) == 0 {
		return nil, nil
	}

	customers, err := s.customerRepo.ListByIDs(ctx, db, orgID, ids)
	if err != nil {
		return nil, err
	}
	if len(rawIDs) > 0 && len(customers) != len(ids) {
		found := lo.SliceToMap(customers, func(c customerdomain.Customer) (snowflake.ID, struct{}) {
			return c.ID, struct{}{}
		})
		missing, _ := lo.Find(ids, func(id snowflake.ID) bool {
			_, ok := found[id]
			return !ok
		})
		return nil, fmt.Errorf("%w: %s not found", domain.ErrInvalidCustomer, missing)
	}
	return customers, nil
}

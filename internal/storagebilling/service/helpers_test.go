package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	billingperiodrepo "github.com/smallbiznis/vaultline/internal/billingperiod/repository"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/config"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	containerrepo "github.com/smallbiznis/vaultline/internal/container/repository"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	customerrepo "github.com/smallbiznis/vaultline/internal/customer/repository"
	invoicedomain "github.com/smallbiznis/vaultline/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/vaultline/internal/invoice/repository"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	workorderrepo "github.com/smallbiznis/vaultline/internal/workorder/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	marchStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	marchEnd   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	lastPeriod = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	inPeriod   = time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC)
)

type testEnv struct {
	t     *testing.T
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	orgID snowflake.ID
	ctx   context.Context

	customers  customerdomain.Repository
	containers containerdomain.Repository
	workOrders workorderdomain.Repository
	periods    billingperioddomain.Repository
	invoices   invoicedomain.Repository

	rateCard config.BillingConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&containerdomain.ContainerType{},
		&containerdomain.Container{},
		&workorderdomain.WorkOrder{},
		&billingperioddomain.BillingPeriod{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	orgID := node.Generate()

	rateCard := config.DefaultBillingConfig()
	rateCard.MinimumMonthlyCharge = "45.00"
	rateCard.SetupFee = "3.50"

	return &testEnv{
		t:          t,
		db:         db,
		node:       node,
		clock:      clock.NewFakeClock(time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)),
		orgID:      orgID,
		ctx:        orgcontext.WithOrgID(context.Background(), orgID),
		customers:  customerrepo.Provide(),
		containers: containerrepo.Provide(),
		workOrders: workorderrepo.Provide(),
		periods:    billingperiodrepo.Provide(),
		invoices:   invoicerepo.Provide(),
		rateCard:   rateCard,
	}
}

func (e *testEnv) service() domain.Service {
	return e.serviceWith(e.invoices)
}

func (e *testEnv) serviceWith(invoices invoicedomain.Repository) domain.Service {
	return New(Params{
		DB:            e.db,
		Log:           zap.NewNop(),
		GenID:         e.node,
		Clock:         e.clock,
		BillingConfig: config.NewStaticBillingConfigHolder(e.rateCard),
		CustomerRepo:  e.customers,
		ContainerRepo: e.containers,
		WorkOrderRepo: e.workOrders,
		PeriodRepo:    e.periods,
		InvoiceRepo:   invoices,
	})
}

func (e *testEnv) customer(name string, consolidated bool) customerdomain.Customer {
	e.t.Helper()
	c := customerdomain.Customer{
		ID:                  e.node.Generate(),
		OrgID:               e.orgID,
		Name:                name,
		Email:               "billing@example.test",
		ConsolidatedBilling: consolidated,
		CreatedAt:           lastPeriod,
		UpdatedAt:           lastPeriod,
	}
	require.NoError(e.t, e.customers.Insert(e.ctx, e.db, &c))
	return c
}

func (e *testEnv) containerType(code, rate string) containerdomain.ContainerType {
	e.t.Helper()
	ct := containerdomain.ContainerType{
		ID:                  e.node.Generate(),
		OrgID:               e.orgID,
		Code:                code,
		Name:                code,
		StandardMonthlyRate: decimal.RequireFromString(rate),
		StandardSetupFee:    decimal.RequireFromString("3.50"),
		CreatedAt:           lastPeriod,
		UpdatedAt:           lastPeriod,
	}
	require.NoError(e.t, e.containers.InsertType(e.ctx, e.db, &ct))
	return ct
}

type containerOpt func(*containerdomain.Container)

func negotiated(rate string) containerOpt {
	return func(c *containerdomain.Container) {
		c.NegotiatedMonthlyRate = decimal.NewNullDecimal(decimal.RequireFromString(rate))
	}
}

func withState(state containerdomain.State, active bool) containerOpt {
	return func(c *containerdomain.Container) {
		c.State = state
		c.Active = active
	}
}

func (e *testEnv) container(customer customerdomain.Customer, ct containerdomain.ContainerType, createdAt time.Time, opts ...containerOpt) containerdomain.Container {
	e.t.Helper()
	c := containerdomain.Container{
		ID:              e.node.Generate(),
		OrgID:           e.orgID,
		CustomerID:      customer.ID,
		ContainerTypeID: ct.ID,
		Barcode:         "BX-" + e.node.Generate().String(),
		Active:          true,
		State:           containerdomain.StateActive,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	for _, opt := range opts {
		opt(&c)
	}
	require.NoError(e.t, e.containers.Insert(e.ctx, e.db, &c))
	return c
}

func (e *testEnv) pendingWorkOrder(customer customerdomain.Customer, kind workorderdomain.Kind, subtotal string) workorderdomain.WorkOrder {
	e.t.Helper()
	completedAt := inPeriod
	amount := decimal.RequireFromString(subtotal)
	o := workorderdomain.WorkOrder{
		ID:                         e.node.Generate(),
		OrgID:                      e.orgID,
		CustomerID:                 customer.ID,
		Kind:                       kind,
		State:                      workorderdomain.StateCompleted,
		Description:                string(kind) + " job",
		ProductCode:                "SVC-" + string(kind),
		Quantity:                   decimal.NewFromInt(1),
		UnitPrice:                  amount,
		Subtotal:                   amount,
		PendingConsolidatedBilling: true,
		CompletedAt:                &completedAt,
		CreatedAt:                  inPeriod,
		UpdatedAt:                  inPeriod,
	}
	require.NoError(e.t, e.workOrders.Insert(e.ctx, e.db, &o))
	return o
}

func (e *testEnv) period(start, end time.Time) billingperioddomain.BillingPeriod {
	e.t.Helper()
	p := billingperioddomain.BillingPeriod{
		ID:          e.node.Generate(),
		OrgID:       e.orgID,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      billingperioddomain.StatusOpen,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
	require.NoError(e.t, e.periods.Insert(e.ctx, e.db, &p))
	return p
}

func (e *testEnv) reloadPeriod(id snowflake.ID) billingperioddomain.BillingPeriod {
	e.t.Helper()
	p, err := e.periods.FindByID(e.ctx, e.db, e.orgID, id)
	require.NoError(e.t, err)
	require.NotNil(e.t, p)
	return *p
}

func (e *testEnv) reloadContainer(id snowflake.ID) containerdomain.Container {
	e.t.Helper()
	c, err := e.containers.FindByID(e.ctx, e.db, e.orgID, id)
	require.NoError(e.t, err)
	require.NotNil(e.t, c)
	return *c
}

func (e *testEnv) countInvoices() int64 {
	e.t.Helper()
	var n int64
	require.NoError(e.t, e.db.Model(&invoicedomain.Invoice{}).Where("org_id = ?", e.orgID).Count(&n).Error)
	return n
}

func runFor(period billingperioddomain.BillingPeriod) domain.RunRequest {
	return domain.RunRequest{BillingPeriodID: period.ID.String()}
}

func lineFor(t *testing.T, preview domain.Preview, customerID snowflake.ID) domain.PreviewLine {
	t.Helper()
	for _, line := range preview.Lines {
		if line.CustomerID == customerID {
			return line
		}
	}
	require.FailNow(t, "customer missing from preview", customerID.String())
	return domain.PreviewLine{}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (e *testEnv) mustMinimum() decimal.Decimal {
	return decimal.RequireFromString(e.rateCard.MinimumMonthlyCharge)
}

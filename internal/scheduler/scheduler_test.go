package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	billingperiodrepo "github.com/smallbiznis/vaultline/internal/billingperiod/repository"
	billingperiodservice "github.com/smallbiznis/vaultline/internal/billingperiod/service"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/config"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	customerrepo "github.com/smallbiznis/vaultline/internal/customer/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type schedulerFixture struct {
	sched *Scheduler
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newFixture(t *testing.T, defaultOrg int64, periodSvc billingperioddomain.Service) schedulerFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&customerdomain.Customer{}, &billingperioddomain.BillingPeriod{}))

	node, _ := snowflake.NewNode(1)
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 0, 15, 0, 0, time.UTC))
	if periodSvc == nil {
		periodSvc = billingperiodservice.New(billingperiodservice.Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: fake,
			Repo:  billingperiodrepo.Provide(),
		})
	}

	sched, err := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		AppConfig:    config.Config{DefaultOrgID: defaultOrg},
		PeriodSvc:    periodSvc,
		CustomerRepo: customerrepo.Provide(),
	})
	require.NoError(t, err)
	return schedulerFixture{sched: sched, db: db, clock: fake, node: node}
}

func (f schedulerFixture) seedCustomer(t *testing.T, orgID snowflake.ID) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.db.Create(&customerdomain.Customer{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		Name:      "Acme",
		Email:     "ops@acme.test",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)
}

func (f schedulerFixture) periods(t *testing.T, orgID snowflake.ID) []billingperioddomain.BillingPeriod {
	t.Helper()
	var items []billingperioddomain.BillingPeriod
	require.NoError(t, f.db.Where("org_id = ?", orgID).Order("period_start").Find(&items).Error)
	return items
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEnsureBillingPeriodsJob_OpensPreviousMonthPerOrg(t *testing.T) {
	f := newFixture(t, 0, nil)
	orgA := f.node.Generate()
	orgB := f.node.Generate()
	f.seedCustomer(t, orgA)
	f.seedCustomer(t, orgA)
	f.seedCustomer(t, orgB)

	require.NoError(t, f.sched.EnsureBillingPeriodsJob(context.Background()))

	for _, orgID := range []snowflake.ID{orgA, orgB} {
		items := f.periods(t, orgID)
		require.Len(t, items, 1)
		assert.Equal(t, "2026-03-01", items[0].PeriodStart.Format(billingperioddomain.DateLayout))
		assert.Equal(t, "2026-03-31", items[0].PeriodEnd.Format(billingperioddomain.DateLayout))
		assert.Equal(t, billingperioddomain.StatusOpen, items[0].Status)
	}
}

func TestEnsureBillingPeriodsJob_IsIdempotent(t *testing.T) {
	f := newFixture(t, 0, nil)
	orgID := f.node.Generate()
	f.seedCustomer(t, orgID)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Len(t, f.periods(t, orgID), 1)

	f.clock.Set(time.Date(2026, 5, 1, 0, 15, 0, 0, time.UTC))
	require.NoError(t, f.sched.RunOnce(context.Background()))

	items := f.periods(t, orgID)
	require.Len(t, items, 2)
	assert.Equal(t, "2026-04-01", items[1].PeriodStart.Format(billingperioddomain.DateLayout))
	assert.Equal(t, "2026-04-30", items[1].PeriodEnd.Format(billingperioddomain.DateLayout))
}

func TestEnsureBillingPeriodsJob_IncludesDefaultOrg(t *testing.T) {
	f := newFixture(t, 4242, nil)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Len(t, f.periods(t, snowflake.ID(4242)), 1)
}

type failingPeriodService struct {
	billingperioddomain.Service
	failFor snowflake.ID
	calls   []snowflake.ID
}

func (s *failingPeriodService) EnsureMonthlyPeriod(ctx context.Context, orgID snowflake.ID, now time.Time) (billingperioddomain.BillingPeriod, bool, error) {
	s.calls = append(s.calls, orgID)
	if orgID == s.failFor {
		return billingperioddomain.BillingPeriod{}, false, errors.New("boom")
	}
	return billingperioddomain.BillingPeriod{ID: orgID}, true, nil
}

func TestEnsureBillingPeriodsJob_ContinuesPastFailingOrg(t *testing.T) {
	svc := &failingPeriodService{failFor: 1}
	f := newFixture(t, 0, svc)
	f.seedCustomer(t, 1)
	f.seedCustomer(t, 2)

	err := f.sched.EnsureBillingPeriodsJob(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobEnsurePeriods)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []snowflake.ID{1, 2}, svc.calls)
}

func TestProvideConfig(t *testing.T) {
	cfg := ProvideConfig(config.Config{BillingCron: "0 3 1 * *"})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "0 3 1 * *", cfg.Schedule)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)

	cfg = ProvideConfig(config.Config{BillingCron: "off"})
	assert.False(t, cfg.Enabled)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	"github.com/smallbiznis/vaultline/internal/billingperiod/repository"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	repo  domain.Repository
	db    *gorm.DB
	ctx   context.Context
	orgID snowflake.ID
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.BillingPeriod{}))

	node, _ := snowflake.NewNode(1)
	orgID := node.Generate()
	repo := repository.Provide()
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 4, 1, 0, 15, 0, 0, time.UTC)),
		Repo:  repo,
	})
	return fixture{svc: svc, repo: repo, db: db, ctx: orgcontext.WithOrgID(context.Background(), orgID), orgID: orgID}
}

func TestBillingPeriod_CreateValidates(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(f.ctx, domain.CreateBillingPeriodRequest{PeriodStart: "2026-03-31", PeriodEnd: "2026-03-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = f.svc.Create(f.ctx, domain.CreateBillingPeriodRequest{PeriodStart: "03/01/2026", PeriodEnd: "2026-03-31"})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	period, err := f.svc.Create(f.ctx, domain.CreateBillingPeriodRequest{
		PeriodStart: "2026-03-01",
		PeriodEnd:   "2026-03-31",
		InvoiceDate: "2026-04-02",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, period.Status)
	assert.Equal(t, "2026-04-02", period.EffectiveInvoiceDate().Format(domain.DateLayout))

	_, err = f.svc.Create(f.ctx, domain.CreateBillingPeriodRequest{PeriodStart: "2026-03-31", PeriodEnd: "2026-04-30"})
	assert.ErrorIs(t, err, domain.ErrOverlappingPeriod)

	list, err := f.svc.List(f.ctx, domain.ListBillingPeriodRequest{Status: domain.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, list.BillingPeriods, 1)
}

func TestBillingPeriod_ContainsWholeEndDay(t *testing.T) {
	period := domain.BillingPeriod{
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, period.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, period.Contains(time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, period.Contains(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, period.Contains(time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, period.PeriodEnd, period.EffectiveInvoiceDate())
}

func TestBillingPeriod_EnsureMonthlyPeriodIsIdempotent(t *testing.T) {
	f := setup(t)
	now := time.Date(2026, 4, 1, 0, 15, 0, 0, time.UTC)

	period, created, err := f.svc.EnsureMonthlyPeriod(f.ctx, f.orgID, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2026-03-01", period.PeriodStart.Format(domain.DateLayout))
	assert.Equal(t, "2026-03-31", period.PeriodEnd.Format(domain.DateLayout))

	again, created, err := f.svc.EnsureMonthlyPeriod(f.ctx, f.orgID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, period.ID, again.ID)
}

func TestBillingPeriod_ClaimGate(t *testing.T) {
	f := setup(t)

	period, err := f.svc.Create(f.ctx, domain.CreateBillingPeriodRequest{PeriodStart: "2026-03-01", PeriodEnd: "2026-03-31"})
	require.NoError(t, err)

	claimedAt := time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)
	ok, err := f.repo.Claim(f.ctx, f.db, f.orgID, period.ID, "run-1", claimedAt, claimedAt.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.repo.Claim(f.ctx, f.db, f.orgID, period.ID, "run-2", claimedAt.Add(time.Minute), claimedAt.Add(-29*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "fresh claim must not be taken over")

	reclaimedAt := claimedAt.Add(time.Hour)
	ok, err = f.repo.Claim(f.ctx, f.db, f.orgID, period.ID, "run-3", reclaimedAt, reclaimedAt.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "stale claim is reclaimable")

	ok, err = f.repo.MarkInvoiced(f.ctx, f.db, f.orgID, period.ID, "run-1", reclaimedAt)
	require.NoError(t, err)
	assert.False(t, ok, "superseded claim cannot finish the period")

	ok, err = f.repo.MarkInvoiced(f.ctx, f.db, f.orgID, period.ID, "run-3", reclaimedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.svc.GetByID(f.ctx, period.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInvoiced, got.Status)
	require.NotNil(t, got.InvoicedAt)
}

func TestBillingPeriod_ClaimIgnoresStoredTimestampPrecision(t *testing.T) {
	f := setup(t)

	period, err := f.svc.Create(f.ctx, domain.CreateBillingPeriodRequest{PeriodStart: "2026-03-01", PeriodEnd: "2026-03-31"})
	require.NoError(t, err)

	claimedAt := time.Date(2026, 4, 1, 1, 0, 5, 123456000, time.UTC)
	ok, err := f.repo.Claim(f.ctx, f.db, f.orgID, period.ID, "run-1", claimedAt, claimedAt.Add(-30*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	// Millisecond datetime columns round the stored claim time.
	require.NoError(t, f.db.Exec(
		"UPDATE billing_periods SET claimed_at = ? WHERE id = ?",
		claimedAt.Truncate(time.Millisecond), period.ID,
	).Error)

	ok, err = f.repo.Release(f.ctx, f.db, f.orgID, period.ID, "run-2", claimedAt)
	require.NoError(t, err)
	assert.False(t, ok, "another run cannot release the claim")

	ok, err = f.repo.Release(f.ctx, f.db, f.orgID, period.ID, "run-1", claimedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.repo.FindByID(f.ctx, f.db, f.orgID, period.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Nil(t, got.ClaimedAt)
	assert.Nil(t, got.ClaimToken)

	ok, err = f.repo.Claim(f.ctx, f.db, f.orgID, period.ID, "run-3", claimedAt, claimedAt.Add(-30*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.db.Exec(
		"UPDATE billing_periods SET claimed_at = ? WHERE id = ?",
		claimedAt.Truncate(time.Millisecond), period.ID,
	).Error)

	ok, err = f.repo.MarkInvoiced(f.ctx, f.db, f.orgID, period.ID, "run-3", claimedAt)
	require.NoError(t, err)
	assert.True(t, ok)
}

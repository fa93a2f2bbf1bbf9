package service

import (
	"testing"
	"time"

	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_ScenarioA_MinimumTopUp(t *testing.T) {
	env := newTestEnv(t)
	customer := env.customer("Acme", false)
	standard := env.containerType("STANDARD", "5.50")
	for i := 0; i < 3; i++ {
		env.container(customer, standard, lastPeriod)
	}
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	line := lineFor(t, preview, customer.ID)
	assert.Equal(t, 0, line.NewContainers)
	assert.Equal(t, 3, line.TotalContainers)
	assert.Equal(t, "0.00", money(line.SetupFees))
	assert.Equal(t, "16.50", money(line.StorageFees))
	assert.Equal(t, "28.50", money(line.MinimumAdjustment))
	assert.Equal(t, "45.00", money(line.Total))
}

func TestPreview_ScenarioB_NewContainersPaySetup(t *testing.T) {
	env := newTestEnv(t)
	customer := env.customer("Acme", false)
	standard := env.containerType("STANDARD", "5.50")
	legal := env.containerType("LEGAL", "7.50")
	for i := 0; i < 3; i++ {
		env.container(customer, standard, lastPeriod)
	}
	env.container(customer, legal, inPeriod)
	env.container(customer, legal, marchEnd.Add(23*time.Hour+59*time.Minute))
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	line := lineFor(t, preview, customer.ID)
	assert.Equal(t, 2, line.NewContainers)
	assert.Equal(t, 5, line.TotalContainers)
	assert.Equal(t, "7.00", money(line.SetupFees))
	assert.Equal(t, "31.50", money(line.StorageFees))
	assert.Equal(t, "13.50", money(line.MinimumAdjustment))
	assert.Equal(t, "52.00", money(line.Total))

	require.Len(t, line.StorageBreakdown, 2)
	assert.Equal(t, "LEGAL", line.StorageBreakdown[0].ContainerTypeCode)
	assert.Equal(t, 2, line.StorageBreakdown[0].Quantity)
	assert.Equal(t, "15.00", money(line.StorageBreakdown[0].Subtotal))
	assert.Equal(t, "STANDARD", line.StorageBreakdown[1].ContainerTypeCode)
	assert.Equal(t, "16.50", money(line.StorageBreakdown[1].Subtotal))
}

func TestPreview_IsIdempotentAndReadOnly(t *testing.T) {
	env := newTestEnv(t)
	acme := env.customer("Acme", true)
	globex := env.customer("Globex", false)
	standard := env.containerType("STANDARD", "5.50")
	fresh := env.container(acme, standard, inPeriod)
	env.container(globex, standard, lastPeriod)
	order := env.pendingWorkOrder(acme, workorderdomain.KindShredding, "120.00")
	period := env.period(marchStart, marchEnd)

	svc := env.service()
	first, err := svc.Preview(env.ctx, runFor(period))
	require.NoError(t, err)
	second, err := svc.Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Lines, 2)
	assert.Equal(t, 2, first.Totals.Customers)

	assert.False(t, env.reloadContainer(fresh.ID).SetupFeeCharged)
	assert.Equal(t, "OPEN", string(env.reloadPeriod(period.ID).Status))
	got, err := env.workOrders.FindByID(env.ctx, env.db, env.orgID, order.ID)
	require.NoError(t, err)
	assert.Nil(t, got.InvoiceID)
	assert.Zero(t, env.countInvoices())
}

func TestPreview_MinimumFloorHolds(t *testing.T) {
	env := newTestEnv(t)
	small := env.customer("Small", false)
	large := env.customer("Large", false)
	standard := env.containerType("STANDARD", "5.50")
	env.container(small, standard, lastPeriod)
	for i := 0; i < 10; i++ {
		env.container(large, standard, lastPeriod)
	}
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	for _, line := range preview.Lines {
		floor := line.StorageFees.Add(line.MinimumAdjustment)
		assert.True(t, floor.GreaterThanOrEqual(env.mustMinimum()), line.CustomerName)
	}
	assert.Equal(t, "39.50", money(lineFor(t, preview, small.ID).MinimumAdjustment))
	assert.Equal(t, "55.00", money(lineFor(t, preview, large.ID).StorageFees))
	assert.True(t, lineFor(t, preview, large.ID).MinimumAdjustment.IsZero())
}

func TestPreview_ExcludesRemovedAndInactiveContainers(t *testing.T) {
	env := newTestEnv(t)
	customer := env.customer("Acme", false)
	gone := env.customer("Gone", false)
	standard := env.containerType("STANDARD", "5.50")
	env.container(customer, standard, lastPeriod)
	env.container(customer, standard, lastPeriod, withState(containerdomain.StateDestroyed, true))
	env.container(customer, standard, lastPeriod, withState(containerdomain.StatePermOut, true))
	env.container(customer, standard, inPeriod, withState(containerdomain.StateActive, false))
	env.container(customer, standard, inPeriod, withState(containerdomain.StatePendingDestruction, true))
	env.container(gone, standard, lastPeriod, withState(containerdomain.StateDestroyed, false))
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	require.Len(t, preview.Lines, 1, "customers without billable containers are skipped")
	line := preview.Lines[0]
	assert.Equal(t, customer.ID, line.CustomerID)
	assert.Equal(t, 2, line.TotalContainers)
	assert.Equal(t, 1, line.NewContainers)
}

func TestPreview_ExplicitCustomerWithoutContainersIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	customer := env.customer("Acme", true)
	env.pendingWorkOrder(customer, workorderdomain.KindRetrieval, "30.00")
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, domain.RunRequest{
		BillingPeriodID: period.ID.String(),
		CustomerIDs:     []string{customer.ID.String()},
	})
	require.NoError(t, err)
	assert.Empty(t, preview.Lines)
	assert.True(t, preview.Totals.Total.IsZero())
}

func TestPreview_ConsolidatedGating(t *testing.T) {
	env := newTestEnv(t)
	consolidated := env.customer("Consolidated", true)
	separate := env.customer("Separate", false)
	standard := env.containerType("STANDARD", "5.50")
	env.container(consolidated, standard, lastPeriod)
	env.container(separate, standard, lastPeriod)
	env.pendingWorkOrder(consolidated, workorderdomain.KindShredding, "120.00")
	env.pendingWorkOrder(consolidated, workorderdomain.KindRetrieval, "15.00")
	env.pendingWorkOrder(separate, workorderdomain.KindShredding, "99.00")
	period := env.period(marchStart, marchEnd)

	svc := env.service()
	preview, err := svc.Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	in := lineFor(t, preview, consolidated.ID)
	assert.Equal(t, 2, in.PendingWorkOrders)
	assert.Equal(t, "135.00", money(in.WorkOrderFees))
	assert.Equal(t, "180.00", money(in.Total))

	out := lineFor(t, preview, separate.ID)
	assert.Zero(t, out.PendingWorkOrders)
	assert.True(t, out.WorkOrderFees.IsZero())

	exclude := false
	preview, err = svc.Preview(env.ctx, domain.RunRequest{
		BillingPeriodID:   period.ID.String(),
		IncludeWorkOrders: &exclude,
	})
	require.NoError(t, err)
	assert.True(t, lineFor(t, preview, consolidated.ID).WorkOrderFees.IsZero())
}

func TestPreview_NegotiatedRatesSplitTypeGroup(t *testing.T) {
	env := newTestEnv(t)
	customer := env.customer("Acme", false)
	standard := env.containerType("STANDARD", "5.50")
	env.container(customer, standard, lastPeriod, negotiated("4.00"))
	env.container(customer, standard, lastPeriod)
	env.container(customer, standard, lastPeriod)
	env.container(customer, standard, lastPeriod, negotiated("0"))
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	line := lineFor(t, preview, customer.ID)
	require.Len(t, line.StorageBreakdown, 2)
	assert.Equal(t, "4.00", money(line.StorageBreakdown[0].UnitRate))
	assert.Equal(t, 1, line.StorageBreakdown[0].Quantity)
	assert.Equal(t, "5.50", money(line.StorageBreakdown[1].UnitRate))
	assert.Equal(t, 3, line.StorageBreakdown[1].Quantity)
	assert.Equal(t, "20.50", money(line.StorageFees))
}

func TestPreview_ZeroRateIsAWarningNotAnError(t *testing.T) {
	env := newTestEnv(t)
	customer := env.customer("Acme", false)
	unpriced := env.containerType("UNPRICED", "0")
	standard := env.containerType("STANDARD", "5.50")
	gap := env.container(customer, unpriced, lastPeriod)
	env.container(customer, standard, lastPeriod)
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	line := lineFor(t, preview, customer.ID)
	assert.Equal(t, "5.50", money(line.StorageFees))
	require.Len(t, line.Warnings, 1)
	assert.Equal(t, domain.WarningZeroRate, line.Warnings[0].Code)
	assert.Equal(t, gap.ID, line.Warnings[0].ContainerID)
}

func TestPreview_ConfigurationErrors(t *testing.T) {
	env := newTestEnv(t)
	period := env.period(marchStart, marchEnd)
	svc := env.service()
	blank := ""
	bogus := "abc"

	_, err := svc.Preview(env.ctx, domain.RunRequest{})
	assert.ErrorIs(t, err, domain.ErrMissingBillingPeriod)

	_, err = svc.Preview(env.ctx, domain.RunRequest{BillingPeriodID: period.ID.String(), SetupFee: &blank})
	assert.ErrorIs(t, err, domain.ErrMissingSetupFee)

	_, err = svc.Preview(env.ctx, domain.RunRequest{BillingPeriodID: period.ID.String(), MinimumMonthlyCharge: &blank})
	assert.ErrorIs(t, err, domain.ErrMissingMinimumCharge)

	_, err = svc.Preview(env.ctx, domain.RunRequest{BillingPeriodID: period.ID.String(), MinimumMonthlyCharge: &bogus})
	assert.ErrorIs(t, err, domain.ErrMissingMinimumCharge)
	assert.True(t, domain.IsConfigurationError(err))

	_, err = svc.Preview(env.ctx, domain.RunRequest{BillingPeriodID: env.node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrBillingPeriodNotFound)

	_, err = svc.Preview(env.ctx, domain.RunRequest{BillingPeriodID: period.ID.String(), CustomerIDs: []string{env.node.Generate().String()}})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)
}

func TestPreview_ContainersCreatedAfterPeriodAreNotBilled(t *testing.T) {
	env := newTestEnv(t)
	acme := env.customer("Acme", false)
	later := env.customer("Later", false)
	standard := env.containerType("STANDARD", "50.00")
	env.container(acme, standard, lastPeriod)
	env.container(acme, standard, time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC))
	env.container(later, standard, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	period := env.period(marchStart, marchEnd)

	preview, err := env.service().Preview(env.ctx, runFor(period))
	require.NoError(t, err)

	require.Len(t, preview.Lines, 1)
	line := lineFor(t, preview, acme.ID)
	assert.Equal(t, 1, line.TotalContainers)
	assert.Equal(t, 0, line.NewContainers)
	assert.Equal(t, "50.00", money(line.StorageFees))
}

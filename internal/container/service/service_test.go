package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/container/domain"
	"github.com/smallbiznis/vaultline/internal/container/repository"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	customerrepo "github.com/smallbiznis/vaultline/internal/customer/repository"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc        domain.Service
	repo       domain.Repository
	db         *gorm.DB
	ctx        context.Context
	orgID      snowflake.ID
	customerID snowflake.ID
	node       *snowflake.Node
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&customerdomain.Customer{}, &domain.ContainerType{}, &domain.Container{}))

	node, _ := snowflake.NewNode(1)
	orgID := node.Generate()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	customers := customerrepo.Provide()
	customer := customerdomain.Customer{ID: node.Generate(), OrgID: orgID, Name: "Acme", Email: "ap@acme.test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, customers.Insert(context.Background(), db, &customer))

	repo := repository.Provide()
	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clock.NewFakeClock(now),
		Repo:         repo,
		CustomerRepo: customers,
	})
	return fixture{
		svc:        svc,
		repo:       repo,
		db:         db,
		ctx:        orgcontext.WithOrgID(context.Background(), orgID),
		orgID:      orgID,
		customerID: customer.ID,
		node:       node,
	}
}

func TestContainer_CreateTypeAndContainer(t *testing.T) {
	f := setup(t)

	boxType, err := f.svc.CreateType(f.ctx, domain.CreateContainerTypeRequest{
		Code:                "box",
		Name:                "Standard box",
		StandardMonthlyRate: "0.35",
		StandardSetupFee:    "3.50",
	})
	require.NoError(t, err)
	assert.Equal(t, "BOX", boxType.Code)

	_, err = f.svc.CreateType(f.ctx, domain.CreateContainerTypeRequest{
		Code: "BOX", Name: "dup", StandardMonthlyRate: "1", StandardSetupFee: "1",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	negotiated := "0.25"
	created, err := f.svc.Create(f.ctx, domain.CreateContainerRequest{
		CustomerID:            f.customerID.String(),
		ContainerTypeID:       boxType.ID.String(),
		Barcode:               "BX-0001",
		NegotiatedMonthlyRate: &negotiated,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, created.State)
	assert.True(t, created.Active)

	got, err := f.svc.GetByID(f.ctx, created.ID.String())
	require.NoError(t, err)
	require.True(t, got.NegotiatedMonthlyRate.Valid)
	assert.True(t, got.NegotiatedMonthlyRate.Decimal.Equal(decimal.RequireFromString("0.25")))
	assert.False(t, got.SetupFeeCharged)
	assert.Nil(t, got.SetupFeeInvoiceID)
}

func TestContainer_CreateRejectsUnknownReferences(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(f.ctx, domain.CreateContainerRequest{
		CustomerID:      f.node.Generate().String(),
		ContainerTypeID: f.node.Generate().String(),
		Barcode:         "BX-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = f.svc.Create(f.ctx, domain.CreateContainerRequest{
		CustomerID:      f.customerID.String(),
		ContainerTypeID: f.node.Generate().String(),
		Barcode:         "BX-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidContainerType)

	_, err = f.svc.Create(f.ctx, domain.CreateContainerRequest{
		CustomerID:      f.customerID.String(),
		ContainerTypeID: f.node.Generate().String(),
		Barcode:         "BX-1",
		State:           domain.StateDestroyed,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestContainer_RemovalLeavesBillablePopulation(t *testing.T) {
	f := setup(t)

	boxType, err := f.svc.CreateType(f.ctx, domain.CreateContainerTypeRequest{
		Code: "BOX", Name: "Box", StandardMonthlyRate: "0.35", StandardSetupFee: "3.50",
	})
	require.NoError(t, err)

	var ids []string
	for _, barcode := range []string{"A", "B", "C"} {
		c, err := f.svc.Create(f.ctx, domain.CreateContainerRequest{
			CustomerID:      f.customerID.String(),
			ContainerTypeID: boxType.ID.String(),
			Barcode:         barcode,
		})
		require.NoError(t, err)
		ids = append(ids, c.ID.String())
	}

	destroyed, err := f.svc.Destroy(f.ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.StateDestroyed, destroyed.State)
	assert.False(t, destroyed.Active)

	_, err = f.svc.PermOut(f.ctx, ids[1])
	require.NoError(t, err)

	_, err = f.svc.Destroy(f.ctx, ids[1])
	assert.ErrorIs(t, err, domain.ErrAlreadyRemoved)

	aprilFirst := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	billable, err := f.repo.ListBillable(f.ctx, f.db, f.orgID, f.customerID, aprilFirst)
	require.NoError(t, err)
	require.Len(t, billable, 1)
	assert.Equal(t, ids[2], billable[0].ID.String())

	customerIDs, err := f.repo.ListBillableCustomerIDs(f.ctx, f.db, f.orgID, aprilFirst)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{f.customerID}, customerIDs)
}

func TestContainer_BillableExcludesContainersCreatedLater(t *testing.T) {
	f := setup(t)

	boxType, err := f.svc.CreateType(f.ctx, domain.CreateContainerTypeRequest{
		Code: "BOX", Name: "Box", StandardMonthlyRate: "0.35", StandardSetupFee: "3.50",
	})
	require.NoError(t, err)
	_, err = f.svc.Create(f.ctx, domain.CreateContainerRequest{
		CustomerID: f.customerID.String(), ContainerTypeID: boxType.ID.String(), Barcode: "A",
	})
	require.NoError(t, err)

	// The container was created 2026-03-01, so February does not see it.
	marchFirst := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	billable, err := f.repo.ListBillable(f.ctx, f.db, f.orgID, f.customerID, marchFirst)
	require.NoError(t, err)
	assert.Empty(t, billable)

	customerIDs, err := f.repo.ListBillableCustomerIDs(f.ctx, f.db, f.orgID, marchFirst)
	require.NoError(t, err)
	assert.Empty(t, customerIDs)
}

func TestContainer_MarkSetupFeeChargedIsConditional(t *testing.T) {
	f := setup(t)

	boxType, err := f.svc.CreateType(f.ctx, domain.CreateContainerTypeRequest{
		Code: "BOX", Name: "Box", StandardMonthlyRate: "0.35", StandardSetupFee: "3.50",
	})
	require.NoError(t, err)
	c, err := f.svc.Create(f.ctx, domain.CreateContainerRequest{
		CustomerID: f.customerID.String(), ContainerTypeID: boxType.ID.String(), Barcode: "A",
	})
	require.NoError(t, err)

	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	invoiceID := f.node.Generate()
	affected, err := f.repo.MarkSetupFeeCharged(f.ctx, f.db, f.orgID, []snowflake.ID{c.ID}, invoiceID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	affected, err = f.repo.MarkSetupFeeCharged(f.ctx, f.db, f.orgID, []snowflake.ID{c.ID}, f.node.Generate(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	got, err := f.svc.GetByID(f.ctx, c.ID.String())
	require.NoError(t, err)
	assert.True(t, got.SetupFeeCharged)
	require.NotNil(t, got.SetupFeeInvoiceID)
	assert.Equal(t, invoiceID, *got.SetupFeeInvoiceID)
}

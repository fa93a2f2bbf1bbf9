package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/vaultline/internal/invoice/domain"
	"github.com/smallbiznis/vaultline/internal/invoice/repository"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	svc   invoicedomain.Service
	repo  invoicedomain.Repository
	db    *gorm.DB
	node  *snowflake.Node
	orgID snowflake.ID
	ctx   context.Context
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.InvoiceItem{}))

	node, _ := snowflake.NewNode(1)
	orgID := node.Generate()
	repo := repository.Provide()
	return fixture{
		svc:   NewService(ServiceParam{DB: db, Log: zap.NewNop(), Repo: repo}),
		repo:  repo,
		db:    db,
		node:  node,
		orgID: orgID,
		ctx:   orgcontext.WithOrgID(context.Background(), orgID),
	}
}

func (f fixture) insertInvoice(t *testing.T, orgID, periodID, customerID snowflake.ID) (invoicedomain.Invoice, bool) {
	t.Helper()
	ctx := context.Background()
	seq, err := f.repo.NextSequence(ctx, f.db, orgID)
	require.NoError(t, err)

	date := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	inv := invoicedomain.Invoice{
		ID:              f.node.Generate(),
		OrgID:           orgID,
		CustomerID:      customerID,
		BillingPeriodID: periodID,
		InvoiceNumber:   invoicedomain.FormatNumber(date, seq),
		InvoiceSeq:      seq,
		InvoiceDate:     date,
		Status:          invoicedomain.InvoiceStatusDraft,
		SubtotalAmount:  decimal.RequireFromString("48.50"),
		Currency:        "USD",
		Metadata:        datatypes.JSONMap{"billing_period_id": periodID.String()},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inserted, err := f.repo.Insert(ctx, f.db, &inv)
	require.NoError(t, err)
	return inv, inserted
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "INV-202603-000042", invoicedomain.FormatNumber(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), 42))
}

func TestInvoice_InsertIsUniquePerPeriodAndCustomer(t *testing.T) {
	f := setup(t)
	periodID, customerID := f.node.Generate(), f.node.Generate()

	first, inserted := f.insertInvoice(t, f.orgID, periodID, customerID)
	require.True(t, inserted)
	assert.Equal(t, "INV-202603-000001", first.InvoiceNumber)

	_, inserted = f.insertInvoice(t, f.orgID, periodID, customerID)
	assert.False(t, inserted)

	second, inserted := f.insertInvoice(t, f.orgID, periodID, f.node.Generate())
	require.True(t, inserted)
	assert.Equal(t, "INV-202603-000002", second.InvoiceNumber)

	otherOrg := f.node.Generate()
	third, inserted := f.insertInvoice(t, otherOrg, periodID, f.node.Generate())
	require.True(t, inserted)
	assert.Equal(t, "INV-202603-000001", third.InvoiceNumber)
}

func TestInvoice_GetByIDReturnsItemsInPositionOrder(t *testing.T) {
	f := setup(t)
	inv, inserted := f.insertInvoice(t, f.orgID, f.node.Generate(), f.node.Generate())
	require.True(t, inserted)

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	item := func(position int, kind, code, amount string) invoicedomain.InvoiceItem {
		return invoicedomain.InvoiceItem{
			ID:          f.node.Generate(),
			OrgID:       f.orgID,
			InvoiceID:   inv.ID,
			Position:    position,
			Kind:        kind,
			ProductCode: code,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.RequireFromString(amount),
			Amount:      decimal.RequireFromString(amount),
			CreatedAt:   now,
		}
	}
	require.NoError(t, f.repo.InsertItems(context.Background(), f.db, []invoicedomain.InvoiceItem{
		item(2, "STORAGE_FEE", "STORAGE-MONTHLY", "5.00"),
		item(1, "SETUP_FEE", "STORAGE-SETUP", "3.50"),
		item(3, "MINIMUM_ADJUSTMENT", "STORAGE-MINIMUM", "40.00"),
	}))

	got, err := f.svc.GetByID(f.ctx, inv.ID.String())
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, []string{"STORAGE-SETUP", "STORAGE-MONTHLY", "STORAGE-MINIMUM"}, []string{
		got.Items[0].ProductCode, got.Items[1].ProductCode, got.Items[2].ProductCode,
	})
	assert.True(t, decimal.RequireFromString("48.50").Equal(got.SubtotalAmount))
}

func TestInvoice_GetByIDErrors(t *testing.T) {
	f := setup(t)

	_, err := f.svc.GetByID(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidOrganization)

	_, err = f.svc.GetByID(f.ctx, "abc")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidID)

	_, err = f.svc.GetByID(f.ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	inv, _ := f.insertInvoice(t, f.node.Generate(), f.node.Generate(), f.node.Generate())
	_, err = f.svc.GetByID(f.ctx, inv.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestInvoice_ListFiltersAndPaginates(t *testing.T) {
	f := setup(t)
	periodID := f.node.Generate()
	customerID := f.node.Generate()
	f.insertInvoice(t, f.orgID, periodID, customerID)
	f.insertInvoice(t, f.orgID, periodID, f.node.Generate())
	f.insertInvoice(t, f.orgID, f.node.Generate(), customerID)

	resp, err := f.svc.List(f.ctx, invoicedomain.ListInvoiceRequest{BillingPeriodID: periodID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Invoices, 2)

	resp, err = f.svc.List(f.ctx, invoicedomain.ListInvoiceRequest{CustomerID: customerID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Invoices, 2)

	page, err := f.svc.List(f.ctx, invoicedomain.ListInvoiceRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 2)
	assert.True(t, page.HasMore)

	rest, err := f.svc.List(f.ctx, invoicedomain.ListInvoiceRequest{PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, rest.Invoices, 1)
	assert.False(t, rest.HasMore)

	_, err = f.svc.List(f.ctx, invoicedomain.ListInvoiceRequest{CustomerID: "nope"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidID)
}

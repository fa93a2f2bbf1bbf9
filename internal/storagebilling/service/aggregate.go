package service

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
)

// feeBreakdown holds one customer's charges. Amounts are rounded to cents.
type feeBreakdown struct {
	newContainers     int
	totalContainers   int
	setupFee          decimal.Decimal
	setupFees         decimal.Decimal
	groups            []domain.StorageGroup
	storageFees       decimal.Decimal
	minimumAdjustment decimal.Decimal
	workOrderFees     decimal.Decimal
	total             decimal.Decimal
	warnings          []domain.Warning
}

type rateKey struct {
	typeID snowflake.ID
	rate   string
}

// aggregateFees prices a customer's population. Storage is grouped by
// container type and effective rate, so containers on a negotiated rate get
// their own group instead of inheriting another container's price.
func aggregateFees(
	customerID snowflake.ID,
	all []containerdomain.Container,
	fresh []containerdomain.Container,
	types map[snowflake.ID]containerdomain.ContainerType,
	cfg domain.RunConfig,
	workOrderTotal decimal.Decimal,
) feeBreakdown {
	fb := feeBreakdown{
		newContainers:   len(fresh),
		totalContainers: len(all),
		setupFee:        effectiveSetupFee(cfg),
		workOrderFees:   workOrderTotal.Round(2),
	}
	fb.setupFees = fb.setupFee.Mul(decimal.NewFromInt(int64(len(fresh)))).Round(2)

	rates := make(map[snowflake.ID]decimal.Decimal, len(all))
	for _, c := range all {
		var containerType *containerdomain.ContainerType
		if t, ok := types[c.ContainerTypeID]; ok {
			containerType = &t
		}
		rate, gap := resolveRate(c, containerType)
		rates[c.ID] = rate
		if gap {
			fb.warnings = append(fb.warnings, domain.Warning{
				Code:            domain.WarningZeroRate,
				Message:         fmt.Sprintf("container %s has no monthly rate", c.Barcode),
				CustomerID:      customerID,
				ContainerID:     c.ID,
				ContainerTypeID: c.ContainerTypeID,
			})
		}
	}

	grouped := lo.GroupBy(all, func(c containerdomain.Container) rateKey {
		return rateKey{typeID: c.ContainerTypeID, rate: rates[c.ID].StringFixed(2)}
	})
	for key, members := range grouped {
		rate := rates[members[0].ID]
		group := domain.StorageGroup{
			ContainerTypeID: key.typeID,
			Quantity:        len(members),
			UnitRate:        rate,
			Subtotal:        rate.Mul(decimal.NewFromInt(int64(len(members)))).Round(2),
		}
		if t, ok := types[key.typeID]; ok {
			group.ContainerTypeCode = t.Code
			group.ContainerTypeName = t.Name
		}
		fb.groups = append(fb.groups, group)
	}
	slices.SortFunc(fb.groups, func(a, b domain.StorageGroup) int {
		return cmp.Or(
			cmp.Compare(a.ContainerTypeCode, b.ContainerTypeCode),
			cmp.Compare(a.ContainerTypeID, b.ContainerTypeID),
			a.UnitRate.Cmp(b.UnitRate),
		)
	})

	fb.storageFees = lo.Reduce(fb.groups, func(sum decimal.Decimal, g domain.StorageGroup, _ int) decimal.Decimal {
		return sum.Add(g.Subtotal)
	}, decimal.Zero)

	fb.minimumAdjustment = decimal.Zero
	if len(all) > 0 && cfg.MinimumMonthlyCharge.Valid {
		shortfall := cfg.MinimumMonthlyCharge.Decimal.Sub(fb.storageFees)
		if shortfall.IsPositive() {
			fb.minimumAdjustment = shortfall.Round(2)
		}
	}

	fb.total = fb.setupFees.Add(fb.storageFees).Add(fb.minimumAdjustment).Add(fb.workOrderFees)
	return fb
}

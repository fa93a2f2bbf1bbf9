package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	"gorm.io/gorm"
)

// selectPopulation loads the customer's billable containers that existed by
// the period's last day and splits out the ones due a setup fee.
func (s *Service) selectPopulation(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, period billingperioddomain.BillingPeriod) ([]containerdomain.Container, []containerdomain.Container, error) {
	all, err := s.containerRepo.ListBillable(ctx, db, orgID, customerID, period.EndExclusive())
	if err != nil {
		return nil, nil, err
	}
	all = lo.Filter(all, func(c containerdomain.Container, _ int) bool {
		return c.Billable()
	})
	return newContainers(all, period), all, nil
}

// newContainers keeps containers created inside the period whose setup fee
// is still uncharged. Older uncharged containers are not picked up.
func newContainers(all []containerdomain.Container, period billingperioddomain.BillingPeriod) []containerdomain.Container {
	return lo.Filter(all, func(c containerdomain.Container, _ int) bool {
		return !c.SetupFeeCharged && period.Contains(c.CreatedAt)
	})
}

func (s *Service) loadContainerTypes(ctx context.Context, db *gorm.DB, orgID snowflake.ID, containers []containerdomain.Container) (map[snowflake.ID]containerdomain.ContainerType, error) {
	ids := lo.Uniq(lo.Map(containers, func(c containerdomain.Container, _ int) snowflake.ID {
		return c.ContainerTypeID
	}))
	types, err := s.containerRepo.ListTypesByIDs(ctx, db, orgID, ids)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(types, func(t containerdomain.ContainerType) snowflake.ID {
		return t.ID
	}), nil
}

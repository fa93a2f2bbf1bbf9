package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/smallbiznis/vaultline/pkg/db/option"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"github.com/smallbiznis/vaultline/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo       domain.Repository
	periodrepo repository.Repository[domain.BillingPeriod]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingperiod.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:       p.Repo,
		periodrepo: repository.ProvideStore[domain.BillingPeriod](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBillingPeriodRequest) (domain.BillingPeriod, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.BillingPeriod{}, domain.ErrInvalidOrganization
	}

	start, err := parseDate(req.PeriodStart)
	if err != nil {
		return domain.BillingPeriod{}, domain.ErrInvalidPeriod
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		return domain.BillingPeriod{}, domain.ErrInvalidPeriod
	}
	if end.Before(start) {
		return domain.BillingPeriod{}, domain.ErrInvalidPeriod
	}

	var invoiceDate *time.Time
	if strings.TrimSpace(req.InvoiceDate) != "" {
		parsed, err := parseDate(req.InvoiceDate)
		if err != nil {
			return domain.BillingPeriod{}, domain.ErrInvalidInvoiceDate
		}
		invoiceDate = &parsed
	}

	var period domain.BillingPeriod
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.insertPeriod(ctx, tx, orgID, start, end, invoiceDate)
		if err != nil {
			return err
		}
		period = created
		return nil
	})
	if err != nil {
		return domain.BillingPeriod{}, err
	}

	s.log.Info("billing period opened",
		zap.String("billing_period_id", period.ID.String()),
		zap.String("period_start", period.PeriodStart.Format(domain.DateLayout)),
		zap.String("period_end", period.PeriodEnd.Format(domain.DateLayout)),
	)
	return period, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBillingPeriodRequest) (domain.ListBillingPeriodResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListBillingPeriodResponse{}, domain.ErrInvalidOrganization
	}

	switch req.Status {
	case "", domain.StatusOpen, domain.StatusInvoicing, domain.StatusInvoiced:
	default:
		return domain.ListBillingPeriodResponse{}, domain.ErrInvalidStatus
	}

	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.periodrepo.Find(ctx,
		&domain.BillingPeriod{OrgID: orgID, Status: req.Status},
		option.ApplyPagination(pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize}),
		option.OrderBy("created_at desc, id desc"),
	)
	if err != nil {
		return domain.ListBillingPeriodResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(p *domain.BillingPeriod) pagination.Cursor {
		return pagination.Cursor{
			ID:        p.ID.String(),
			CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
		}
	})

	periods := make([]domain.BillingPeriod, 0, len(items))
	for _, item := range items {
		if item != nil {
			periods = append(periods, *item)
		}
	}
	return domain.ListBillingPeriodResponse{PageInfo: pageInfo, BillingPeriods: periods}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.BillingPeriod, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.BillingPeriod{}, domain.ErrInvalidOrganization
	}

	periodID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || periodID == 0 {
		return domain.BillingPeriod{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, periodID)
	if err != nil {
		return domain.BillingPeriod{}, err
	}
	if item == nil {
		return domain.BillingPeriod{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) EnsureMonthlyPeriod(ctx context.Context, orgID snowflake.ID, now time.Time) (domain.BillingPeriod, bool, error) {
	if orgID == 0 {
		return domain.BillingPeriod{}, false, domain.ErrInvalidOrganization
	}

	start, end := previousMonth(now)

	var (
		period  domain.BillingPeriod
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindOverlapping(ctx, tx, orgID, start, end)
		if err != nil {
			return err
		}
		if existing != nil {
			period = *existing
			return nil
		}

		inserted, err := s.insertPeriod(ctx, tx, orgID, start, end, nil)
		if err != nil {
			return err
		}
		period = inserted
		created = true
		return nil
	})
	if err != nil {
		return domain.BillingPeriod{}, false, err
	}

	if created {
		s.log.Info("monthly billing period opened",
			zap.String("org_id", orgID.String()),
			zap.String("billing_period_id", period.ID.String()),
			zap.String("period_start", start.Format(domain.DateLayout)),
		)
	}
	return period, created, nil
}

func (s *Service) insertPeriod(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, start, end time.Time, invoiceDate *time.Time) (domain.BillingPeriod, error) {
	overlapping, err := s.repo.FindOverlapping(ctx, tx, orgID, start, end)
	if err != nil {
		return domain.BillingPeriod{}, err
	}
	if overlapping != nil {
		return domain.BillingPeriod{}, domain.ErrOverlappingPeriod
	}

	now := s.clock.Now()
	period := domain.BillingPeriod{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      domain.StatusOpen,
		InvoiceDate: invoiceDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, tx, &period); err != nil {
		return domain.BillingPeriod{}, err
	}
	return period, nil
}

func previousMonth(now time.Time) (time.Time, time.Time) {
	firstOfMonth := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfMonth.AddDate(0, -1, 0)
	end := firstOfMonth.AddDate(0, 0, -1)
	return start, end
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return domain.Truncate(parsed), nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/config"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	"github.com/smallbiznis/vaultline/internal/observability/metrics"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const JobEnsurePeriods = "ensure_billing_periods"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	AppConfig    config.Config
	Config       Config `optional:"true"`
	PeriodSvc    billingperioddomain.Service
	CustomerRepo customerdomain.Repository
	Metrics      *metrics.BillingMetrics `optional:"true"`
}

// Scheduler opens the monthly billing period for every known organization.
type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	defaultOrg   snowflake.ID
	periodSvc    billingperioddomain.Service
	customerRepo customerdomain.Repository
	metrics      *metrics.BillingMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.PeriodSvc == nil || p.CustomerRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		defaultOrg:   snowflake.ID(p.AppConfig.DefaultOrgID),
		periodSvc:    p.PeriodSvc,
		customerRepo: p.CustomerRepo,
		metrics:      p.Metrics,
	}, nil
}

// RunOnce executes every job a single time.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.EnsureBillingPeriodsJob(ctx)
}

// EnsureBillingPeriodsJob opens last month's period per organization when none covers it.
// A failing organization is logged and does not stop the others.
func (s *Scheduler) EnsureBillingPeriodsJob(ctx context.Context) error {
	return s.runJob(ctx, JobEnsurePeriods, s.cfg.JobTimeout, func(ctx context.Context, run *jobRun) error {
		orgIDs, err := s.organizations(ctx)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		var errs []error
		for _, orgID := range orgIDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			orgCtx := orgcontext.WithOrgID(ctx, orgID)
			period, created, err := s.periodSvc.EnsureMonthlyPeriod(orgCtx, orgID, now)
			if err != nil {
				s.logOrgError(orgCtx, run, JobEnsurePeriods, orgID, err)
				errs = append(errs, fmt.Errorf("org %s: %w", orgID, err))
				continue
			}
			if created {
				run.AddProcessed(1)
				s.logger(orgCtx).Debug("scheduler.period.opened",
					zap.String("billing_period_id", period.ID.String()),
				)
			}
		}
		return errors.Join(errs...)
	})
}

func (s *Scheduler) organizations(ctx context.Context) ([]snowflake.ID, error) {
	ids, err := s.customerRepo.ListOrgIDs(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if s.defaultOrg != 0 {
		ids = append(ids, s.defaultOrg)
	}
	ids = lo.Uniq(ids)
	slices.Sort(ids)
	return ids, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := s.newJobRun(name)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx, run)
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	// deadline is a soft timeout; the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", zap.Duration("timeout", timeout))
		return nil
	}
	log.Error("job failed", zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}

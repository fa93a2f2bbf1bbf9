package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

// NewScheduler registers the scheduler jobs on a cron runner tied to the app lifecycle.
func NewScheduler(lc fx.Lifecycle, cfg Config, sched *Scheduler) error {
	if !cfg.Enabled {
		sched.log.Info("scheduler disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		_ = sched.RunOnce(context.Background())
	}); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			sched.log.Info("scheduler started", zap.String("schedule", cfg.Schedule))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

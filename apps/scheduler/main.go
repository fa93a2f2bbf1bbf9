package main

import (
	"context"
	"flag"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/internal/billingperiod"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/config"
	"github.com/smallbiznis/vaultline/internal/customer"
	"github.com/smallbiznis/vaultline/internal/observability"
	"github.com/smallbiznis/vaultline/internal/scheduler"
	"github.com/smallbiznis/vaultline/pkg/db"
	"go.uber.org/fx"
)

func main() {
	once := flag.Bool("once", false, "open missing billing periods once and exit")
	flag.Parse()

	opts := []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by scheduler
		customer.Module,
		billingperiod.Module,

		// No server module!
	}

	if *once {
		opts = append(opts,
			fx.Provide(scheduler.ProvideConfig),
			fx.Provide(scheduler.New),
			fx.Invoke(RunOnce),
		)
	} else {
		opts = append(opts, scheduler.Module)
	}

	fx.New(opts...).Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}

// RunOnce executes the scheduler jobs a single time and stops the app.
func RunOnce(lc fx.Lifecycle, shutdowner fx.Shutdowner, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 0
				if err := s.RunOnce(context.Background()); err != nil {
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}

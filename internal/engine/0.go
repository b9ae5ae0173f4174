package engine

import (
	"time"

	"github.com/google/wire"
	"github.com/jobs/taskengine/pkg/config"
)

var Provider = wire.NewSet(
	NewOptions,
	NewQueue,
	NewScorer,
	NewWorker,
	NewService,
	NewLocker,
	wire.Bind(new(TickLocker), new(*Locker)),
	NewSweeper,
)

// Options 引擎运行参数
type Options struct {
	MaxConcurrentTasks       int
	DefaultExpirationSeconds int
	BootstrapRetryInterval   time.Duration
	ScoreMaxAttempts         int
	MaintenanceInterval      time.Duration
	LivenessAllowance        time.Duration
}

func NewOptions(cfg config.Config) Options {
	opts := Options{
		MaxConcurrentTasks:       cfg.Engine.MaxConcurrentTasks,
		DefaultExpirationSeconds: cfg.Engine.DefaultExpirationSeconds,
		BootstrapRetryInterval:   cfg.Engine.BootstrapRetryInterval,
		ScoreMaxAttempts:         cfg.Engine.ScoreMaxAttempts,
		MaintenanceInterval:      cfg.Maintenance.Interval,
		LivenessAllowance:        cfg.Maintenance.LivenessAllowance,
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentTasks <= 0 {
		o.MaxConcurrentTasks = 64
	}
	if o.DefaultExpirationSeconds <= 0 {
		o.DefaultExpirationSeconds = 600
	}
	if o.BootstrapRetryInterval <= 0 {
		o.BootstrapRetryInterval = 10 * time.Second
	}
	if o.ScoreMaxAttempts <= 0 {
		o.ScoreMaxAttempts = 10
	}
	if o.MaintenanceInterval <= 0 {
		o.MaintenanceInterval = time.Minute
	}
	if o.LivenessAllowance <= 0 {
		o.LivenessAllowance = 30 * time.Second
	}
	return o
}

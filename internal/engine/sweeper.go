package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/notify"
	"github.com/jobs/taskengine/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/samber/mo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweeper 周期性地把超时的pending结果置为expired，并结束超过结束时间的场景
type Sweeper struct {
	tasks     task.Repo
	results   result.Repo
	scenarios scenario.Repo
	notifier  *notify.Notifier
	locker    TickLocker
	logger    *zap.Logger

	interval  time.Duration
	allowance time.Duration
	cron      *cron.Cron

	mu        sync.Mutex
	startedAt time.Time
	tickStart time.Time
	lastTick  time.Time

	now func() time.Time
}

func NewSweeper(
	tasks task.Repo,
	results result.Repo,
	scenarios scenario.Repo,
	notifier *notify.Notifier,
	locker TickLocker,
	zl *zap.Logger,
	opts Options,
) *Sweeper {
	cl := logger.NewCronLogger(zl)
	return &Sweeper{
		tasks:     tasks,
		results:   results,
		scenarios: scenarios,
		notifier:  notifier,
		locker:    locker,
		logger:    zl,
		interval:  opts.MaintenanceInterval,
		allowance: opts.LivenessAllowance,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		now: time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		_ = s.Tick(ctx)
	}))
	s.cron.Start()
	s.logger.Info("maintenance sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("liveness_allowance", s.allowance))
}

// Stop 等待正在执行的一轮结束
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance sweeper stopped")
}

// Tick 并发执行一轮维护，失败只记录日志，不影响后续轮次
func (s *Sweeper) Tick(ctx context.Context) error {
	s.mu.Lock()
	s.tickStart = s.now()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.tickStart = time.Time{}
		s.lastTick = s.now()
		s.mu.Unlock()
	}()

	var err error
	if s.locker == nil {
		err = s.sweep(ctx)
	} else {
		var ran bool
		ran, err = s.locker.WithLock(ctx, s.sweep)
		if !ran && err == nil {
			s.logger.Debug("maintenance lock held by another instance, tick skipped")
		}
	}
	if err != nil {
		s.logger.Error("maintenance tick failed", zap.Error(err))
	}
	return err
}

func (s *Sweeper) sweep(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.expireResults(ctx) })
	g.Go(func() error { return s.endScenarios(ctx) })
	return g.Wait()
}

// Healthy 一轮维护超过允许时间，或启动后长时间没有完成任何一轮时返回false
func (s *Sweeper) Healthy() bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tickStart.IsZero() && now.Sub(s.tickStart) > s.allowance {
		return false
	}
	last := s.lastTick
	if last.IsZero() {
		last = s.startedAt
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) <= s.interval+s.allowance
}

func (s *Sweeper) expireResults(ctx context.Context) error {
	pending, err := s.results.List(ctx, result.ListFilter{Status: mo.Some(task.StatusPending)})
	if err != nil {
		return fmt.Errorf("failed to list pending results: %w", err)
	}

	now := s.now()
	owners := make(map[uint64]uint64)
	var errs []error
	expired := 0
	for _, r := range pending {
		if !r.Overdue(now) {
			continue
		}
		r.Expire(now)
		if err := s.results.Save(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("failed to expire result %d: %w", r.ID, err))
			continue
		}
		expired++
		s.notifier.ResultsUpdated(ctx, s.scenarioOf(ctx, r, owners), r)
	}
	if expired > 0 {
		s.logger.Info("pending results expired", zap.Int("count", expired))
	}
	return errors.Join(errs...)
}

func (s *Sweeper) scenarioOf(ctx context.Context, r *result.Result, owners map[uint64]uint64) uint64 {
	if r.TaskID == nil {
		return 0
	}
	if id, ok := owners[*r.TaskID]; ok {
		return id
	}
	var id uint64
	if t, err := s.tasks.GetByID(ctx, *r.TaskID); err == nil && t != nil && t.ScenarioID != nil {
		id = *t.ScenarioID
	}
	owners[*r.TaskID] = id
	return id
}

func (s *Sweeper) endScenarios(ctx context.Context) error {
	active, err := s.scenarios.ListByStatus(ctx, scenario.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active scenarios: %w", err)
	}

	now := s.now()
	var errs []error
	for _, sc := range active {
		if !sc.Overdue(now) {
			continue
		}
		sc.End()
		if err := s.scenarios.Save(ctx, sc); err != nil {
			errs = append(errs, fmt.Errorf("failed to end scenario %d: %w", sc.ID, err))
			continue
		}
		s.logger.Info("scenario ended", zap.Uint64("scenario_id", sc.ID), zap.Timep("end_date", sc.EndDate))
		s.notifier.ScenarioUpdated(ctx, sc)
	}
	return errors.Join(errs...)
}

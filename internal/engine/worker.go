package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/notify"
	"github.com/jobs/taskengine/internal/targets"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ActionExecutor 按选择器(ApiUrl)分派动作
type ActionExecutor interface {
	Execute(ctx context.Context, selector string, action task.Action, input string) (string, error)
}

// Worker 消费执行队列，每个任务一次执行一轮
type Worker struct {
	tasks     task.Repo
	results   result.Repo
	scenarios scenario.Repo
	directory targets.Directory
	executor  ActionExecutor
	scorer    *Scorer
	queue     *Queue
	notifier  *notify.Notifier
	logger    *zap.Logger
	opts      Options

	ready atomic.Bool
	now   func() time.Time
}

func NewWorker(
	tasks task.Repo,
	results result.Repo,
	scenarios scenario.Repo,
	directory targets.Directory,
	executor ActionExecutor,
	scorer *Scorer,
	queue *Queue,
	notifier *notify.Notifier,
	logger *zap.Logger,
	opts Options,
) *Worker {
	return &Worker{
		tasks:     tasks,
		results:   results,
		scenarios: scenarios,
		directory: directory,
		executor:  executor,
		scorer:    scorer,
		queue:     queue,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Ready 启动恢复完成后为true
func (w *Worker) Ready() bool {
	return w.ready.Load()
}

// Run 先完成启动恢复，然后消费队列直到ctx结束，返回前等待在途任务。
// 延迟等待在并发池外进行，池只限制同时分发的任务数。
func (w *Worker) Run(ctx context.Context) error {
	if err := w.bootstrapWithRetry(ctx); err != nil {
		return err
	}
	w.ready.Store(true)
	w.logger.Info("execution worker started", zap.Int("max_concurrent_tasks", w.opts.MaxConcurrentTasks))

	p := pool.New().WithMaxGoroutines(w.opts.MaxConcurrentTasks)
	var staging sync.WaitGroup
	defer func() {
		staging.Wait()
		p.Wait()
	}()
	for {
		t, err := w.queue.Take(ctx)
		if err != nil {
			w.logger.Info("execution worker stopping", zap.Int("queued", w.queue.Len()))
			return nil
		}
		staging.Add(1)
		go func() {
			defer staging.Done()
			ps, ok := w.prepare(ctx, t)
			if !ok || !w.await(ctx, ps) {
				return
			}
			p.Go(func() {
				w.execute(ctx, ps)
			})
		}()
	}
}

func (w *Worker) bootstrapWithRetry(ctx context.Context) error {
	for {
		err := w.Bootstrap(ctx)
		if err == nil {
			return nil
		}
		w.logger.Error("bootstrap failed, retrying",
			zap.Duration("retry_in", w.opts.BootstrapRetryInterval),
			zap.Error(err))

		timer := time.NewTimer(w.opts.BootstrapRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Bootstrap 重新汇总脏分数，然后把仍有queued结果的任务重新放入队列
func (w *Worker) Bootstrap(ctx context.Context) error {
	if err := w.scorer.RecomputeDirty(ctx); err != nil {
		// 脏标记保留，任务完成时会再次汇总
		w.logger.Warn("failed to recompute dirty scores during bootstrap", zap.Error(err))
	}

	queued, err := w.results.List(ctx, result.ListFilter{Status: mo.Some(task.StatusQueued)})
	if err != nil {
		return fmt.Errorf("failed to list queued results: %w", err)
	}
	byTask := lo.GroupBy(
		lo.Filter(queued, func(r *result.Result, _ int) bool { return r.TaskID != nil }),
		func(r *result.Result) uint64 { return *r.TaskID },
	)
	ids := lo.Keys(byTask)
	slices.Sort(ids)

	resumed := make([]*task.Task, 0, len(ids))
	for _, id := range ids {
		t, err := w.tasks.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load task %d: %w", id, err)
		}
		if t == nil {
			continue
		}
		first := byTask[id][0]
		t.UserID = first.UserID
		t.Substitutions = first.Substitutions
		resumed = append(resumed, t)
	}
	for _, t := range resumed {
		_ = w.queue.Add(t)
	}

	w.logger.Info("bootstrap completed",
		zap.Int("queued_results", len(queued)),
		zap.Int("resumed_tasks", len(resumed)))
	return nil
}

// pass 任务一轮执行的中间状态
type pass struct {
	task       *task.Task
	scenario   *scenario.Scenario
	scenarioID uint64
	results    []*result.Result
	delay      time.Duration
	log        *zap.Logger
}

// Process 同步执行任务的一轮：解析目标、等待延迟、分发、记录结果并决定后续
func (w *Worker) Process(ctx context.Context, handle *task.Task) {
	ps, ok := w.prepare(ctx, handle)
	if !ok || !w.await(ctx, ps) {
		return
	}
	w.execute(ctx, ps)
}

func recoverPass(log *zap.Logger) {
	if r := recover(); r != nil {
		log.Error("task pass panicked", zap.Any("panic", r))
	}
}

// prepare 加载任务并创建(或恢复)本轮的queued结果，目标解析失败时返回false
func (w *Worker) prepare(ctx context.Context, handle *task.Task) (ps *pass, ok bool) {
	log := w.logger.With(zap.Uint64("task_id", handle.ID))
	defer recoverPass(log)

	t, err := w.tasks.GetByID(ctx, handle.ID)
	if err != nil {
		log.Error("failed to load task", zap.Error(err))
		return nil, false
	}
	if t == nil {
		log.Debug("task no longer exists")
		return nil, false
	}
	t.Substitutions = handle.Substitutions
	if handle.UserID != nil {
		t.UserID = handle.UserID
	}

	sc, eligible := w.eligible(ctx, t, log)
	if !eligible {
		return nil, false
	}
	scenarioID := lo.FromPtr(t.ScenarioID)

	inflight, err := w.results.List(ctx, result.ListFilter{
		TaskID: mo.Some(t.ID),
		Status: mo.Some(task.StatusQueued),
	})
	if err != nil {
		log.Error("failed to list queued results", zap.Error(err))
		return nil, false
	}

	resuming := len(inflight) > 0
	delay := t.NextDelay(resuming)
	now := w.now()
	var results []*result.Result
	if resuming {
		elapsed := now.Sub(lo.MinBy(inflight, func(a, b *result.Result) bool {
			return a.StatusDate.Before(b.StatusDate)
		}).StatusDate)
		delay = max(0, delay-elapsed)
		for _, r := range inflight {
			r.Touch(now)
			if err := w.results.Save(ctx, r); err != nil {
				log.Error("failed to touch queued result", zap.Uint64("result_id", r.ID), zap.Error(err))
				return nil, false
			}
		}
		results = inflight
		log.Info("resuming queued results", zap.Int("results", len(results)), zap.Duration("delay", delay))
	} else {
		results = w.createResults(ctx, t, sc, now)
		err := w.results.Execute(ctx, func(ctx context.Context) error {
			if err := w.results.CreateBatch(ctx, results); err != nil {
				return err
			}
			t.CurrentIteration++
			return w.tasks.SaveExecutionState(ctx, t)
		})
		if err != nil {
			log.Error("failed to create results", zap.Error(err))
			return nil, false
		}
	}
	w.notifier.ResultsUpdated(ctx, scenarioID, results...)

	if failed, found := lo.Find(results, func(r *result.Result) bool { return r.Status == task.StatusError }); found {
		log.Warn("target resolution failed, pass aborted", zap.String("diagnostic", failed.ActualOutput))
		return nil, false
	}
	return &pass{
		task:       t,
		scenario:   sc,
		scenarioID: scenarioID,
		results:    results,
		delay:      delay,
		log:        log,
	}, true
}

// await 等待本轮延迟，期间停机则结果保持queued
func (w *Worker) await(ctx context.Context, ps *pass) bool {
	if ps.delay <= 0 {
		return true
	}
	timer := time.NewTimer(ps.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		ps.log.Info("shutdown during delay, results stay queued")
		return false
	case <-timer.C:
		return true
	}
}

// execute 分发本轮结果并记录任务状态
func (w *Worker) execute(ctx context.Context, ps *pass) {
	defer recoverPass(ps.log)
	if ctx.Err() != nil {
		ps.log.Info("shutdown before dispatch, results stay queued")
		return
	}

	// 分发之后不再响应停机，保证结果进入终态
	ctx = context.WithoutCancel(ctx)
	t := ps.task
	t.Status = w.dispatch(ctx, ps.scenarioID, ps.results, ps.log)
	if err := w.tasks.SaveExecutionState(ctx, t); err != nil {
		ps.log.Error("failed to save task status", zap.Error(err))
		return
	}
	w.notifier.TaskUpdated(ctx, t)
	ps.log.Info("task pass completed",
		zap.String("status", string(t.Status)),
		zap.Int("iteration", t.CurrentIteration),
		zap.Int("iterations", t.Iterations))

	w.continueWith(ctx, t, ps.scenario, ps.log)
}

// eligible 模板任务、已取消任务以及场景未激活的任务直接丢弃
func (w *Worker) eligible(ctx context.Context, t *task.Task, log *zap.Logger) (*scenario.Scenario, bool) {
	if t.IsTemplateTask() {
		log.Debug("task belongs to a template, dropped")
		return nil, false
	}
	if t.Status == task.StatusCancelled {
		log.Debug("task is cancelled, dropped")
		return nil, false
	}
	if t.ScenarioID == nil {
		return nil, true
	}
	sc, err := w.scenarios.GetByID(ctx, *t.ScenarioID)
	if err != nil {
		log.Error("failed to load scenario", zap.Uint64("scenario_id", *t.ScenarioID), zap.Error(err))
		return nil, false
	}
	if sc != nil && !sc.IsActive() {
		log.Debug("scenario is not active, dropped",
			zap.Uint64("scenario_id", sc.ID),
			zap.String("scenario_status", string(sc.Status)))
		return nil, false
	}
	return sc, true
}

// createResults 每个匹配目标一条queued结果，无法解析目标时返回一条error结果
func (w *Worker) createResults(ctx context.Context, t *task.Task, sc *scenario.Scenario, now time.Time) []*result.Result {
	if strings.TrimSpace(t.VMMask) == "" {
		return []*result.Result{result.NewFromTask(t, now)}
	}

	diagnose := func(format string, args ...any) []*result.Result {
		return []*result.Result{result.NewError(t, fmt.Sprintf(format, args...), now)}
	}
	if sc == nil {
		return diagnose("no scenario bound to task %d", t.ID)
	}
	if sc.ViewID == nil {
		return diagnose("no view bound to scenario %d", sc.ID)
	}
	list, err := w.directory.ListTargets(ctx, *sc.ViewID)
	if err != nil {
		return diagnose("failed to list targets of view %s: %v", sc.ViewID, err)
	}
	matched := parseMask(t.VMMask).Match(list)
	if len(matched) == 0 {
		return diagnose("no VMs matched %q in view %s", t.VMMask, sc.ViewID)
	}
	return lo.Map(matched, func(target targets.Target, _ int) *result.Result {
		return result.NewFromTask(t, now).WithTarget(target.ID, target.Name)
	})
}

type completion struct {
	result *result.Result
	output string
	err    error
}

// dispatch 并发执行全部结果，按完成顺序记录并合并任务状态
func (w *Worker) dispatch(ctx context.Context, scenarioID uint64, results []*result.Result, log *zap.Logger) task.Status {
	done := make(chan completion, len(results))
	for _, r := range results {
		r.MarkSent(r.Substitute(), w.opts.DefaultExpirationSeconds, w.now())
		if err := w.results.Save(ctx, r); err != nil {
			log.Error("failed to save dispatched result", zap.Uint64("result_id", r.ID), zap.Error(err))
		}
		w.notifier.ResultsUpdated(ctx, scenarioID, r)
		go w.call(ctx, r, done)
	}

	status := task.StatusSucceeded
	for range results {
		c := <-done
		c.result.Complete(c.output, c.err, w.now())
		if c.err != nil {
			log.Error("action execution failed",
				zap.Uint64("result_id", c.result.ID),
				zap.String("selector", c.result.APIURL),
				zap.String("action", string(c.result.Action)),
				zap.Error(c.err))
		}
		if err := w.results.Save(ctx, c.result); err != nil {
			log.Error("failed to save completed result", zap.Uint64("result_id", c.result.ID), zap.Error(err))
		}
		w.notifier.ResultsUpdated(ctx, scenarioID, c.result)
		status = status.Merge(c.result.Status)
	}
	return status
}

// call 执行器不响应ctx时也在过期时间到达后返回
func (w *Worker) call(ctx context.Context, r *result.Result, done chan<- completion) {
	callCtx, cancel := context.WithTimeout(ctx, r.Expiration())
	defer cancel()

	ch := make(chan completion, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- completion{result: r, err: fmt.Errorf("executor panicked: %v", p)}
			}
		}()
		output, err := w.executor.Execute(callCtx, r.APIURL, r.Action, r.InputString)
		ch <- completion{result: r, output: output, err: err}
	}()

	select {
	case c := <-ch:
		done <- c
	case <-callCtx.Done():
		done <- completion{result: r, err: callCtx.Err()}
	}
}

// continueWith 需要继续迭代时重新入队，否则触发匹配的子任务；每轮结束后汇总场景分数
func (w *Worker) continueWith(ctx context.Context, t *task.Task, sc *scenario.Scenario, log *zap.Logger) {
	if sc != nil {
		defer w.recompute(ctx, sc.ID, log)
	}

	if t.ShouldIterate() {
		_ = w.queue.Add(t)
		log.Debug("task re-enqueued for next iteration", zap.Int("iteration", t.CurrentIteration))
		return
	}

	children, err := w.tasks.ListChildren(ctx, t.ID)
	if err != nil {
		log.Error("failed to list child tasks", zap.Error(err))
		return
	}
	for _, child := range children {
		if !child.TriggeredBy(t.Status) {
			continue
		}
		child.Status = task.StatusPending
		if err := w.tasks.SaveExecutionState(ctx, child); err != nil {
			log.Error("failed to save triggered task", zap.Uint64("child_id", child.ID), zap.Error(err))
			continue
		}
		w.notifier.TaskUpdated(ctx, child)
		_ = w.queue.Add(child)
		log.Debug("child task triggered",
			zap.Uint64("child_id", child.ID),
			zap.String("condition", string(child.TriggerCondition)))
	}
}

func (w *Worker) recompute(ctx context.Context, scenarioID uint64, log *zap.Logger) {
	if err := w.scenarios.MarkDirty(ctx, scenarioID); err != nil {
		log.Error("failed to mark scenario scores dirty", zap.Uint64("scenario_id", scenarioID), zap.Error(err))
		return
	}
	if _, err := w.scorer.RecomputeScenario(ctx, scenarioID); err != nil {
		log.Error("failed to recompute scenario scores", zap.Uint64("scenario_id", scenarioID), zap.Error(err))
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/notify"
	"go.uber.org/zap"
)

// Service 引擎对外的内部服务入口
type Service struct {
	tasks     task.Repo
	scenarios scenario.Repo
	queue     *Queue
	worker    *Worker
	scorer    *Scorer
	notifier  *notify.Notifier
	logger    *zap.Logger
	runner    *serializableRunner
}

func NewService(
	tasks task.Repo,
	scenarios scenario.Repo,
	queue *Queue,
	worker *Worker,
	scorer *Scorer,
	notifier *notify.Notifier,
	logger *zap.Logger,
	opts Options,
) *Service {
	return &Service{
		tasks:     tasks,
		scenarios: scenarios,
		queue:     queue,
		worker:    worker,
		scorer:    scorer,
		notifier:  notifier,
		logger:    logger,
		runner:    newSerializableRunner(tasks, opts.ScoreMaxAttempts, logger),
	}
}

// Ready 启动恢复完成后才接受执行请求
func (s *Service) Ready() bool {
	return s.worker.Ready()
}

// Enqueue 重置任务子树并放入执行队列
func (s *Service) Enqueue(ctx context.Context, taskID uint64, userID uuid.UUID) (*task.Task, error) {
	return s.ExecuteWithSubstitutions(ctx, taskID, userID, nil)
}

// ExecuteWithSubstitutions 同Enqueue，执行时用values替换输入中的{{key}}占位符
func (s *Service) ExecuteWithSubstitutions(ctx context.Context, taskID uint64, userID uuid.UUID, values map[string]any) (*task.Task, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	t, err := s.PrepareTaskToExecute(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	t.Substitutions = result.Stringify(values)
	if err := s.queue.Add(t); err != nil {
		return nil, err
	}
	s.logger.Info("task enqueued",
		zap.Uint64("task_id", t.ID),
		zap.String("user_id", userID.String()),
		zap.Int("substitutions", len(t.Substitutions)))
	return t, nil
}

// PrepareTaskToExecute 在SERIALIZABLE事务中重置子树并把根任务置为pending
func (s *Service) PrepareTaskToExecute(ctx context.Context, taskID uint64, userID uuid.UUID) (*task.Task, error) {
	var (
		root    *task.Task
		subtree []*task.Task
	)
	err := s.runner.Run(ctx, "prepare task", func(ctx context.Context) error {
		t, err := s.tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%w: %d", ErrTaskNotFound, taskID)
		}
		if t.IsTemplateTask() || t.ScenarioID == nil {
			return ErrTemplateTask
		}

		sc, err := s.scenarios.GetByID(ctx, *t.ScenarioID)
		if err != nil {
			return err
		}
		if sc == nil {
			return fmt.Errorf("%w: %d", ErrScenarioNotFound, *t.ScenarioID)
		}
		if !sc.IsActive() {
			return ErrScenarioInactive
		}

		nodes, err := s.tasks.ListByScenario(ctx, sc.ID)
		if err != nil {
			return err
		}
		tree := task.NewTree(nodes)
		if !tree.Executable(taskID) {
			return ErrNotExecutable
		}

		subtree = tree.Subtree(taskID)
		for _, n := range subtree {
			n.Reset(userID)
		}
		root = subtree[0]
		root.Status = task.StatusPending
		for _, n := range subtree {
			if err := s.tasks.Save(ctx, n); err != nil {
				return err
			}
		}
		return s.scenarios.MarkDirty(ctx, sc.ID)
	})
	if err != nil {
		if isPermanent(err) {
			s.logger.Debug("task rejected", zap.Uint64("task_id", taskID), zap.Error(err))
		} else {
			s.logger.Error("failed to prepare task", zap.Uint64("task_id", taskID), zap.Error(err))
		}
		return nil, err
	}

	for _, n := range subtree {
		s.notifier.TaskUpdated(ctx, n)
	}
	return root, nil
}

func (s *Service) RecomputeScenario(ctx context.Context, scenarioID uint64) (*scenario.Scenario, error) {
	return s.scorer.RecomputeScenario(ctx, scenarioID)
}

func (s *Service) RecomputeTemplate(ctx context.Context, templateID uint64) (*scenario.Template, error) {
	return s.scorer.RecomputeTemplate(ctx, templateID)
}

func (s *Service) RecomputeDirty(ctx context.Context) error {
	return s.scorer.RecomputeDirty(ctx)
}

// IsValidationError 请求在当前状态下不可执行
func IsValidationError(err error) bool {
	return errors.Is(err, ErrTemplateTask) ||
		errors.Is(err, ErrScenarioInactive) ||
		errors.Is(err, ErrNotExecutable)
}

// IsNotFound 请求的任务、场景或模板不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrTemplateNotFound)
}

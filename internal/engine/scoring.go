package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/notify"
	"go.uber.org/zap"
)

// Scorer 重新汇总场景或模板任务森林的分数与状态
type Scorer struct {
	tasks     task.Repo
	scenarios scenario.Repo
	notifier  *notify.Notifier
	logger    *zap.Logger
	runner    *serializableRunner
}

func NewScorer(tasks task.Repo, scenarios scenario.Repo, notifier *notify.Notifier, logger *zap.Logger, opts Options) *Scorer {
	return &Scorer{
		tasks:     tasks,
		scenarios: scenarios,
		notifier:  notifier,
		logger:    logger,
		runner:    newSerializableRunner(scenarios, opts.ScoreMaxAttempts, logger),
	}
}

// RecomputeScenario 在一个SERIALIZABLE事务中更新全部任务的汇总字段和场景分数
func (s *Scorer) RecomputeScenario(ctx context.Context, scenarioID uint64) (*scenario.Scenario, error) {
	var (
		sc    *scenario.Scenario
		nodes []*task.Task
	)
	err := s.runner.Run(ctx, "recompute scenario", func(ctx context.Context) error {
		var err error
		sc, err = s.scenarios.GetByID(ctx, scenarioID)
		if err != nil {
			return err
		}
		if sc == nil {
			return fmt.Errorf("%w: %d", ErrScenarioNotFound, scenarioID)
		}
		nodes, err = s.tasks.ListByScenario(ctx, scenarioID)
		if err != nil {
			return err
		}

		score, earned, err := s.rollup(ctx, nodes)
		if err != nil {
			return err
		}
		sc.Score = score
		sc.ScoreEarned = earned
		sc.UpdateScores = false
		return s.scenarios.Save(ctx, sc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scenario scores recomputed",
		zap.Uint64("scenario_id", sc.ID),
		zap.Int("score", sc.Score),
		zap.Int("score_earned", sc.ScoreEarned))
	for _, n := range nodes {
		s.notifier.TaskUpdated(ctx, n)
	}
	s.notifier.ScenarioUpdated(ctx, sc)
	return sc, nil
}

// RecomputeTemplate 模板任务不会执行，只汇总总分
func (s *Scorer) RecomputeTemplate(ctx context.Context, templateID uint64) (*scenario.Template, error) {
	var tpl *scenario.Template
	err := s.runner.Run(ctx, "recompute template", func(ctx context.Context) error {
		var err error
		tpl, err = s.scenarios.GetTemplateByID(ctx, templateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return fmt.Errorf("%w: %d", ErrTemplateNotFound, templateID)
		}
		nodes, err := s.tasks.ListByTemplate(ctx, templateID)
		if err != nil {
			return err
		}

		score, _, err := s.rollup(ctx, nodes)
		if err != nil {
			return err
		}
		tpl.Score = score
		tpl.UpdateScores = false
		return s.scenarios.SaveTemplate(ctx, tpl)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("template scores recomputed",
		zap.Uint64("template_id", tpl.ID),
		zap.Int("score", tpl.Score))
	return tpl, nil
}

// RecomputeDirty 重新汇总所有标记了UpdateScores的场景和模板，单个失败不影响其他
func (s *Scorer) RecomputeDirty(ctx context.Context) error {
	scenarios, err := s.scenarios.ListDirty(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dirty scenarios: %w", err)
	}
	templates, err := s.scenarios.ListDirtyTemplates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dirty templates: %w", err)
	}

	var errs []error
	for _, sc := range scenarios {
		if _, err := s.RecomputeScenario(ctx, sc.ID); err != nil {
			s.logger.Error("failed to recompute scenario scores", zap.Uint64("scenario_id", sc.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	for _, tpl := range templates {
		if _, err := s.RecomputeTemplate(ctx, tpl.ID); err != nil {
			s.logger.Error("failed to recompute template scores", zap.Uint64("template_id", tpl.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scorer) rollup(ctx context.Context, nodes []*task.Task) (int, int, error) {
	score, earned := task.NewTree(nodes).Rollup()
	for _, n := range nodes {
		if err := s.tasks.SaveRollup(ctx, n); err != nil {
			return 0, 0, fmt.Errorf("failed to save rollup of task %d: %w", n.ID, err)
		}
	}
	return score, earned, nil
}

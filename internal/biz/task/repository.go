package task

import (
	"context"

	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
)

type Repo interface {
	commonrepo.Transaction

	// GetByID 不存在时返回nil, nil
	GetByID(ctx context.Context, id uint64) (*Task, error)
	// Save 保存整行，保存前校验归属
	Save(ctx context.Context, task *Task) error
	// SaveExecutionState 只更新执行状态字段(status、current_iteration、user_id)
	SaveExecutionState(ctx context.Context, task *Task) error

	// ListByScenario 加载场景的全部任务，用于构建完整的任务森林
	ListByScenario(ctx context.Context, scenarioID uint64) ([]*Task, error)
	ListByTemplate(ctx context.Context, templateID uint64) ([]*Task, error)
	ListChildren(ctx context.Context, parentID uint64) ([]*Task, error)

	// SaveRollup 只更新汇总字段
	SaveRollup(ctx context.Context, task *Task) error
}

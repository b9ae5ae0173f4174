package taskrepo

import (
	"context"
	"errors"

	"github.com/google/wire"
	domain "github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Task, error) {
	var po TaskPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *MysqlRepositoryImpl) Save(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	po := new(TaskPo).FromDomain(task)
	if err := r.Db(ctx).Save(po).Error; err != nil {
		return err
	}
	task.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *MysqlRepositoryImpl) SaveExecutionState(ctx context.Context, task *domain.Task) error {
	return r.Db(ctx).Model(&TaskPo{}).Where("id = ?", task.ID).Updates(executionStateToMap(task)).Error
}

func (r *MysqlRepositoryImpl) SaveRollup(ctx context.Context, task *domain.Task) error {
	return r.Db(ctx).Model(&TaskPo{}).Where("id = ?", task.ID).Updates(rollupToMap(task)).Error
}

func (r *MysqlRepositoryImpl) ListByScenario(ctx context.Context, scenarioID uint64) ([]*domain.Task, error) {
	return r.list(ctx, "scenario_id = ?", scenarioID)
}

func (r *MysqlRepositoryImpl) ListByTemplate(ctx context.Context, templateID uint64) ([]*domain.Task, error) {
	return r.list(ctx, "scenario_template_id = ?", templateID)
}

func (r *MysqlRepositoryImpl) ListChildren(ctx context.Context, parentID uint64) ([]*domain.Task, error) {
	return r.list(ctx, "trigger_task_id = ?", parentID)
}

func (r *MysqlRepositoryImpl) list(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	var pos []TaskPo
	if err := r.Db(ctx).Where(query, args...).Order("id").Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po TaskPo, _ int) *domain.Task {
		return po.ToDomain()
	}), nil
}

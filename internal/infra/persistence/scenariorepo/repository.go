package scenariorepo

import (
	"context"
	"errors"

	"github.com/google/wire"
	domain "github.com/jobs/taskengine/internal/biz/scenario"
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

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Scenario, error) {
	var po ScenarioPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *MysqlRepositoryImpl) Save(ctx context.Context, scenario *domain.Scenario) error {
	po := new(ScenarioPo).FromDomain(scenario)
	if err := r.Db(ctx).Save(po).Error; err != nil {
		return err
	}
	scenario.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *MysqlRepositoryImpl) MarkDirty(ctx context.Context, id uint64) error {
	return r.Db(ctx).Model(&ScenarioPo{}).Where("id = ?", id).Update("update_scores", true).Error
}

func (r *MysqlRepositoryImpl) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Scenario, error) {
	return r.listScenarios(ctx, "status = ?", status)
}

func (r *MysqlRepositoryImpl) ListDirty(ctx context.Context) ([]*domain.Scenario, error) {
	return r.listScenarios(ctx, "update_scores = ?", true)
}

func (r *MysqlRepositoryImpl) listScenarios(ctx context.Context, query string, args ...any) ([]*domain.Scenario, error) {
	var pos []ScenarioPo
	if err := r.Db(ctx).Where(query, args...).Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po ScenarioPo, _ int) *domain.Scenario {
		return po.ToDomain()
	}), nil
}

func (r *MysqlRepositoryImpl) GetTemplateByID(ctx context.Context, id uint64) (*domain.Template, error) {
	var po ScenarioTemplatePo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *MysqlRepositoryImpl) SaveTemplate(ctx context.Context, template *domain.Template) error {
	po := new(ScenarioTemplatePo).FromDomain(template)
	if err := r.Db(ctx).Save(po).Error; err != nil {
		return err
	}
	template.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *MysqlRepositoryImpl) ListDirtyTemplates(ctx context.Context) ([]*domain.Template, error) {
	var pos []ScenarioTemplatePo
	if err := r.Db(ctx).Where("update_scores = ?", true).Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po ScenarioTemplatePo, _ int) *domain.Template {
		return po.ToDomain()
	}), nil
}

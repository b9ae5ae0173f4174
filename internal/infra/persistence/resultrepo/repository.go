package resultrepo

import (
	"context"

	"github.com/google/wire"
	domain "github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"github.com/samber/lo"
	"github.com/yitter/idgenerator-go/idgen"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) CreateBatch(ctx context.Context, results []*domain.Result) error {
	if len(results) == 0 {
		return nil
	}
	pos := lo.Map(results, func(in *domain.Result, _ int) *ResultPo {
		po := new(ResultPo).FromDomain(in)
		if po.ID == 0 {
			po.ID = uint64(idgen.NextId())
		}
		return po
	})
	if err := r.Db(ctx).Create(&pos).Error; err != nil {
		return err
	}
	for i, po := range pos {
		results[i].ID = po.ID
		results[i].CreatedAt = po.CreatedAt
		results[i].UpdatedAt = po.UpdatedAt
	}
	return nil
}

func (r *MysqlRepositoryImpl) Save(ctx context.Context, result *domain.Result) error {
	po := new(ResultPo).FromDomain(result)
	if err := r.Db(ctx).Save(po).Error; err != nil {
		return err
	}
	result.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *MysqlRepositoryImpl) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Result, error) {
	db := r.Db(ctx).Model(&ResultPo{})
	if filter.TaskID.IsPresent() {
		db = db.Where("task_id = ?", filter.TaskID.MustGet())
	}
	if filter.Status.IsPresent() {
		db = db.Where("status = ?", filter.Status.MustGet())
	}

	var pos []*ResultPo
	if err := db.Order("id").Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po *ResultPo, _ int) *domain.Result {
		return po.ToDomain()
	}), nil
}

package result

import (
	"context"

	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"github.com/samber/mo"
)

type Repo interface {
	commonrepo.Transaction

	CreateBatch(ctx context.Context, results []*Result) error
	Save(ctx context.Context, result *Result) error
	List(ctx context.Context, filter ListFilter) ([]*Result, error)
}

type ListFilter struct {
	TaskID mo.Option[uint64]
	Status mo.Option[task.Status]
}

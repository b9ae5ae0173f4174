package scenario

import (
	"context"

	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
)

type Repo interface {
	commonrepo.Transaction

	// GetByID 不存在时返回nil, nil
	GetByID(ctx context.Context, id uint64) (*Scenario, error)
	Save(ctx context.Context, scenario *Scenario) error
	ListByStatus(ctx context.Context, status Status) ([]*Scenario, error)
	ListDirty(ctx context.Context) ([]*Scenario, error)
	// MarkDirty 只设置UpdateScores，避免覆盖并发写入的其他字段
	MarkDirty(ctx context.Context, id uint64) error

	GetTemplateByID(ctx context.Context, id uint64) (*Template, error)
	SaveTemplate(ctx context.Context, template *Template) error
	ListDirtyTemplates(ctx context.Context) ([]*Template, error)
}

package scenariorepo

import (
	domain "github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
)

func (po *ScenarioPo) FromDomain(in *domain.Scenario) *ScenarioPo {
	return &ScenarioPo{
		Mode: commonrepo.Mode{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		Name:         in.Name,
		Description:  in.Description,
		Status:       in.Status,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		ViewID:       in.ViewID,
		UpdateScores: in.UpdateScores,
		Score:        in.Score,
		ScoreEarned:  in.ScoreEarned,
	}
}

func (po *ScenarioPo) ToDomain() *domain.Scenario {
	return &domain.Scenario{
		ID:           po.ID,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
		Name:         po.Name,
		Description:  po.Description,
		Status:       po.Status,
		StartDate:    po.StartDate,
		EndDate:      po.EndDate,
		ViewID:       po.ViewID,
		UpdateScores: po.UpdateScores,
		Score:        po.Score,
		ScoreEarned:  po.ScoreEarned,
	}
}

func (po *ScenarioTemplatePo) FromDomain(in *domain.Template) *ScenarioTemplatePo {
	return &ScenarioTemplatePo{
		Mode: commonrepo.Mode{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		Name:         in.Name,
		Description:  in.Description,
		UpdateScores: in.UpdateScores,
		Score:        in.Score,
	}
}

func (po *ScenarioTemplatePo) ToDomain() *domain.Template {
	return &domain.Template{
		ID:           po.ID,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
		Name:         po.Name,
		Description:  po.Description,
		UpdateScores: po.UpdateScores,
		Score:        po.Score,
	}
}

package taskrepo

import (
	domain "github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
)

func (po *TaskPo) FromDomain(in *domain.Task) *TaskPo {
	return &TaskPo{
		Mode: commonrepo.Mode{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		Name:                 in.Name,
		Description:          in.Description,
		ScenarioID:           in.ScenarioID,
		ScenarioTemplateID:   in.ScenarioTemplateID,
		UserID:               in.UserID,
		Action:               in.Action,
		APIURL:               in.APIURL,
		InputString:          in.InputString,
		ExpectedOutput:       in.ExpectedOutput,
		VMMask:               in.VMMask,
		DelaySeconds:         in.DelaySeconds,
		IntervalSeconds:      in.IntervalSeconds,
		ExpirationSeconds:    in.ExpirationSeconds,
		Iterations:           in.Iterations,
		IterationTermination: in.IterationTermination,
		CurrentIteration:     in.CurrentIteration,
		TriggerTaskID:        in.TriggerTaskID,
		TriggerCondition:     in.TriggerCondition,
		Score:                in.Score,
		TotalScore:           in.TotalScore,
		TotalScoreEarned:     in.TotalScoreEarned,
		Status:               in.Status,
		TotalStatus:          in.TotalStatus,
		Repeatable:           in.Repeatable,
		UserExecutable:       in.UserExecutable,
	}
}

func (po *TaskPo) ToDomain() *domain.Task {
	return &domain.Task{
		ID:                   po.ID,
		CreatedAt:            po.CreatedAt,
		UpdatedAt:            po.UpdatedAt,
		Name:                 po.Name,
		Description:          po.Description,
		ScenarioID:           po.ScenarioID,
		ScenarioTemplateID:   po.ScenarioTemplateID,
		UserID:               po.UserID,
		Action:               po.Action,
		APIURL:               po.APIURL,
		InputString:          po.InputString,
		ExpectedOutput:       po.ExpectedOutput,
		VMMask:               po.VMMask,
		DelaySeconds:         po.DelaySeconds,
		IntervalSeconds:      po.IntervalSeconds,
		ExpirationSeconds:    po.ExpirationSeconds,
		Iterations:           po.Iterations,
		IterationTermination: po.IterationTermination,
		CurrentIteration:     po.CurrentIteration,
		TriggerTaskID:        po.TriggerTaskID,
		TriggerCondition:     po.TriggerCondition,
		Score:                po.Score,
		TotalScore:           po.TotalScore,
		TotalScoreEarned:     po.TotalScoreEarned,
		Status:               po.Status,
		TotalStatus:          po.TotalStatus,
		Repeatable:           po.Repeatable,
		UserExecutable:       po.UserExecutable,
	}
}

func rollupToMap(in *domain.Task) map[string]any {
	return map[string]any{
		"total_score":        in.TotalScore,
		"total_score_earned": in.TotalScoreEarned,
		"total_status":       in.TotalStatus,
	}
}

// executionStateToMap user_id为空时写入NULL
func executionStateToMap(in *domain.Task) map[string]any {
	return map[string]any{
		"status":            in.Status,
		"current_iteration": in.CurrentIteration,
		"user_id":           in.UserID,
	}
}

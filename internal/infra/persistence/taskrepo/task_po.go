package taskrepo

import (
	"github.com/google/uuid"
	domain "github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
)

type TaskPo struct {
	commonrepo.Mode
	Name        string `gorm:"column:name;size:255;not null"`
	Description string `gorm:"column:description;type:text"`

	ScenarioID         *uint64    `gorm:"column:scenario_id;index"`          // 所属场景
	ScenarioTemplateID *uint64    `gorm:"column:scenario_template_id;index"` // 所属模板
	UserID             *uuid.UUID `gorm:"column:user_id;type:char(36)"`      // 最近一次执行的用户

	Action         domain.Action `gorm:"column:action;size:50;not null"`
	APIURL         string        `gorm:"column:api_url;size:50;not null"` // 执行器选择
	InputString    string        `gorm:"column:input_string;type:text"`
	ExpectedOutput string        `gorm:"column:expected_output;type:text"`
	VMMask         string        `gorm:"column:vm_mask;size:1024"`

	DelaySeconds      int `gorm:"column:delay_seconds;default:0"`
	IntervalSeconds   int `gorm:"column:interval_seconds;default:0"`
	ExpirationSeconds int `gorm:"column:expiration_seconds;default:0"`

	Iterations           int                         `gorm:"column:iterations;default:1"`
	IterationTermination domain.IterationTermination `gorm:"column:iteration_termination;size:50;not null;default:'iteration_count'"`
	CurrentIteration     int                         `gorm:"column:current_iteration;default:0"`

	TriggerTaskID    *uint64                 `gorm:"column:trigger_task_id;index"` // 父任务
	TriggerCondition domain.TriggerCondition `gorm:"column:trigger_condition;size:50;not null;default:'manual'"`

	Score            int `gorm:"column:score;default:0"`
	TotalScore       int `gorm:"column:total_score;default:0"`
	TotalScoreEarned int `gorm:"column:total_score_earned;default:0"`

	Status      domain.Status `gorm:"column:status;size:50;not null;default:'none';index"`
	TotalStatus domain.Status `gorm:"column:total_status;size:50;not null;default:'none'"`

	Repeatable     bool `gorm:"column:repeatable;default:false"`
	UserExecutable bool `gorm:"column:user_executable;default:true"`

	// 删除父任务时级联删除子任务
	Children []TaskPo `gorm:"foreignKey:TriggerTaskID;constraint:OnDelete:CASCADE"`
}

func (t *TaskPo) TableName() string {
	return "engine_tasks"
}

package resultrepo

import (
	"time"

	"github.com/google/uuid"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"github.com/jobs/taskengine/internal/infra/persistence/taskrepo"
	"gorm.io/datatypes"
)

type ResultPo struct {
	commonrepo.Mode
	TaskID *uint64    `gorm:"column:task_id;index:idx_task_status"`
	UserID *uuid.UUID `gorm:"column:user_id;type:char(36)"`
	VMID   *uuid.UUID `gorm:"column:vm_id;type:char(36)"`
	VMName string     `gorm:"column:vm_name;size:255"`

	APIURL            string      `gorm:"column:api_url;size:50;not null"`
	Action            task.Action `gorm:"column:action;size:50;not null"`
	InputString       string      `gorm:"column:input_string;type:text"`
	ExpectedOutput    string      `gorm:"column:expected_output;type:text"`
	ExpirationSeconds int         `gorm:"column:expiration_seconds;default:0"`
	Iterations        int         `gorm:"column:iterations;default:1"`
	CurrentIteration  int         `gorm:"column:current_iteration;default:0"`
	IntervalSeconds   int         `gorm:"column:interval_seconds;default:0"`

	Substitutions datatypes.JSONMap `gorm:"column:substitutions;type:json"`

	ActualOutput string      `gorm:"column:actual_output;type:text"`
	Status       task.Status `gorm:"column:status;size:50;not null;index:idx_task_status;index"`
	SentDate     *time.Time  `gorm:"column:sent_date"`
	StatusDate   time.Time   `gorm:"column:status_date;not null"`

	// 结果随任务一起删除
	Task *taskrepo.TaskPo `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

func (ResultPo) TableName() string {
	return "engine_results"
}

package scenariorepo

import (
	"time"

	"github.com/google/uuid"
	domain "github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
)

type ScenarioPo struct {
	commonrepo.Mode
	Name         string        `gorm:"column:name;size:255;not null"`
	Description  string        `gorm:"column:description;type:text"`
	Status       domain.Status `gorm:"column:status;size:50;not null;default:'ready';index"`
	StartDate    *time.Time    `gorm:"column:start_date"`
	EndDate      *time.Time    `gorm:"column:end_date"`
	ViewID       *uuid.UUID    `gorm:"column:view_id;type:char(36)"` // 绑定的目标环境
	UpdateScores bool          `gorm:"column:update_scores;default:false;index"`
	Score        int           `gorm:"column:score;default:0"`
	ScoreEarned  int           `gorm:"column:score_earned;default:0"`
}

func (ScenarioPo) TableName() string {
	return "engine_scenarios"
}

type ScenarioTemplatePo struct {
	commonrepo.Mode
	Name         string `gorm:"column:name;size:255;not null"`
	Description  string `gorm:"column:description;type:text"`
	UpdateScores bool   `gorm:"column:update_scores;default:false;index"`
	Score        int    `gorm:"column:score;default:0"`
}

func (ScenarioTemplatePo) TableName() string {
	return "engine_scenario_templates"
}

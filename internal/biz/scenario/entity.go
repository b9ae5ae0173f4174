package scenario

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReady    Status = "ready"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusEnded    Status = "ended"
	StatusArchived Status = "archived"
)

// Scenario 一次演练实例，拥有一个任务森林
type Scenario struct {
	ID        uint64
	CreatedAt time.Time
	UpdatedAt time.Time

	Name        string
	Description string
	Status      Status
	StartDate   *time.Time
	EndDate     *time.Time

	// ViewID 绑定的目标环境，未绑定时任务无法解析VM目标
	ViewID *uuid.UUID

	// UpdateScores 分数需要重新汇总
	UpdateScores bool
	Score        int
	ScoreEarned  int
}

func (s *Scenario) IsActive() bool {
	return s.Status == StatusActive
}

// Overdue 进行中的场景超过结束时间后由维护任务结束
func (s *Scenario) Overdue(now time.Time) bool {
	return s.Status == StatusActive && s.EndDate != nil && now.After(*s.EndDate)
}

func (s *Scenario) End() {
	s.Status = StatusEnded
}

// Template 场景模板，其任务只用于复制，不可执行
type Template struct {
	ID        uint64
	CreatedAt time.Time
	UpdatedAt time.Time

	Name         string
	Description  string
	UpdateScores bool
	Score        int
}

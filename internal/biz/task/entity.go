package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrOwnerConflict = errors.New("task must belong to exactly one of scenario or scenario template")

// Task 任务树中的一个节点，属于场景或场景模板之一
type Task struct {
	ID          uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string
	Description string

	ScenarioID         *uint64
	ScenarioTemplateID *uint64
	UserID             *uuid.UUID

	Action         Action
	APIURL         string
	InputString    string
	ExpectedOutput string
	VMMask         string

	DelaySeconds      int
	IntervalSeconds   int
	ExpirationSeconds int

	Iterations           int
	IterationTermination IterationTermination
	CurrentIteration     int

	TriggerTaskID    *uint64
	TriggerCondition TriggerCondition

	Score            int
	TotalScore       int
	TotalScoreEarned int

	Status      Status
	TotalStatus Status

	Repeatable     bool
	UserExecutable bool

	// Substitutions 随队列中的任务句柄传递，不持久化
	Substitutions map[string]string
}

// Validate 检查任务归属
func (t *Task) Validate() error {
	if (t.ScenarioID == nil) == (t.ScenarioTemplateID == nil) {
		return ErrOwnerConflict
	}
	return nil
}

// IsTemplateTask 模板中的任务不可执行
func (t *Task) IsTemplateTask() bool {
	return t.ScenarioTemplateID != nil
}

func (t *Task) IsRoot() bool {
	return t.TriggerTaskID == nil
}

// ScoreEarned 本节点已获得的分数
func (t *Task) ScoreEarned() int {
	if t.Status == StatusSucceeded {
		return t.Score
	}
	return 0
}

// Executable 依赖TotalStatus，调用前必须完成子树汇总
func (t *Task) Executable() bool {
	return t.Repeatable || t.TotalStatus != StatusSucceeded
}

// Reset 重新启动子树前重置节点状态
func (t *Task) Reset(userID uuid.UUID) {
	t.Status = StatusNone
	t.CurrentIteration = 0
	t.UserID = &userID
}

// NextDelay 本轮执行前需要等待的时间。
// 首轮(或恢复首轮中断的结果)使用DelaySeconds，之后使用IntervalSeconds。
func (t *Task) NextDelay(resuming bool) time.Duration {
	if t.CurrentIteration == 0 || (resuming && t.CurrentIteration == 1) {
		return time.Duration(t.DelaySeconds) * time.Second
	}
	return time.Duration(t.IntervalSeconds) * time.Second
}

// ShouldIterate 判断是否需要再执行一轮
func (t *Task) ShouldIterate() bool {
	if t.CurrentIteration >= t.Iterations {
		return false
	}
	switch t.IterationTermination {
	case UntilSuccess:
		return t.Status != StatusSucceeded
	case UntilFailure:
		return t.Status != StatusFailed
	}
	return true
}

// TriggeredBy 子任务是否由父任务的结束状态触发
func (t *Task) TriggeredBy(parent Status) bool {
	for _, cond := range parent.TriggeredConditions() {
		if t.TriggerCondition == cond {
			return true
		}
	}
	return false
}

// OwnerID 返回所属场景或模板的ID
func (t *Task) OwnerID() uint64 {
	if t.ScenarioID != nil {
		return *t.ScenarioID
	}
	if t.ScenarioTemplateID != nil {
		return *t.ScenarioTemplateID
	}
	return 0
}

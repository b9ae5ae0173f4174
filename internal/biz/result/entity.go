package result

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jobs/taskengine/internal/biz/task"
)

// Result 任务针对一个目标的一次执行记录。
// 分发时复制任务的执行参数，之后修改任务不影响已经在途的结果。
type Result struct {
	ID        uint64
	CreatedAt time.Time
	UpdatedAt time.Time

	// TaskID 任务删除后置空，结果保留
	TaskID *uint64
	UserID *uuid.UUID

	VMID   *uuid.UUID
	VMName string

	APIURL            string
	Action            task.Action
	InputString       string
	ExpectedOutput    string
	ExpirationSeconds int
	Iterations        int
	CurrentIteration  int
	IntervalSeconds   int

	// Substitutions 分发时使用的占位符替换，崩溃恢复时重新挂回任务
	Substitutions map[string]string

	ActualOutput string
	Status       task.Status
	SentDate     *time.Time
	StatusDate   time.Time
}

// NewFromTask 按任务当前参数创建一条queued结果
func NewFromTask(t *task.Task, now time.Time) *Result {
	id := t.ID
	return &Result{
		TaskID:            &id,
		UserID:            t.UserID,
		APIURL:            t.APIURL,
		Action:            t.Action,
		InputString:       t.InputString,
		ExpectedOutput:    t.ExpectedOutput,
		ExpirationSeconds: t.ExpirationSeconds,
		Iterations:        t.Iterations,
		CurrentIteration:  t.CurrentIteration + 1,
		IntervalSeconds:   t.IntervalSeconds,
		Substitutions:     t.Substitutions,
		Status:            task.StatusQueued,
		StatusDate:        now,
	}
}

// NewError 目标解析失败时的诊断结果
func NewError(t *task.Task, diagnostic string, now time.Time) *Result {
	r := NewFromTask(t, now)
	r.Status = task.StatusError
	r.ActualOutput = diagnostic
	return r
}

func (r *Result) WithTarget(id uuid.UUID, name string) *Result {
	r.VMID = &id
	r.VMName = name
	return r
}

// Touch 恢复在途结果时刷新状态时间
func (r *Result) Touch(now time.Time) {
	r.StatusDate = now
}

// MarkSent 记录分发，结果进入pending等待执行器返回；未设置过期时间时使用默认值
func (r *Result) MarkSent(input string, defaultExpiration int, now time.Time) {
	if r.ExpirationSeconds <= 0 {
		r.ExpirationSeconds = defaultExpiration
	}
	r.InputString = input
	r.Status = task.StatusPending
	r.SentDate = &now
	r.StatusDate = now
}

func (r *Result) Expiration() time.Duration {
	return time.Duration(r.ExpirationSeconds) * time.Second
}

// Complete 根据执行输出确定终态
func (r *Result) Complete(output string, err error, now time.Time) {
	r.StatusDate = now
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		r.Status = task.StatusExpired
		r.ActualOutput = fmt.Sprintf("no response within %ds", r.ExpirationSeconds)
	case err != nil:
		r.Status = task.StatusError
		r.ActualOutput = err.Error()
	case strings.Contains(strings.ToLower(output), strings.ToLower(r.ExpectedOutput)):
		r.Status = task.StatusSucceeded
		r.ActualOutput = output
	default:
		r.Status = task.StatusFailed
		r.ActualOutput = output
	}
}

// Expire 维护任务将超时的pending结果置为expired
func (r *Result) Expire(now time.Time) {
	r.Status = task.StatusExpired
	r.StatusDate = now
}

// Overdue pending结果超过过期时间后由维护任务置为expired
func (r *Result) Overdue(now time.Time) bool {
	return r.Status == task.StatusPending && now.After(r.StatusDate.Add(r.Expiration()))
}

package task

// Status 任务和结果共用的执行状态
type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
	StatusSucceeded Status = "succeeded"
)

// rollupPrecedence 子树状态汇总时的优先级，全部不命中时为succeeded
var rollupPrecedence = []Status{
	StatusPending,
	StatusQueued,
	StatusSent,
	StatusCancelled,
	StatusError,
	StatusExpired,
	StatusFailed,
	StatusNone,
}

// IsTerminal 结果进入终态后不再变化
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusError, StatusExpired, StatusFailed, StatusSucceeded:
		return true
	}
	return false
}

// Merge 合并一次分发中各个结果的状态。
// 从succeeded开始，非succeeded的状态覆盖之前的值，failed一旦出现则保持。
func (s Status) Merge(next Status) Status {
	if next == StatusSucceeded || s == StatusFailed {
		return s
	}
	return next
}

// TriggeredConditions 父任务以该状态结束时可以触发的子任务条件
func (s Status) TriggeredConditions() []TriggerCondition {
	switch s {
	case StatusSucceeded:
		return []TriggerCondition{TriggerSuccess, TriggerCompletion}
	case StatusFailed:
		return []TriggerCondition{TriggerFailure, TriggerCompletion}
	case StatusExpired:
		return []TriggerCondition{TriggerExpiration}
	}
	return nil
}

type TriggerCondition string

const (
	TriggerManual     TriggerCondition = "manual"
	TriggerSuccess    TriggerCondition = "success"
	TriggerFailure    TriggerCondition = "failure"
	TriggerCompletion TriggerCondition = "completion"
	TriggerExpiration TriggerCondition = "expiration"
)

type IterationTermination string

const (
	IterationCount IterationTermination = "iteration_count"
	UntilSuccess   IterationTermination = "until_success"
	UntilFailure   IterationTermination = "until_failure"
)

// Action 任务要执行的操作类型
type Action string

const (
	ActionGuestProcessRun      Action = "guest_process_run"
	ActionGuestFileRead        Action = "guest_file_read"
	ActionGuestFileWrite       Action = "guest_file_write"
	ActionVMPowerOn            Action = "vm_power_on"
	ActionVMPowerOff           Action = "vm_power_off"
	ActionVMShutdown           Action = "vm_shutdown"
	ActionVMReboot             Action = "vm_reboot"
	ActionVMHardReset          Action = "vm_hard_reset"
	ActionCreateVMFromTemplate Action = "create_vm_from_template"
	ActionVMRemove             Action = "vm_remove"
	ActionSendEmail            Action = "send_email"
	ActionHTTPGet              Action = "http_get"
	ActionHTTPPost             Action = "http_post"
	ActionHTTPPut              Action = "http_put"
	ActionHTTPDelete           Action = "http_delete"
)

package engine

import "errors"

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrTemplateNotFound = errors.New("scenario template not found")
	ErrTemplateTask     = errors.New("task belongs to a scenario template")
	ErrScenarioInactive = errors.New("scenario is not active")
	ErrNotExecutable    = errors.New("task is not executable")
	ErrNilTask          = errors.New("nil task")
	ErrNotReady         = errors.New("engine is not ready")
)

// isPermanent 重试无法改变结果的错误
func isPermanent(err error) bool {
	for _, target := range []error{
		ErrTaskNotFound,
		ErrScenarioNotFound,
		ErrTemplateNotFound,
		ErrTemplateTask,
		ErrScenarioInactive,
		ErrNotExecutable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

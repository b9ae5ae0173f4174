package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jobs/taskengine/internal/biz/task"
	"go.uber.org/zap"
)

var ErrUnknownExecutor = errors.New("unknown executor")

// Executor 执行一个动作并返回原始输出
type Executor interface {
	Execute(ctx context.Context, action task.Action, input string) (string, error)
}

type ExecutorFunc func(ctx context.Context, action task.Action, input string) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, action task.Action, input string) (string, error) {
	return f(ctx, action, input)
}

// Registry 按选择器(ApiUrl)分派到具体执行器，每个执行器一个熔断器
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	executors map[string]Executor
	breakers  map[string]*CircuitBreaker

	threshold    int
	resetTimeout time.Duration
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:       logger,
		executors:    make(map[string]Executor),
		breakers:     make(map[string]*CircuitBreaker),
		threshold:    3,
		resetTimeout: 60 * time.Second,
	}
}

func (r *Registry) Register(selector string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[selector] = executor
	r.breakers[selector] = NewCircuitBreaker(r.threshold, r.resetTimeout)
	r.logger.Info("action executor registered", zap.String("selector", selector))
}

func (r *Registry) Selectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for s := range r.executors {
		out = append(out, s)
	}
	return out
}

// Execute 调用选择器对应的执行器(带熔断器保护)
func (r *Registry) Execute(ctx context.Context, selector string, action task.Action, input string) (string, error) {
	r.mu.RLock()
	executor, ok := r.executors[selector]
	breaker := r.breakers[selector]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExecutor, selector)
	}

	var output string
	err := breaker.Call(func() error {
		var callErr error
		output, callErr = executor.Execute(ctx, action, input)
		return callErr
	})
	if err != nil {
		r.logger.Error("action execution failed",
			zap.String("selector", selector),
			zap.String("action", string(action)),
			zap.String("breaker", breaker.State()),
			zap.Error(err))
	}
	return output, err
}

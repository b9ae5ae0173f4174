package engine

import (
	"context"
	"fmt"

	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"go.uber.org/zap"
)

// serializableRunner 在SERIALIZABLE事务中执行fn。
// 事务冲突不消耗重试次数并把计数清零，其他错误最多重试maxAttempts次，业务错误直接返回。
type serializableRunner struct {
	tx          commonrepo.Transaction
	maxAttempts int
	logger      *zap.Logger
}

func newSerializableRunner(tx commonrepo.Transaction, maxAttempts int, logger *zap.Logger) *serializableRunner {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &serializableRunner{tx: tx, maxAttempts: maxAttempts, logger: logger}
}

func (r *serializableRunner) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	for {
		err := r.tx.ExecuteSerializable(ctx, fn)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if commonrepo.IsTransient(err) {
			attempts = 0
			r.logger.Debug("transaction conflict, retrying", zap.String("op", op), zap.Error(err))
			continue
		}
		attempts++
		if attempts >= r.maxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
		}
		r.logger.Warn("transaction failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Error(err))
	}
}

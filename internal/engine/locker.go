package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"github.com/jobs/taskengine/pkg/config"
	"go.uber.org/zap"
)

// TickLocker 多实例部署时保证同一时刻只有一个实例执行维护
type TickLocker interface {
	// WithLock 拿到锁时执行fn并返回true，锁被其他实例持有时返回false
	WithLock(ctx context.Context, fn func(ctx context.Context) error) (bool, error)
}

// Locker MySQL命名锁(GET_LOCK)，锁与会话绑定，加锁和释放必须使用同一个连接
type Locker struct {
	db       *sql.DB
	lockName string
	logger   *zap.Logger
}

func NewLocker(db commonrepo.DB, cfg config.Config, logger *zap.Logger) (*Locker, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return &Locker{db: sqlDB, lockName: cfg.Maintenance.LockName, logger: logger}, nil
}

func (l *Locker) WithLock(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	// 返回值: 1-成功获取锁, 0-被其他会话持有, NULL-错误
	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", l.lockName).Scan(&acquired); err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired.Valid {
		return false, fmt.Errorf("lock query returned NULL")
	}
	if acquired.Int64 != 1 {
		return false, nil
	}

	defer func() {
		var released sql.NullInt64
		err := conn.QueryRowContext(context.WithoutCancel(ctx), "SELECT RELEASE_LOCK(?)", l.lockName).Scan(&released)
		if err != nil || released.Int64 != 1 {
			l.logger.Error("failed to release lock",
				zap.String("lock_name", l.lockName),
				zap.Error(err))
		}
	}()
	return true, fn(ctx)
}

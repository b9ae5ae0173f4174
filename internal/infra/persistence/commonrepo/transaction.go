package commonrepo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type Transaction interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
	// ExecuteSerializable 以SERIALIZABLE隔离级别执行，冲突时返回可由IsTransient识别的错误
	ExecuteSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

type dbContextKey struct{}

type DefaultRepo struct {
	db DB
}

func NewDefaultRepo(db DB) DefaultRepo {
	return DefaultRepo{db: db}
}

func (r *DefaultRepo) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.execute(ctx, fn, nil)
}

func (r *DefaultRepo) ExecuteSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.execute(ctx, fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (r *DefaultRepo) execute(ctx context.Context, fn func(ctx context.Context) error, opts *sql.TxOptions) error {
	// 已经在事务中时复用外层事务
	if _, ok := ctx.Value(dbContextKey{}).(DB); ok {
		return fn(ctx)
	}
	txOpts := []*sql.TxOptions{}
	if opts != nil {
		txOpts = append(txOpts, opts)
	}
	return r.Db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, dbContextKey{}, tx))
	}, txOpts...)
}

func (r *DefaultRepo) dbFromContext(ctx context.Context) DB {
	db, ok := ctx.Value(dbContextKey{}).(DB)
	if !ok {
		return r.db
	}
	return db
}

func (r *DefaultRepo) Db(ctx context.Context) DB {
	return r.dbFromContext(ctx).WithContext(ctx)
}

// MySQL 死锁与锁等待超时
const (
	errLockDeadlock    = 1213
	errLockWaitTimeout = 1205
)

// IsTransient 判断错误是否为可无限重试的事务冲突
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errLockDeadlock || myErr.Number == errLockWaitTimeout
	}
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn)
}

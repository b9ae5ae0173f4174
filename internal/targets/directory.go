package targets

import (
	"context"

	"github.com/google/uuid"
)

// Target 可寻址的VM目标
type Target struct {
	ID   uuid.UUID
	Name string
}

// Directory 返回某个环境(view)下当前存在的目标
type Directory interface {
	ListTargets(ctx context.Context, viewID uuid.UUID) ([]Target, error)
}

package targets

import (
	"context"

	"github.com/google/uuid"
	"github.com/google/wire"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/jobs/taskengine/pkg/config"
	"go.uber.org/zap"
)

var Provider = wire.NewSet(NewDirectory)

// NewDirectory 未配置Hetzner时所有环境都没有目标
func NewDirectory(cfg config.Config, hc *hcloud.Client, logger *zap.Logger) *CachedDirectory {
	var next Directory = emptyDirectory{}
	if hc != nil {
		next = NewHetznerDirectory(hc, cfg.Hetzner.ViewLabel, cfg.Hetzner.VMIDLabel, logger)
	}
	return NewCachedDirectory(next, cfg.Targets.CacheSize, cfg.Targets.CacheTTL)
}

type emptyDirectory struct{}

func (emptyDirectory) ListTargets(context.Context, uuid.UUID) ([]Target, error) {
	return nil, nil
}

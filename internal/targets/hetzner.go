package targets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"go.uber.org/zap"
)

type serverLister interface {
	AllWithOpts(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error)
}

// HetznerDirectory 以标签划分环境：view=<viewID>的服务器属于该环境，vm-id标签为目标ID
type HetznerDirectory struct {
	servers   serverLister
	viewLabel string
	vmIDLabel string
	logger    *zap.Logger
}

func NewHetznerDirectory(client *hcloud.Client, viewLabel, vmIDLabel string, logger *zap.Logger) *HetznerDirectory {
	return &HetznerDirectory{servers: &client.Server, viewLabel: viewLabel, vmIDLabel: vmIDLabel, logger: logger}
}

func (d *HetznerDirectory) ListTargets(ctx context.Context, viewID uuid.UUID) ([]Target, error) {
	servers, err := d.servers.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: d.viewLabel + "=" + viewID.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	out := make([]Target, 0, len(servers))
	for _, s := range servers {
		id, err := uuid.Parse(s.Labels[d.vmIDLabel])
		if err != nil {
			d.logger.Debug("skip server without vm id label",
				zap.Int64("server_id", s.ID),
				zap.String("name", s.Name))
			continue
		}
		out = append(out, Target{ID: id, Name: s.Name})
	}
	return out, nil
}

package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/jobs/taskengine/internal/biz/task"
)

var ErrVMNotFound = errors.New("vm not found")

// VMInput 电源和删除操作的参数
type VMInput struct {
	Moid string `json:"Moid"`
}

// CreateVMInput create_vm_from_template的参数，Image作为模板
type CreateVMInput struct {
	Name       string `json:"Name"`
	ServerType string `json:"ServerType"`
	Image      string `json:"Image"`
	Location   string `json:"Location"`
	ViewId     string `json:"ViewId"`
}

type serverAPI interface {
	AllWithOpts(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error)
	Poweron(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)
	Poweroff(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)
	Shutdown(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)
	Reboot(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)
	Reset(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)
	Create(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error)
	DeleteWithResult(ctx context.Context, server *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error)
}

type actionWaiter interface {
	WaitFor(ctx context.Context, actions ...*hcloud.Action) error
}

// TargetInvalidator 环境中的VM增删后使目标列表缓存失效
type TargetInvalidator interface {
	Invalidate(viewID uuid.UUID)
}

type HetznerOptions struct {
	ViewLabel  string
	VMIDLabel  string
	WaitAction bool
	Targets    TargetInvalidator
}

// HetznerExecutor 通过Hetzner Cloud API执行电源、创建和删除操作，VM以vm-id标签寻址
type HetznerExecutor struct {
	servers serverAPI
	actions actionWaiter
	opts    HetznerOptions
}

func NewHetznerExecutor(client *hcloud.Client, opts HetznerOptions) *HetznerExecutor {
	return newHetznerExecutor(&client.Server, &client.Action, opts)
}

func newHetznerExecutor(servers serverAPI, actions actionWaiter, opts HetznerOptions) *HetznerExecutor {
	return &HetznerExecutor{servers: servers, actions: actions, opts: opts}
}

func (e *HetznerExecutor) Execute(ctx context.Context, action task.Action, input string) (string, error) {
	if action == task.ActionCreateVMFromTemplate {
		var in CreateVMInput
		if err := json.Unmarshal([]byte(input), &in); err != nil {
			return "", fmt.Errorf("failed to parse create input: %w", err)
		}
		return e.create(ctx, in)
	}

	var in VMInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("failed to parse vm input: %w", err)
	}
	server, err := e.find(ctx, in.Moid)
	if err != nil {
		return "", err
	}

	var hcAction *hcloud.Action
	switch action {
	case task.ActionVMPowerOn:
		hcAction, _, err = e.servers.Poweron(ctx, server)
	case task.ActionVMPowerOff:
		hcAction, _, err = e.servers.Poweroff(ctx, server)
	case task.ActionVMShutdown:
		hcAction, _, err = e.servers.Shutdown(ctx, server)
	case task.ActionVMReboot:
		hcAction, _, err = e.servers.Reboot(ctx, server)
	case task.ActionVMHardReset:
		hcAction, _, err = e.servers.Reset(ctx, server)
	case task.ActionVMRemove:
		var res *hcloud.ServerDeleteResult
		res, _, err = e.servers.DeleteWithResult(ctx, server)
		if res != nil {
			hcAction = res.Action
		}
	default:
		return "", fmt.Errorf("hetzner executor does not support action %q", action)
	}
	if err != nil {
		return "", fmt.Errorf("failed to %s %s: %w", action, server.Name, err)
	}
	if err := e.wait(ctx, hcAction); err != nil {
		return "", err
	}
	if action == task.ActionVMRemove {
		e.invalidate(server.Labels[e.opts.ViewLabel])
	}
	return fmt.Sprintf("%s %s success", action, server.Name), nil
}

func (e *HetznerExecutor) find(ctx context.Context, moid string) (*hcloud.Server, error) {
	if _, err := uuid.Parse(moid); err != nil {
		return nil, fmt.Errorf("invalid Moid %q: %w", moid, err)
	}
	servers, err := e.servers.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: e.opts.VMIDLabel + "=" + moid},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVMNotFound, moid)
	}
	return servers[0], nil
}

func (e *HetznerExecutor) create(ctx context.Context, in CreateVMInput) (string, error) {
	if in.Name == "" || in.Image == "" || in.ServerType == "" {
		return "", fmt.Errorf("create input requires Name, Image and ServerType")
	}
	vmID := uuid.New()
	labels := map[string]string{e.opts.VMIDLabel: vmID.String()}
	if in.ViewId != "" {
		labels[e.opts.ViewLabel] = in.ViewId
	}
	opts := hcloud.ServerCreateOpts{
		Name:       in.Name,
		ServerType: &hcloud.ServerType{Name: in.ServerType},
		Image:      &hcloud.Image{Name: in.Image},
		Labels:     labels,
	}
	if in.Location != "" {
		opts.Location = &hcloud.Location{Name: in.Location}
	}

	res, _, err := e.servers.Create(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create server: %w", err)
	}
	if err := e.wait(ctx, append([]*hcloud.Action{res.Action}, res.NextActions...)...); err != nil {
		return "", err
	}
	e.invalidate(in.ViewId)
	return fmt.Sprintf("created %s %s", in.Name, vmID), nil
}

func (e *HetznerExecutor) invalidate(view string) {
	if e.opts.Targets == nil {
		return
	}
	if id, err := uuid.Parse(view); err == nil {
		e.opts.Targets.Invalidate(id)
	}
}

func (e *HetznerExecutor) wait(ctx context.Context, actions ...*hcloud.Action) error {
	if !e.opts.WaitAction {
		return nil
	}
	pending := make([]*hcloud.Action, 0, len(actions))
	for _, a := range actions {
		if a != nil {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if err := e.actions.WaitFor(ctx, pending...); err != nil {
		return fmt.Errorf("action did not complete: %w", err)
	}
	return nil
}

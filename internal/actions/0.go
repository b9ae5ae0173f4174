package actions

import (
	"net/http"

	"github.com/google/wire"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/jobs/taskengine/pkg/config"
	"go.uber.org/zap"
)

var Provider = wire.NewSet(NewDefaultRegistry)

const (
	SelectorGuest   = "guest"
	SelectorHetzner = "hetzner"
	SelectorMail    = "mail"
	SelectorHTTP    = "http"
)

// NewDefaultRegistry 按配置注册启用的执行器，http执行器总是可用
func NewDefaultRegistry(cfg config.Config, hc *hcloud.Client, targets TargetInvalidator, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	r.Register(SelectorHTTP, NewHTTPExecutor(&http.Client{}))

	if hc != nil {
		r.Register(SelectorHetzner, NewHetznerExecutor(hc, HetznerOptions{
			ViewLabel:  cfg.Hetzner.ViewLabel,
			VMIDLabel:  cfg.Hetzner.VMIDLabel,
			WaitAction: cfg.Hetzner.WaitAction,
			Targets:    targets,
		}))
	}
	if cfg.Guest.Enabled {
		guest, err := NewGuestExecutor(GuestOptions{
			SSHPath:  cfg.Guest.SSHPath,
			Port:     cfg.Guest.Port,
			Username: cfg.Guest.Username,
			Password: cfg.Guest.Password,
			Prompt:   cfg.Guest.Prompt,
			Timeout:  cfg.Guest.Timeout,
		})
		if err != nil {
			return nil, err
		}
		r.Register(SelectorGuest, guest)
	}
	if cfg.Mail.Enabled {
		r.Register(SelectorMail, NewMailExecutor(MailOptions{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}))
	}
	return r, nil
}

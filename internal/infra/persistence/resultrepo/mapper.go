package resultrepo

import (
	domain "github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"github.com/spf13/cast"
	"gorm.io/datatypes"
)

func (po *ResultPo) FromDomain(in *domain.Result) *ResultPo {
	var subs datatypes.JSONMap
	if len(in.Substitutions) > 0 {
		subs = make(datatypes.JSONMap, len(in.Substitutions))
		for k, v := range in.Substitutions {
			subs[k] = v
		}
	}
	return &ResultPo{
		Mode: commonrepo.Mode{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		TaskID:            in.TaskID,
		UserID:            in.UserID,
		VMID:              in.VMID,
		VMName:            in.VMName,
		APIURL:            in.APIURL,
		Action:            in.Action,
		InputString:       in.InputString,
		ExpectedOutput:    in.ExpectedOutput,
		ExpirationSeconds: in.ExpirationSeconds,
		Iterations:        in.Iterations,
		CurrentIteration:  in.CurrentIteration,
		IntervalSeconds:   in.IntervalSeconds,
		Substitutions:     subs,
		ActualOutput:      in.ActualOutput,
		Status:            in.Status,
		SentDate:          in.SentDate,
		StatusDate:        in.StatusDate,
	}
}

func (po *ResultPo) ToDomain() *domain.Result {
	var subs map[string]string
	if len(po.Substitutions) > 0 {
		subs = cast.ToStringMapString(map[string]any(po.Substitutions))
	}
	return &domain.Result{
		ID:                po.ID,
		CreatedAt:         po.CreatedAt,
		UpdatedAt:         po.UpdatedAt,
		TaskID:            po.TaskID,
		UserID:            po.UserID,
		VMID:              po.VMID,
		VMName:            po.VMName,
		APIURL:            po.APIURL,
		Action:            po.Action,
		InputString:       po.InputString,
		ExpectedOutput:    po.ExpectedOutput,
		ExpirationSeconds: po.ExpirationSeconds,
		Iterations:        po.Iterations,
		CurrentIteration:  po.CurrentIteration,
		IntervalSeconds:   po.IntervalSeconds,
		Substitutions:     subs,
		ActualOutput:      po.ActualOutput,
		Status:            po.Status,
		SentDate:          po.SentDate,
		StatusDate:        po.StatusDate,
	}
}

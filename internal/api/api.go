package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jobs/taskengine/internal/api/middleware"
	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// EngineService 执行引擎的内部服务
type EngineService interface {
	Ready() bool
	Enqueue(ctx context.Context, taskID uint64, userID uuid.UUID) (*task.Task, error)
	ExecuteWithSubstitutions(ctx context.Context, taskID uint64, userID uuid.UUID, values map[string]any) (*task.Task, error)
	RecomputeScenario(ctx context.Context, scenarioID uint64) (*scenario.Scenario, error)
	RecomputeTemplate(ctx context.Context, templateID uint64) (*scenario.Template, error)
	RecomputeDirty(ctx context.Context) error
}

// LivenessProbe 维护循环的存活信号
type LivenessProbe interface {
	Healthy() bool
}

type IEngineAPI interface {
	// Execute 执行任务
	// 重置任务子树并放入执行队列
	// @POST(api/v1/tasks/{id}/execute)
	Execute(ctx *gin.Context, id string) (TaskResp, error)

	// ExecuteWithSubstitutions 带替换值执行任务
	// 执行时用请求体中的值替换输入里的{{key}}占位符
	// @POST(api/v1/tasks/{id}/execute-with-substitutions)
	ExecuteWithSubstitutions(ctx *gin.Context, id string, req map[string]any) (TaskResp, error)

	// RecomputeScenario 重新汇总场景分数
	// @POST(api/v1/scenarios/{id}/scores)
	RecomputeScenario(ctx *gin.Context, id string) (ScoresResp, error)

	// RecomputeTemplate 重新汇总模板分数
	// @POST(api/v1/templates/{id}/scores)
	RecomputeTemplate(ctx *gin.Context, id string) (ScoresResp, error)

	// RecomputeAll 重新汇总所有需要更新的场景和模板
	// @POST(api/v1/scores)
	RecomputeAll(ctx *gin.Context) (gin.H, error)

	// Startup 启动探针
	// @GET(api/v1/health/startup)
	Startup(ctx *gin.Context) (gin.H, error)

	// Live 存活探针
	// @GET(api/v1/health/live)
	Live(ctx *gin.Context) (gin.H, error)
}

var _ IEngineAPI = (*EngineAPI)(nil)

type EngineAPI struct {
	service  EngineService
	liveness LivenessProbe
	logger   *zap.Logger
}

func NewEngineAPI(service EngineService, liveness LivenessProbe, logger *zap.Logger) *EngineAPI {
	return &EngineAPI{
		service:  service,
		liveness: liveness,
		logger:   logger,
	}
}

type TaskResp struct {
	ID               uint64            `json:"id"`
	Name             string            `json:"name"`
	ScenarioID       *uint64           `json:"scenarioId,omitempty"`
	Status           task.Status       `json:"status"`
	CurrentIteration int               `json:"currentIteration"`
	Iterations       int               `json:"iterations"`
	UserID           *uuid.UUID        `json:"userId,omitempty"`
	Substitutions    map[string]string `json:"substitutions,omitempty"`
}

func toTaskResp(t *task.Task) TaskResp {
	return TaskResp{
		ID:               t.ID,
		Name:             t.Name,
		ScenarioID:       t.ScenarioID,
		Status:           t.Status,
		CurrentIteration: t.CurrentIteration,
		Iterations:       t.Iterations,
		UserID:           t.UserID,
		Substitutions:    t.Substitutions,
	}
}

type ScoresResp struct {
	ID           uint64 `json:"id"`
	Score        int    `json:"score"`
	ScoreEarned  int    `json:"scoreEarned"`
	UpdateScores bool   `json:"updateScores"`
}

// badRequestError 路径参数不合法
type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string {
	return e.msg
}

func (e badRequestError) StatusCode() int {
	return http.StatusBadRequest
}

func parseID(id string) (uint64, error) {
	v, err := cast.ToUint64E(id)
	if err != nil || v == 0 {
		return 0, badRequestError{msg: fmt.Sprintf("invalid id %q", id)}
	}
	return v, nil
}

func (a *EngineAPI) Execute(ctx *gin.Context, id string) (TaskResp, error) {
	return a.execute(ctx, id, nil)
}

func (a *EngineAPI) ExecuteWithSubstitutions(ctx *gin.Context, id string, req map[string]any) (TaskResp, error) {
	return a.execute(ctx, id, req)
}

func (a *EngineAPI) execute(ctx *gin.Context, id string, values map[string]any) (TaskResp, error) {
	taskID, err := parseID(id)
	if err != nil {
		return TaskResp{}, err
	}
	userID, ok := middleware.UserID(ctx)
	if !ok {
		return TaskResp{}, middleware.ErrUnauthenticated
	}

	t, err := a.service.ExecuteWithSubstitutions(ctx.Request.Context(), taskID, userID, values)
	if err != nil {
		return TaskResp{}, err
	}
	return toTaskResp(t), nil
}

func (a *EngineAPI) RecomputeScenario(ctx *gin.Context, id string) (ScoresResp, error) {
	scenarioID, err := parseID(id)
	if err != nil {
		return ScoresResp{}, err
	}
	sc, err := a.service.RecomputeScenario(ctx.Request.Context(), scenarioID)
	if err != nil {
		return ScoresResp{}, err
	}
	return ScoresResp{ID: sc.ID, Score: sc.Score, ScoreEarned: sc.ScoreEarned, UpdateScores: sc.UpdateScores}, nil
}

func (a *EngineAPI) RecomputeTemplate(ctx *gin.Context, id string) (ScoresResp, error) {
	templateID, err := parseID(id)
	if err != nil {
		return ScoresResp{}, err
	}
	tpl, err := a.service.RecomputeTemplate(ctx.Request.Context(), templateID)
	if err != nil {
		return ScoresResp{}, err
	}
	return ScoresResp{ID: tpl.ID, Score: tpl.Score, UpdateScores: tpl.UpdateScores}, nil
}

func (a *EngineAPI) RecomputeAll(ctx *gin.Context) (gin.H, error) {
	if err := a.service.RecomputeDirty(ctx.Request.Context()); err != nil {
		return gin.H{}, err
	}
	return gin.H{"status": "ok", "time": time.Now()}, nil
}

func (a *EngineAPI) Startup(ctx *gin.Context) (gin.H, error) {
	return probe(a.service.Ready())
}

func (a *EngineAPI) Live(ctx *gin.Context) (gin.H, error) {
	return probe(a.liveness.Healthy())
}

func probe(ok bool) (gin.H, error) {
	if !ok {
		return gin.H{}, middleware.ErrProbeFailed
	}
	return gin.H{"status": "healthy", "time": time.Now()}, nil
}

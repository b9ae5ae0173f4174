package api

import (
	"github.com/gin-gonic/gin"
)

// EngineAPIWrap 把IEngineAPI绑定到gin路由
type EngineAPIWrap struct {
	inner IEngineAPI
}

func NewEngineAPIWrap(inner IEngineAPI) *EngineAPIWrap {
	return &EngineAPIWrap{inner: inner}
}

func (a *EngineAPIWrap) Execute(c *gin.Context) {
	result, err := a.inner.Execute(c, c.Param("id"))
	onGinResponse(c, result, err)
}

func (a *EngineAPIWrap) ExecuteWithSubstitutions(c *gin.Context) {
	var req map[string]any
	if !onGinBind(c, &req, "JSON") {
		return
	}
	result, err := a.inner.ExecuteWithSubstitutions(c, c.Param("id"), req)
	onGinResponse(c, result, err)
}

func (a *EngineAPIWrap) RecomputeScenario(c *gin.Context) {
	result, err := a.inner.RecomputeScenario(c, c.Param("id"))
	onGinResponse(c, result, err)
}

func (a *EngineAPIWrap) RecomputeTemplate(c *gin.Context) {
	result, err := a.inner.RecomputeTemplate(c, c.Param("id"))
	onGinResponse(c, result, err)
}

func (a *EngineAPIWrap) RecomputeAll(c *gin.Context) {
	result, err := a.inner.RecomputeAll(c)
	onGinResponse(c, result, err)
}

func (a *EngineAPIWrap) Startup(c *gin.Context) {
	result, err := a.inner.Startup(c)
	onGinResponse(c, result, err)
}

func (a *EngineAPIWrap) Live(c *gin.Context) {
	result, err := a.inner.Live(c)
	onGinResponse(c, result, err)
}

// BindAll 执行类接口需要用户身份
func (a *EngineAPIWrap) BindAll(router gin.IRouter, identity gin.HandlerFunc) {
	v1 := router.Group("/api/v1")
	v1.GET("/health/startup", a.Startup)
	v1.GET("/health/live", a.Live)

	tasks := v1.Group("/tasks", identity)
	tasks.POST("/:id/execute", a.Execute)
	tasks.POST("/:id/execute-with-substitutions", a.ExecuteWithSubstitutions)

	v1.POST("/scenarios/:id/scores", a.RecomputeScenario)
	v1.POST("/templates/:id/scores", a.RecomputeTemplate)
	v1.POST("/scores", a.RecomputeAll)
}

//go:build wireinject
// +build wireinject

package main

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

import (
	"github.com/google/wire"
	"github.com/jobs/taskengine/internal/actions"
	"github.com/jobs/taskengine/internal/api"
	"github.com/jobs/taskengine/internal/engine"
	"github.com/jobs/taskengine/internal/infra/persistence/commonrepo"
	"github.com/jobs/taskengine/internal/infra/persistence/resultrepo"
	"github.com/jobs/taskengine/internal/infra/persistence/scenariorepo"
	"github.com/jobs/taskengine/internal/infra/persistence/taskrepo"
	"github.com/jobs/taskengine/internal/notify"
	"github.com/jobs/taskengine/internal/targets"
	"github.com/jobs/taskengine/pkg/config"
	"go.uber.org/zap"
)

func InitializeApp(logger *zap.Logger, cfg config.Config, db commonrepo.DB) (*App, error) {
	wire.Build(
		NewApp,

		ProvideRedisClient,
		ProvideHetznerClient,

		wire.Bind(new(engine.ActionExecutor), new(*actions.Registry)),
		wire.Bind(new(targets.Directory), new(*targets.CachedDirectory)),
		wire.Bind(new(actions.TargetInvalidator), new(*targets.CachedDirectory)),
		wire.Bind(new(api.EngineService), new(*engine.Service)),
		wire.Bind(new(api.LivenessProbe), new(*engine.Sweeper)),

		// engine
		engine.Provider,
		actions.Provider,
		targets.Provider,
		notify.Provider,

		// http api providers
		api.Provider,

		// infra providers
		taskrepo.Provider,
		resultrepo.Provider,
		scenariorepo.Provider,
	)
	return nil, nil
}

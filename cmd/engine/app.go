package main

import (
	"context"
	"sync"
	"time"

	"github.com/jobs/taskengine/internal/api"
	"github.com/jobs/taskengine/internal/engine"
	"github.com/jobs/taskengine/internal/notify"
	"go.uber.org/zap"
)

// App 持有需要随进程启停的组件
type App struct {
	logger    *zap.Logger
	worker    *engine.Worker
	sweeper   *engine.Sweeper
	server    *api.Server
	hub       *notify.Hub
	redisSink *notify.RedisSink
}

func NewApp(
	logger *zap.Logger,
	worker *engine.Worker,
	sweeper *engine.Sweeper,
	server *api.Server,
	hub *notify.Hub,
	redisSink *notify.RedisSink,
) *App {
	return &App{
		logger:    logger,
		worker:    worker,
		sweeper:   sweeper,
		server:    server,
		hub:       hub,
		redisSink: redisSink,
	}
}

// Run 阻塞直到ctx结束或api服务监听失败
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.worker.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("execution worker exited", zap.Error(err))
		}
	}()

	if a.redisSink != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.redisSink.Relay(ctx, a.hub); err != nil {
				a.logger.Error("redis relay exited", zap.Error(err))
			}
		}()
	}

	a.sweeper.Start(ctx)
	serverErr := a.server.Start()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			runErr = err
		}
	}

	a.logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown api server", zap.Error(err))
	}

	cancel()
	a.sweeper.Stop()
	wg.Wait()
	a.hub.Close()
	return runErr
}

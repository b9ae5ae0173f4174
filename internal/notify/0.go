package notify

import (
	redis "github.com/go-redis/redis/v8"
	"github.com/google/wire"
	"github.com/jobs/taskengine/pkg/config"
	"go.uber.org/zap"
)

var Provider = wire.NewSet(NewHub, ProvideRedisSink, NewSink, NewNotifier)

// ProvideRedisSink 未启用redis时返回nil
func ProvideRedisSink(cfg config.Config, rdb *redis.Client, logger *zap.Logger) *RedisSink {
	if rdb == nil {
		return nil
	}
	return NewRedisSink(rdb, cfg.Redis.Channel, cfg.Engine.InstanceID, logger)
}

// NewSink 本地websocket订阅者总是接收事件，启用redis时同时发布到频道
func NewSink(hub *Hub, rs *RedisSink) Sink {
	if rs == nil {
		return hub
	}
	return Multi{hub, rs}
}

package notify

import (
	"context"
	"encoding/json"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisSink 把事件发布到redis频道，供其他实例的订阅者接收
type RedisSink struct {
	rdb      *redis.Client
	channel  string
	instance string
	logger   *zap.Logger
}

func NewRedisSink(rdb *redis.Client, channel, instance string, logger *zap.Logger) *RedisSink {
	return &RedisSink{rdb: rdb, channel: channel, instance: instance, logger: logger}
}

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	if ev.Source == "" {
		ev.Source = s.instance
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, payload).Err()
}

// Relay 把其他实例发布的事件转发给本地sink，直到ctx结束
func (s *RedisSink) Relay(ctx context.Context, local Sink) error {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, remote := s.decode(msg.Payload)
			if !remote {
				continue
			}
			if err := local.Publish(ctx, ev); err != nil {
				s.logger.Warn("failed to relay event", zap.Error(err))
			}
		}
	}
}

// decode 解析事件，本实例发出的事件返回false
func (s *RedisSink) decode(payload string) (Event, bool) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.logger.Warn("invalid event payload", zap.Error(err))
		return ev, false
	}
	return ev, ev.Source != s.instance
}

package notify

import (
	"context"
	"time"
)

// EventType 推送给订阅者的事件类型
type EventType string

const (
	EventResultUpdated   EventType = "result.updated"
	EventTaskUpdated     EventType = "task.updated"
	EventScenarioUpdated EventType = "scenario.updated"
)

type Event struct {
	Type       EventType `json:"type"`
	ScenarioID uint64    `json:"scenarioId,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	Source     string    `json:"source,omitempty"`
	Timestamp  int64     `json:"ts"`
}

func NewEvent(typ EventType, scenarioID uint64, payload any) Event {
	return Event{
		Type:       typ,
		ScenarioID: scenarioID,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Sink 尽力投递，不与持久化写入处于同一事务
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi 依次投递到所有sink，返回第一个错误
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

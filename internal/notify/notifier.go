package notify

import (
	"context"

	"github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"go.uber.org/zap"
)

// Notifier 引擎使用的推送入口，投递失败只记录日志
type Notifier struct {
	sink   Sink
	logger *zap.Logger
}

func NewNotifier(sink Sink, logger *zap.Logger) *Notifier {
	if sink == nil {
		sink = Nop{}
	}
	return &Notifier{sink: sink, logger: logger}
}

func (n *Notifier) ResultsUpdated(ctx context.Context, scenarioID uint64, results ...*result.Result) {
	for _, r := range results {
		n.publish(ctx, NewEvent(EventResultUpdated, scenarioID, r))
	}
}

func (n *Notifier) TaskUpdated(ctx context.Context, t *task.Task) {
	var scenarioID uint64
	if t.ScenarioID != nil {
		scenarioID = *t.ScenarioID
	}
	n.publish(ctx, NewEvent(EventTaskUpdated, scenarioID, t))
}

func (n *Notifier) ScenarioUpdated(ctx context.Context, s *scenario.Scenario) {
	n.publish(ctx, NewEvent(EventScenarioUpdated, s.ID, s))
}

func (n *Notifier) publish(ctx context.Context, ev Event) {
	if err := n.sink.Publish(ctx, ev); err != nil {
		n.logger.Warn("failed to publish event",
			zap.String("type", string(ev.Type)),
			zap.Uint64("scenario_id", ev.ScenarioID),
			zap.Error(err))
	}
}

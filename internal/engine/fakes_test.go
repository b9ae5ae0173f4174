package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/notify"
	"github.com/jobs/taskengine/internal/targets"
	"go.uber.org/zap"
)

// memStore 内存中的任务、结果和场景，返回副本
type memStore struct {
	mu        sync.Mutex
	nextID    uint64
	tasks     map[uint64]*task.Task
	results   map[uint64]*result.Result
	scenarios map[uint64]*scenario.Scenario
	templates map[uint64]*scenario.Template

	txErrs  []error
	txCalls int
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    1000,
		tasks:     make(map[uint64]*task.Task),
		results:   make(map[uint64]*result.Result),
		scenarios: make(map[uint64]*scenario.Scenario),
		templates: make(map[uint64]*scenario.Template),
	}
}

func (m *memStore) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memStore) ExecuteSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.txCalls++
	var err error
	if len(m.txErrs) > 0 {
		err, m.txErrs = m.txErrs[0], m.txErrs[1:]
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx)
}

func (m *memStore) putTask(t *task.Task) *task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	m.tasks[t.ID] = &c
	return t
}

func (m *memStore) putResult(r *result.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.results[r.ID] = &c
}

func (m *memStore) putScenario(s *scenario.Scenario) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.scenarios[s.ID] = &c
}

func (m *memStore) task(id uint64) *task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.tasks[id]
	return &c
}

func (m *memStore) scenario(id uint64) *scenario.Scenario {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.scenarios[id]
	return &c
}

func (m *memStore) resultsOf(taskID uint64) []*result.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*result.Result
	for _, r := range m.results {
		if r.TaskID != nil && *r.TaskID == taskID {
			c := *r
			out = append(out, &c)
		}
	}
	return out
}

type taskRepo struct{ *memStore }

func (r taskRepo) GetByID(ctx context.Context, id uint64) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (r taskRepo) Save(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.putTask(t)
	return nil
}

func (r taskRepo) SaveExecutionState(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[t.ID]
	if !ok {
		return nil
	}
	stored.Status = t.Status
	stored.CurrentIteration = t.CurrentIteration
	stored.UserID = t.UserID
	return nil
}

func (r taskRepo) list(match func(t *task.Task) bool) []*task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if match(t) {
			c := *t
			out = append(out, &c)
		}
	}
	return out
}

func (r taskRepo) ListByScenario(ctx context.Context, scenarioID uint64) ([]*task.Task, error) {
	return r.list(func(t *task.Task) bool { return t.ScenarioID != nil && *t.ScenarioID == scenarioID }), nil
}

func (r taskRepo) ListByTemplate(ctx context.Context, templateID uint64) ([]*task.Task, error) {
	return r.list(func(t *task.Task) bool {
		return t.ScenarioTemplateID != nil && *t.ScenarioTemplateID == templateID
	}), nil
}

func (r taskRepo) ListChildren(ctx context.Context, parentID uint64) ([]*task.Task, error) {
	return r.list(func(t *task.Task) bool { return t.TriggerTaskID != nil && *t.TriggerTaskID == parentID }), nil
}

func (r taskRepo) SaveRollup(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.tasks[t.ID]
	stored.TotalScore = t.TotalScore
	stored.TotalScoreEarned = t.TotalScoreEarned
	stored.TotalStatus = t.TotalStatus
	return nil
}

type resultRepo struct{ *memStore }

func (r resultRepo) CreateBatch(ctx context.Context, results []*result.Result) error {
	for _, res := range results {
		r.mu.Lock()
		r.nextID++
		res.ID = r.nextID
		r.mu.Unlock()
		r.putResult(res)
	}
	return nil
}

func (r resultRepo) Save(ctx context.Context, res *result.Result) error {
	r.putResult(res)
	return nil
}

func (r resultRepo) List(ctx context.Context, filter result.ListFilter) ([]*result.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*result.Result
	for _, res := range r.results {
		if id, ok := filter.TaskID.Get(); ok && (res.TaskID == nil || *res.TaskID != id) {
			continue
		}
		if st, ok := filter.Status.Get(); ok && res.Status != st {
			continue
		}
		c := *res
		out = append(out, &c)
	}
	return out, nil
}

type scenarioRepo struct{ *memStore }

func (r scenarioRepo) GetByID(ctx context.Context, id uint64) (*scenario.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scenarios[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r scenarioRepo) Save(ctx context.Context, s *scenario.Scenario) error {
	r.putScenario(s)
	return nil
}

func (r scenarioRepo) ListByStatus(ctx context.Context, status scenario.Status) ([]*scenario.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scenario.Scenario
	for _, s := range r.scenarios {
		if s.Status == status {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r scenarioRepo) ListDirty(ctx context.Context) ([]*scenario.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scenario.Scenario
	for _, s := range r.scenarios {
		if s.UpdateScores {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r scenarioRepo) MarkDirty(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.scenarios[id]; ok {
		s.UpdateScores = true
	}
	return nil
}

func (r scenarioRepo) GetTemplateByID(ctx context.Context, id uint64) (*scenario.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (r scenarioRepo) SaveTemplate(ctx context.Context, t *scenario.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.templates[t.ID] = &c
	return nil
}

func (r scenarioRepo) ListDirtyTemplates(ctx context.Context) ([]*scenario.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scenario.Template
	for _, t := range r.templates {
		if t.UpdateScores {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

// fakeExecutor 记录调用，输出由fn决定
type fakeExecutor struct {
	mu     sync.Mutex
	inputs []string
	fn     func(ctx context.Context, input string) (string, error)
}

func (e *fakeExecutor) Execute(ctx context.Context, selector string, action task.Action, input string) (string, error) {
	e.mu.Lock()
	e.inputs = append(e.inputs, input)
	e.mu.Unlock()
	if e.fn == nil {
		return "ok", nil
	}
	return e.fn(ctx, input)
}

func (e *fakeExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.inputs...)
}

type staticDirectory map[uuid.UUID][]targets.Target

func (d staticDirectory) ListTargets(ctx context.Context, viewID uuid.UUID) ([]targets.Target, error) {
	return d[viewID], nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Publish(ctx context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) count(typ notify.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// harness 组装一套使用内存仓库的引擎
type harness struct {
	store     *memStore
	exec      *fakeExecutor
	directory staticDirectory
	events    *eventRecorder
	queue     *Queue
	scorer    *Scorer
	worker    *Worker
	service   *Service
	sweeper   *Sweeper
}

func newHarness() *harness {
	store := newMemStore()
	h := &harness{
		store:     store,
		exec:      &fakeExecutor{},
		directory: staticDirectory{},
		events:    &eventRecorder{},
		queue:     NewQueue(),
	}
	logger := zap.NewNop()
	opts := Options{
		MaxConcurrentTasks:       4,
		DefaultExpirationSeconds: 5,
		BootstrapRetryInterval:   10 * time.Millisecond,
		MaintenanceInterval:      time.Minute,
		LivenessAllowance:        30 * time.Second,
	}.withDefaults()
	notifier := notify.NewNotifier(h.events, logger)
	tasks, results, scenarios := taskRepo{store}, resultRepo{store}, scenarioRepo{store}

	h.scorer = NewScorer(tasks, scenarios, notifier, logger, opts)
	h.worker = NewWorker(tasks, results, scenarios, h.directory, h.exec, h.scorer, h.queue, notifier, logger, opts)
	h.service = NewService(tasks, scenarios, h.queue, h.worker, h.scorer, notifier, logger, opts)
	h.sweeper = NewSweeper(tasks, results, scenarios, notifier, nil, logger, opts)
	return h
}

func (h *harness) activeScenario(id uint64, view *uuid.UUID) *scenario.Scenario {
	s := &scenario.Scenario{ID: id, Name: "exercise", Status: scenario.StatusActive, ViewID: view}
	h.store.putScenario(s)
	return s
}

// drain 同步处理队列中当前的全部任务
func (h *harness) drain(ctx context.Context) {
	for h.queue.Len() > 0 {
		t, err := h.queue.Take(ctx)
		if err != nil {
			return
		}
		h.worker.Process(ctx, t)
	}
}

func ptr[T any](v T) *T {
	return &v
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jobs/taskengine/internal/biz/result"
	"github.com/jobs/taskengine/internal/biz/scenario"
	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/jobs/taskengine/internal/notify"
	"github.com/jobs/taskengine/internal/targets"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(id, scenarioID uint64) *task.Task {
	return &task.Task{
		ID:                   id,
		Name:                 fmt.Sprintf("task-%d", id),
		ScenarioID:           ptr(scenarioID),
		APIURL:               "http",
		Action:               task.ActionHTTPGet,
		ExpectedOutput:       "ok",
		Iterations:           1,
		IterationTermination: task.IterationCount,
		TriggerCondition:     task.TriggerManual,
		Status:               task.StatusNone,
	}
}

func childOf(parent *task.Task, id uint64, cond task.TriggerCondition) *task.Task {
	c := newTask(id, *parent.ScenarioID)
	c.TriggerTaskID = ptr(parent.ID)
	c.TriggerCondition = cond
	return c
}

func takeAll(t *testing.T, q *Queue) []*task.Task {
	t.Helper()
	var out []*task.Task
	for q.Len() > 0 {
		tk, err := q.Take(context.Background())
		require.NoError(t, err)
		out = append(out, tk)
	}
	return out
}

func TestEndToEndScoring(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	a := newTask(1, 1)
	a.Score = 5
	b := childOf(a, 2, task.TriggerSuccess)
	b.Score = 10
	h.store.putTask(a)
	h.store.putTask(b)

	h.worker.ready.Store(true)
	user := uuid.New()
	_, err := h.service.Enqueue(ctx, a.ID, user)
	require.NoError(t, err)

	root, err := h.queue.Take(ctx)
	require.NoError(t, err)
	h.worker.Process(ctx, root)

	storedA := h.store.task(a.ID)
	assert.Equal(t, task.StatusSucceeded, storedA.Status)
	assert.Equal(t, 1, storedA.CurrentIteration)

	sc := h.store.scenario(1)
	assert.Equal(t, 15, sc.Score)
	assert.Equal(t, 5, sc.ScoreEarned)
	assert.False(t, sc.UpdateScores)
	assert.Equal(t, 15, h.store.task(a.ID).TotalScore)
	assert.Equal(t, task.StatusPending, h.store.task(a.ID).TotalStatus)

	queued := takeAll(t, h.queue)
	require.Len(t, queued, 1)
	assert.Equal(t, b.ID, queued[0].ID)
	assert.Equal(t, task.StatusPending, h.store.task(b.ID).Status)
	assert.Equal(t, &user, h.store.task(b.ID).UserID)

	h.worker.Process(ctx, queued[0])
	sc = h.store.scenario(1)
	assert.Equal(t, 15, sc.Score)
	assert.Equal(t, 15, sc.ScoreEarned)
	assert.Equal(t, task.StatusSucceeded, h.store.task(a.ID).TotalStatus)

	results := h.store.resultsOf(a.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusSucceeded, results[0].Status)
	assert.Equal(t, "ok", results[0].ActualOutput)
	assert.NotNil(t, results[0].SentDate)
	assert.Equal(t, &user, results[0].UserID)
	assert.Positive(t, h.events.count(notify.EventResultUpdated))
	assert.Positive(t, h.events.count(notify.EventScenarioUpdated))
}

func TestBootstrapResumesQueuedResults(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	tk := newTask(10, 1)
	tk.Status = task.StatusPending
	tk.CurrentIteration = 1
	tk.ExpectedOutput = "hello bob"
	h.store.putTask(tk)

	user := uuid.New()
	h.store.putResult(&result.Result{
		ID:             500,
		TaskID:         ptr(tk.ID),
		UserID:         &user,
		APIURL:         "http",
		Action:         task.ActionHTTPGet,
		InputString:    "hello {{name}}",
		ExpectedOutput: "hello bob",
		Substitutions:  map[string]string{"name": "bob"},
		Status:         task.StatusQueued,
		StatusDate:     time.Now().Add(-time.Minute),
	})
	h.exec.fn = func(ctx context.Context, input string) (string, error) { return input, nil }

	require.NoError(t, h.worker.Bootstrap(ctx))
	require.Equal(t, 1, h.queue.Len())
	h.drain(ctx)

	results := h.store.resultsOf(tk.ID)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(500), results[0].ID)
	assert.Equal(t, task.StatusSucceeded, results[0].Status)
	assert.Equal(t, []string{"hello bob"}, h.exec.calls())

	stored := h.store.task(tk.ID)
	assert.Equal(t, 1, stored.CurrentIteration)
	assert.Equal(t, task.StatusSucceeded, stored.Status)
	assert.Equal(t, &user, stored.UserID)
}

func TestBootstrapRecomputesDirtyScores(t *testing.T) {
	h := newHarness()
	s := h.activeScenario(1, nil)
	s.UpdateScores = true
	h.store.putScenario(s)
	tk := newTask(1, 1)
	tk.Score = 7
	h.store.putTask(tk)

	require.NoError(t, h.worker.Bootstrap(context.Background()))
	sc := h.store.scenario(1)
	assert.Equal(t, 7, sc.Score)
	assert.False(t, sc.UpdateScores)
}

func TestUntilSuccessStopsIterating(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	tk := newTask(1, 1)
	tk.Iterations = 5
	tk.IterationTermination = task.UntilSuccess
	tk.Status = task.StatusPending
	h.store.putTask(tk)

	attempts := 0
	h.exec.fn = func(context.Context, string) (string, error) {
		attempts++
		if attempts < 3 {
			return "not yet", nil
		}
		return "ok", nil
	}

	require.NoError(t, h.queue.Add(tk))
	h.drain(ctx)

	stored := h.store.task(tk.ID)
	assert.Equal(t, task.StatusSucceeded, stored.Status)
	assert.Equal(t, 3, stored.CurrentIteration)
	assert.Len(t, h.store.resultsOf(tk.ID), 3)
	assert.Zero(t, h.queue.Len())
}

func TestIterationCountRunsAllPasses(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	tk := newTask(1, 1)
	tk.Iterations = 3
	h.store.putTask(tk)

	require.NoError(t, h.queue.Add(tk))
	h.drain(ctx)

	stored := h.store.task(tk.ID)
	assert.Equal(t, 3, stored.CurrentIteration)
	results := h.store.resultsOf(tk.ID)
	assert.Len(t, results, 3)
	assert.ElementsMatch(t, []int{1, 2, 3}, lo.Map(results, func(r *result.Result, _ int) int { return r.CurrentIteration }))
}

func TestFailureTriggersOnlyFailureAndCompletionChildren(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	parent := newTask(1, 1)
	h.store.putTask(parent)
	conds := map[uint64]task.TriggerCondition{
		2: task.TriggerManual,
		3: task.TriggerSuccess,
		4: task.TriggerFailure,
		5: task.TriggerCompletion,
		6: task.TriggerExpiration,
	}
	for id, cond := range conds {
		h.store.putTask(childOf(parent, id, cond))
	}
	h.exec.fn = func(context.Context, string) (string, error) { return "nope", nil }

	h.worker.Process(ctx, parent)
	assert.Equal(t, task.StatusFailed, h.store.task(parent.ID).Status)

	ids := lo.Map(takeAll(t, h.queue), func(t *task.Task, _ int) uint64 { return t.ID })
	assert.ElementsMatch(t, []uint64{4, 5}, ids)
	for _, id := range []uint64{2, 3, 6} {
		assert.Equal(t, task.StatusNone, h.store.task(id).Status)
	}
}

func TestExecutorFaultTriggersNothing(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	parent := newTask(1, 1)
	h.store.putTask(parent)
	h.store.putTask(childOf(parent, 2, task.TriggerCompletion))
	h.exec.fn = func(context.Context, string) (string, error) { return "", errors.New("connection refused") }

	h.worker.Process(ctx, parent)

	assert.Equal(t, task.StatusError, h.store.task(parent.ID).Status)
	results := h.store.resultsOf(parent.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusError, results[0].Status)
	assert.Equal(t, "connection refused", results[0].ActualOutput)
	assert.Zero(t, h.queue.Len())
}

func TestExpiredResultTriggersExpirationChild(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	parent := newTask(1, 1)
	parent.ExpirationSeconds = 1
	h.store.putTask(parent)
	h.store.putTask(childOf(parent, 2, task.TriggerExpiration))
	h.store.putTask(childOf(parent, 3, task.TriggerCompletion))

	// 执行器不响应ctx时同样按过期处理
	release := make(chan struct{})
	defer close(release)
	h.exec.fn = func(context.Context, string) (string, error) {
		<-release
		return "ok", nil
	}

	h.worker.Process(ctx, parent)

	assert.Equal(t, task.StatusExpired, h.store.task(parent.ID).Status)
	results := h.store.resultsOf(parent.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusExpired, results[0].Status)

	ids := lo.Map(takeAll(t, h.queue), func(t *task.Task, _ int) uint64 { return t.ID })
	assert.Equal(t, []uint64{2}, ids)
}

func TestTargetResolutionErrorAbortsPass(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	tk := newTask(1, 1)
	tk.VMMask = "web"
	tk.Status = task.StatusPending
	h.store.putTask(tk)
	h.store.putTask(childOf(tk, 2, task.TriggerCompletion))

	h.worker.Process(ctx, tk)

	results := h.store.resultsOf(tk.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusError, results[0].Status)
	assert.Contains(t, results[0].ActualOutput, "no view bound")
	assert.Empty(t, h.exec.calls())

	stored := h.store.task(tk.ID)
	assert.Equal(t, task.StatusPending, stored.Status)
	assert.Equal(t, 1, stored.CurrentIteration)
	assert.Zero(t, h.queue.Len())
}

func TestNoVMsMatched(t *testing.T) {
	h := newHarness()
	view := uuid.New()
	h.directory[view] = []targets.Target{{ID: uuid.New(), Name: "db-01"}}
	h.activeScenario(1, &view)

	tk := newTask(1, 1)
	tk.VMMask = "web"
	h.store.putTask(tk)

	h.worker.Process(context.Background(), tk)

	results := h.store.resultsOf(tk.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusError, results[0].Status)
	assert.Contains(t, results[0].ActualOutput, "no VMs matched")
}

func TestResultPerMatchedTarget(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	view := uuid.New()
	web1 := targets.Target{ID: uuid.New(), Name: "WEB-01"}
	web2 := targets.Target{ID: uuid.New(), Name: "web-02"}
	h.directory[view] = []targets.Target{web1, {ID: uuid.New(), Name: "db-01"}, web2}
	h.activeScenario(1, &view)

	tk := newTask(1, 1)
	tk.VMMask = "Web"
	tk.APIURL = "hetzner"
	tk.Action = task.ActionVMReboot
	tk.InputString = `{"Moid":"{MOID}","Name":"{vmname}"}`
	tk.ExpectedOutput = "success"
	h.store.putTask(tk)
	h.exec.fn = func(ctx context.Context, input string) (string, error) {
		return "vm_reboot " + input + " success", nil
	}

	h.worker.Process(ctx, tk)

	results := h.store.resultsOf(tk.ID)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotNil(t, r.VMID)
		assert.Equal(t, task.StatusSucceeded, r.Status)
		assert.Contains(t, r.InputString, r.VMID.String())
		assert.Contains(t, r.InputString, r.VMName)
	}
	assert.ElementsMatch(t, []string{"WEB-01", "web-02"}, lo.Map(results, func(r *result.Result, _ int) string { return r.VMName }))
	assert.Len(t, h.exec.calls(), 2)
	assert.Equal(t, task.StatusSucceeded, h.store.task(tk.ID).Status)
}

func TestMixedOutcomesKeepFailedSticky(t *testing.T) {
	h := newHarness()
	view := uuid.New()
	h.directory[view] = []targets.Target{
		{ID: uuid.New(), Name: "lab-1"},
		{ID: uuid.New(), Name: "lab-2"},
		{ID: uuid.New(), Name: "lab-3"},
	}
	h.activeScenario(1, &view)

	tk := newTask(1, 1)
	tk.VMMask = "lab"
	tk.InputString = "{vmname}"
	h.store.putTask(tk)
	h.exec.fn = func(ctx context.Context, input string) (string, error) {
		switch input {
		case "lab-1":
			return "ok", nil
		case "lab-2":
			time.Sleep(10 * time.Millisecond)
			return "bad", nil
		}
		time.Sleep(20 * time.Millisecond)
		return "", errors.New("boom")
	}

	h.worker.Process(context.Background(), tk)
	assert.Equal(t, task.StatusFailed, h.store.task(tk.ID).Status)
}

func TestIneligibleTasksAreDropped(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.store.putScenario(&scenario.Scenario{ID: 1, Status: scenario.StatusPaused})
	h.activeScenario(2, nil)

	paused := newTask(1, 1)
	cancelled := newTask(2, 2)
	cancelled.Status = task.StatusCancelled
	template := newTask(3, 2)
	template.ScenarioID = nil
	template.ScenarioTemplateID = ptr(uint64(9))
	for _, tk := range []*task.Task{paused, cancelled, template} {
		h.store.putTask(tk)
		h.worker.Process(ctx, tk)
		assert.Empty(t, h.store.resultsOf(tk.ID), tk.Name)
	}
	assert.Empty(t, h.exec.calls())
}

func TestSubstitutionsSurviveIterations(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.activeScenario(1, nil)

	tk := newTask(1, 1)
	tk.Iterations = 2
	tk.InputString = "token={{token}}"
	h.store.putTask(tk)
	child := childOf(tk, 2, task.TriggerCompletion)
	child.InputString = "token={{token}}"
	h.store.putTask(child)

	handle := h.store.task(tk.ID)
	handle.Substitutions = map[string]string{"token": "abc"}
	require.NoError(t, h.queue.Add(handle))
	h.drain(ctx)

	assert.Equal(t, []string{"token=abc", "token=abc", "token={{token}}"}, h.exec.calls())
}

func TestRunBootstrapsThenConsumes(t *testing.T) {
	h := newHarness()
	h.activeScenario(1, nil)
	tk := newTask(1, 1)
	h.store.putTask(tk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()

	require.Eventually(t, h.worker.Ready, time.Second, 5*time.Millisecond)
	require.NoError(t, h.queue.Add(tk))
	require.Eventually(t, func() bool {
		return h.store.task(tk.ID).Status == task.StatusSucceeded
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestShutdownDuringDelayKeepsResultsQueued(t *testing.T) {
	h := newHarness()
	h.activeScenario(1, nil)
	tk := newTask(1, 1)
	tk.DelaySeconds = 60
	h.store.putTask(tk)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	h.worker.Process(ctx, tk)

	results := h.store.resultsOf(tk.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusQueued, results[0].Status)
	assert.Empty(t, h.exec.calls())
}

func TestSweeperExpiresResultWhileExecutorHangs(t *testing.T) {
	h := newHarness()
	h.activeScenario(1, nil)
	tk := newTask(1, 1)
	h.store.putTask(tk)

	started := make(chan struct{})
	release := make(chan struct{})
	h.exec.fn = func(ctx context.Context, _ string) (string, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "ok", nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.worker.Process(context.Background(), tk)
	}()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("executor was not called")
	}

	results := h.store.resultsOf(tk.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusPending, results[0].Status)
	assert.NotNil(t, results[0].SentDate)

	h.sweeper.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.NoError(t, h.sweeper.Tick(context.Background()))
	results = h.store.resultsOf(tk.ID)
	require.Len(t, results, 1)
	assert.Equal(t, task.StatusExpired, results[0].Status)

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pass did not finish")
	}
}

func TestDelayedTasksDoNotHoldDispatchSlots(t *testing.T) {
	h := newHarness()
	h.activeScenario(1, nil)
	var delayed []*task.Task
	for id := uint64(1); id <= 4; id++ {
		tk := newTask(id, 1)
		tk.DelaySeconds = 30
		h.store.putTask(tk)
		delayed = append(delayed, tk)
	}
	immediate := newTask(5, 1)
	immediate.InputString = "now"
	h.store.putTask(immediate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()
	require.Eventually(t, h.worker.Ready, time.Second, 5*time.Millisecond)

	for _, tk := range delayed {
		require.NoError(t, h.queue.Add(tk))
	}
	require.Eventually(t, func() bool {
		for _, tk := range delayed {
			if len(h.store.resultsOf(tk.ID)) == 0 {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.queue.Add(immediate))
	require.Eventually(t, func() bool {
		return h.store.task(immediate.ID).Status == task.StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"now"}, h.exec.calls())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	for _, tk := range delayed {
		results := h.store.resultsOf(tk.ID)
		require.Len(t, results, 1)
		assert.Equal(t, task.StatusQueued, results[0].Status)
	}
}

func TestPassKeepsConcurrentTaskEdits(t *testing.T) {
	h := newHarness()
	tk := newTask(1, 1)
	tk.ScenarioID = nil
	tk.Description = "original"
	h.store.putTask(tk)

	h.exec.fn = func(context.Context, string) (string, error) {
		h.store.mu.Lock()
		stored := h.store.tasks[tk.ID]
		stored.TotalScore = 99
		stored.Description = "edited"
		h.store.mu.Unlock()
		return "ok", nil
	}

	h.worker.Process(context.Background(), tk)

	stored := h.store.task(tk.ID)
	assert.Equal(t, task.StatusSucceeded, stored.Status)
	assert.Equal(t, 1, stored.CurrentIteration)
	assert.Equal(t, 99, stored.TotalScore)
	assert.Equal(t, "edited", stored.Description)
}

func TestIteratingPassRecomputesScores(t *testing.T) {
	h := newHarness()
	h.activeScenario(1, nil)
	tk := newTask(1, 1)
	tk.Score = 5
	tk.Iterations = 3
	h.store.putTask(tk)

	h.worker.Process(context.Background(), tk)

	require.Equal(t, 1, h.queue.Len())
	sc := h.store.scenario(1)
	assert.Equal(t, 5, sc.Score)
	assert.Equal(t, 5, sc.ScoreEarned)
	assert.False(t, sc.UpdateScores)
	assert.Equal(t, task.StatusSucceeded, h.store.task(tk.ID).TotalStatus)
}

package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/nexos/internal/agent"
	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/evaluator"
	"github.com/aatumaykin/nexos/internal/llm"
	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/aatumaykin/nexos/internal/memory"
	"github.com/aatumaykin/nexos/internal/retry"
	"github.com/aatumaykin/nexos/internal/task"
	"github.com/aatumaykin/nexos/internal/translator"
	"github.com/aatumaykin/nexos/internal/workers"
)

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

type fakeEvaluator struct {
	mu    sync.Mutex
	calls int
	fn    func(sessionID, taskText string) (*evaluator.Evaluation, error)
}

func (f *fakeEvaluator) Evaluate(sessionID, taskText string) (*evaluator.Evaluation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(sessionID, taskText)
}

func (f *fakeEvaluator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func localEvaluator() *fakeEvaluator {
	return &fakeEvaluator{fn: func(_, _ string) (*evaluator.Evaluation, error) {
		return &evaluator.Evaluation{Route: evaluator.Route{Kind: evaluator.RouteLocal}}, nil
	}}
}

func remoteEvaluator(model string) *fakeEvaluator {
	return &fakeEvaluator{fn: func(_, _ string) (*evaluator.Evaluation, error) {
		return &evaluator.Evaluation{Route: evaluator.Route{Kind: evaluator.RouteRemote, ModelHint: model}}, nil
	}}
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	fn    func(taskID, command string) (*translator.Script, error)
}

func (f *fakeTranslator) Translate(taskID, command string) (*translator.Script, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(taskID, command)
	}
	return &translator.Script{ID: "script-1", TaskID: taskID, Intent: translator.IntentGeneric, Content: "#!/bin/sh\necho ok\n"}, nil
}

type fakePool struct {
	mu    sync.Mutex
	calls int
	cpu   float64
	mem   float64
	fn    func(ctx context.Context, specialization, script string) (*workers.Result, error)
}

func (f *fakePool) Execute(ctx context.Context, specialization, script string) (*workers.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, specialization, script)
	}
	return &workers.Result{WorkerID: "w1", Output: "ok", ExitCode: 0}, nil
}

func (f *fakePool) AggregateUsage() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cpu, f.mem
}

func (f *fakePool) Snapshot() []workers.WorkerInfo { return nil }

func (f *fakePool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureProvider struct {
	mu       sync.Mutex
	lastReq  llm.ChatRequest
	response string
	err      error
}

func (p *captureProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.lastReq = req
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{Content: p.response, Model: req.Model, FinishReason: llm.FinishReasonStop}, nil
}

func (p *captureProvider) Embed(ctx context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	return &llm.EmbedResponse{}, nil
}

func (p *captureProvider) SupportsToolCalling() bool { return false }

func (p *captureProvider) GetDefaultModel() string { return "capture-model" }

func (p *captureProvider) last() llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

type testDeps struct {
	eval     *fakeEvaluator
	trans    *fakeTranslator
	pool     *fakePool
	provider llm.Provider
	cfg      config.CoordinatorConfig
}

func newTestCoordinator(t *testing.T, d testDeps) *Coordinator {
	t.Helper()

	log := testLog(t)
	if d.eval == nil {
		d.eval = localEvaluator()
	}
	if d.trans == nil {
		d.trans = &fakeTranslator{}
	}
	if d.pool == nil {
		d.pool = &fakePool{}
	}
	if d.provider == nil {
		d.provider = llm.NewEchoProvider()
	}
	if d.cfg.SubmitTimeoutSeconds == 0 {
		d.cfg.SubmitTimeoutSeconds = 10
	}
	if d.cfg.MinSuccessRate == 0 {
		d.cfg.MinSuccessRate = 0.5
	}
	if d.cfg.ThrottleCPUPercent == 0 {
		d.cfg.ThrottleCPUPercent = 80
	}
	if d.cfg.ThrottleMemoryPercent == 0 {
		d.cfg.ThrottleMemoryPercent = 80
	}
	if d.cfg.ThrottlePriorityFloor == 0 {
		d.cfg.ThrottlePriorityFloor = 7
	}
	if d.cfg.ThrottleClearanceFloor == 0 {
		d.cfg.ThrottleClearanceFloor = 8
	}

	c, err := New(d.cfg, Deps{
		Queue:      task.NewQueue(),
		Evaluator:  d.eval,
		Translator: d.trans,
		Pool:       d.pool,
		Provider:   d.provider,
		History:    memory.NewBestEffort(memory.NewInMemoryStore(nil, 20), log),
		Registry:   agent.NewRegistry(log),
		Logger:     log,
	})
	require.NoError(t, err)
	return c
}

func startTestCoordinator(t *testing.T, d testDeps) *Coordinator {
	t.Helper()
	c := newTestCoordinator(t, d)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c
}

func TestSubmitLocalRoute(t *testing.T) {
	eval := localEvaluator()
	trans := &fakeTranslator{}
	pool := &fakePool{}
	c := startTestCoordinator(t, testDeps{eval: eval, trans: trans, pool: pool})

	res, err := c.Submit(context.Background(), "show the readme file", 5, "s1")
	require.NoError(t, err)

	assert.Equal(t, task.StateCompleted, res.State)
	assert.Equal(t, RouteLocal, res.Route)
	assert.Equal(t, "ok", res.Output)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, pool.callCount())
}

func TestSubmitRemoteRoute(t *testing.T) {
	provider := &captureProvider{response: "forty two"}
	pool := &fakePool{}
	c := startTestCoordinator(t, testDeps{
		eval:     remoteEvaluator("glm-4.7"),
		pool:     pool,
		provider: provider,
	})

	res, err := c.Submit(context.Background(), "analyze the quarterly trends in depth", 5, "s1")
	require.NoError(t, err)

	assert.Equal(t, task.StateCompleted, res.State)
	assert.Equal(t, RouteRemote, res.Route)
	assert.Equal(t, "forty two", res.Output)
	assert.Zero(t, pool.callCount(), "remote tasks never touch the worker pool")

	req := provider.last()
	assert.Equal(t, "glm-4.7", req.Model, "model hint from evaluation must reach the provider")
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "analyze the quarterly trends in depth", req.Messages[len(req.Messages)-1].Content)
}

func TestRemoteRouteIncludesSessionHistory(t *testing.T) {
	provider := &captureProvider{response: "answer"}
	c := startTestCoordinator(t, testDeps{eval: remoteEvaluator("m"), provider: provider})

	_, err := c.Submit(context.Background(), "summarize the sales report", 5, "s1")
	require.NoError(t, err)

	res, err := c.Submit(context.Background(), "summarize the sales report again", 5, "s1")
	require.NoError(t, err)
	require.Equal(t, task.StateCompleted, res.State)

	// system + prior user/assistant exchange + current user message.
	req := provider.last()
	require.Len(t, req.Messages, 4)
	assert.Equal(t, llm.RoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "answer", req.Messages[2].Content)
}

func TestSubmitSecurityRejection(t *testing.T) {
	eval := &fakeEvaluator{fn: func(_, _ string) (*evaluator.Evaluation, error) {
		return nil, &evaluator.SecurityError{Reason: "security analysis failed", Categories: []string{"system_file"}}
	}}
	trans := &fakeTranslator{}
	pool := &fakePool{}
	c := startTestCoordinator(t, testDeps{eval: eval, trans: trans, pool: pool})

	res, err := c.Submit(context.Background(), "delete /etc/passwd", 5, "s1")
	require.NoError(t, err)

	assert.Equal(t, task.StateRejected, res.State)
	assert.Equal(t, 1, res.Attempts, "security rejections are never retried")
	require.Error(t, res.Err)
	assert.False(t, retry.IsRetryable(res.Err))
	assert.Equal(t, 1, eval.callCount())
	assert.Zero(t, trans.calls)
	assert.Zero(t, pool.callCount())
}

func TestRetryableFailureRequeuesAndSucceeds(t *testing.T) {
	eval := localEvaluator()
	pool := &fakePool{}
	pool.fn = func(_ context.Context, _, _ string) (*workers.Result, error) {
		if pool.callCount() == 1 {
			return nil, workers.ErrCapacityReached
		}
		return &workers.Result{WorkerID: "w1", Output: "done", ExitCode: 0}, nil
	}
	c := startTestCoordinator(t, testDeps{eval: eval, pool: pool})

	res, err := c.Submit(context.Background(), "list the directory", 5, "s1")
	require.NoError(t, err)

	assert.Equal(t, task.StateCompleted, res.State)
	assert.Equal(t, "done", res.Output)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, eval.callCount(), "every attempt is re-evaluated")
}

func TestRetryBudgetExhaustion(t *testing.T) {
	pool := &fakePool{fn: func(_ context.Context, _, _ string) (*workers.Result, error) {
		return nil, &workers.ExecutionError{WorkerID: "w1", ExitCode: 1, Stderr: "boom"}
	}}
	c := startTestCoordinator(t, testDeps{pool: pool, cfg: config.CoordinatorConfig{MaxRetries: 3}})

	res, err := c.Submit(context.Background(), "read the log file", 5, "s1")
	require.NoError(t, err)

	assert.Equal(t, task.StateFailed, res.State)
	assert.Equal(t, 3, res.Attempts)
	require.Error(t, res.Err)
	assert.Equal(t, 3, pool.callCount())
}

func TestTranslationFailureIsRetried(t *testing.T) {
	trans := &fakeTranslator{}
	trans.fn = func(taskID, _ string) (*translator.Script, error) {
		if trans.calls == 1 {
			return nil, &translator.TranslationError{Stage: "parameters", Reason: "no path found"}
		}
		return &translator.Script{ID: "s", TaskID: taskID, Intent: translator.IntentFile, Content: "cat x"}, nil
	}
	c := startTestCoordinator(t, testDeps{trans: trans})

	res, err := c.Submit(context.Background(), "read the file", 5, "s1")
	require.NoError(t, err)
	assert.Equal(t, task.StateCompleted, res.State)
	assert.Equal(t, 2, res.Attempts)
}

func TestEnqueueValidation(t *testing.T) {
	c := newTestCoordinator(t, testDeps{})

	_, err := c.Enqueue("list files", 5, "s1")
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	_, err = c.Enqueue("   ", 5, "s1")
	require.Error(t, err)
	var subErr *SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "empty_command", subErr.Code)
}

func TestEnqueueDefaultAndClampedPriority(t *testing.T) {
	c := newTestCoordinator(t, testDeps{cfg: config.CoordinatorConfig{DefaultPriority: 5, SubmitTimeoutSeconds: 10}})
	c.running.Store(true)

	tk, err := c.Enqueue("list files", 0, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, tk.Priority)

	tk, err = c.Enqueue("list files", 99, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10, tk.Priority)
}

func TestEnqueueQueueFull(t *testing.T) {
	c := newTestCoordinator(t, testDeps{cfg: config.CoordinatorConfig{QueueCapacity: 2, SubmitTimeoutSeconds: 10}})
	c.running.Store(true) // loops off: tasks stay queued

	_, err := c.Enqueue("task one", 5, "s1")
	require.NoError(t, err)
	_, err = c.Enqueue("task two", 5, "s1")
	require.NoError(t, err)

	_, err = c.Enqueue("task three", 5, "s1")
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestThrottleDropsLowPriorityAndIdlesAgents(t *testing.T) {
	c := newTestCoordinator(t, testDeps{})
	c.running.Store(true)

	low, err := c.Enqueue("low priority work", 3, "s1")
	require.NoError(t, err)
	high, err := c.Enqueue("high priority work", 9, "s1")
	require.NoError(t, err)

	c.throttle(92, 40)

	assert.True(t, c.throttled.Load())
	assert.Equal(t, 1, c.queue.Len())
	assert.Equal(t, high.ID, c.queue.Peek().ID)

	res, err := c.tracker.Wait(context.Background(), low.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, task.StateFailed, res.State)
	var subErr *SubmitError
	require.ErrorAs(t, res.Err, &subErr)
	assert.Equal(t, "throttled", subErr.Code)

	// Agents below the clearance floor idle; the rest keep working.
	assert.Equal(t, agent.StatusIdle, c.agentTranslator.Status())
	assert.Equal(t, agent.StatusActive, c.agentEvaluator.Status())
	assert.Equal(t, agent.StatusActive, c.agentCoordinator.Status())

	c.liftThrottle()
	assert.Equal(t, agent.StatusActive, c.agentTranslator.Status())
}

func TestHealthCheckRecoversStaleAgent(t *testing.T) {
	c := newTestCoordinator(t, testDeps{})

	// No heartbeat newer than the stale window: the agent is flagged and
	// recovered through re-registration.
	c.checkAgents(0)

	assert.Equal(t, agent.StatusActive, c.agentCoordinator.Status())
	assert.WithinDuration(t, time.Now(), c.agentCoordinator.LastHealthCheck(), time.Second)
}

func TestHealthCheckRecoversLowSuccessAgent(t *testing.T) {
	c := newTestCoordinator(t, testDeps{})

	for i := 0; i < 4; i++ {
		c.agentTranslator.RecordTask(agent.TaskRecord{TaskID: "t", Local: true, Success: false})
	}
	require.Less(t, c.agentTranslator.Snapshot().SuccessRate, 0.5)

	c.checkAgents(time.Hour)

	assert.Equal(t, agent.StatusActive, c.agentTranslator.Status(), "re-registration restores active status")
}

func TestStartupRetriesBootstrap(t *testing.T) {
	attempts := 0
	c := newTestCoordinator(t, testDeps{cfg: config.CoordinatorConfig{StartupAttempts: 3, SubmitTimeoutSeconds: 10}})
	c.bootstrap = func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("docker daemon not ready")
		}
		return nil
	}

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	assert.Equal(t, 3, attempts)
}

func TestStartupFailureIsFatal(t *testing.T) {
	c := newTestCoordinator(t, testDeps{cfg: config.CoordinatorConfig{StartupAttempts: 2, SubmitTimeoutSeconds: 10}})
	c.bootstrap = func(ctx context.Context) error {
		return errors.New("image pull failed")
	}

	err := c.Start(context.Background())
	require.Error(t, err)

	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, 2, initErr.Attempts)
	assert.False(t, retry.IsRetryable(err))
	assert.False(t, c.running.Load())
}

func TestShutdownFailsQueuedTasks(t *testing.T) {
	c := newTestCoordinator(t, testDeps{})
	c.running.Store(true)

	tk, err := c.Enqueue("pending work", 5, "s1")
	require.NoError(t, err)

	c.Shutdown(context.Background())

	res, err := c.tracker.Wait(context.Background(), tk.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, task.StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrNotRunning)

	_, err = c.Enqueue("after shutdown", 5, "s1")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStatusSnapshot(t *testing.T) {
	pool := &fakePool{cpu: 33, mem: 21}
	c := startTestCoordinator(t, testDeps{pool: pool})

	st := c.Status()
	assert.True(t, st.Running)
	assert.False(t, st.Throttled)
	assert.Zero(t, st.QueueDepth)
	assert.Len(t, st.Agents, 3)
	assert.Equal(t, 33.0, st.PoolCPU)
	assert.Equal(t, 21.0, st.PoolMemory)
}

func TestPriorityOrderAcrossSubmissions(t *testing.T) {
	var order []string
	var mu sync.Mutex
	gate := make(chan struct{})

	pool := &fakePool{}
	pool.fn = func(_ context.Context, _, script string) (*workers.Result, error) {
		<-gate
		mu.Lock()
		order = append(order, script)
		mu.Unlock()
		return &workers.Result{Output: "ok"}, nil
	}
	trans := &fakeTranslator{fn: func(taskID, command string) (*translator.Script, error) {
		return &translator.Script{ID: taskID, TaskID: taskID, Intent: translator.IntentGeneric, Content: command}, nil
	}}
	c := startTestCoordinator(t, testDeps{pool: pool, trans: trans})

	// First task occupies the drain loop; the rest queue up and must come
	// out highest priority first.
	results := make(chan *Result, 3)
	go func() {
		res, _ := c.Submit(context.Background(), "blocker", 5, "s")
		results <- res
	}()
	time.Sleep(50 * time.Millisecond)

	for _, spec := range []struct {
		cmd string
		pri int
	}{{"low", 2}, {"high", 9}, {"mid", 5}} {
		spec := spec
		go func() {
			res, _ := c.Submit(context.Background(), spec.cmd, spec.pri, "s")
			results <- res
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)

	for i := 0; i < 4; i++ {
		select {
		case res := <-results:
			require.NotNil(t, res)
			require.Equal(t, task.StateCompleted, res.State)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	assert.Equal(t, []string{"blocker", "high", "mid", "low"}, order)
}

package agent

import (
	"testing"
	"time"

	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "debug", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	return log
}

func newTestAgent(id string) *Agent {
	return New(id, TypeEvaluator, 8, []string{"security"}, ResourceAllocation{
		CPUQuota:      50,
		MemoryQuotaMB: 128,
		PriorityLevel: 5,
	})
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(testLogger(t))

	a := newTestAgent("evaluator-1")
	require.NoError(t, r.Register(a))

	got, err := r.Get("evaluator-1")
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestRegistry_RegisterDuplicateFails(t *testing.T) {
	r := NewRegistry(testLogger(t))

	require.NoError(t, r.Register(newTestAgent("evaluator-1")))
	err := r.Register(newTestAgent("evaluator-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestRegistry_RegisterNonActiveFails(t *testing.T) {
	r := NewRegistry(testLogger(t))

	a := newTestAgent("evaluator-1")
	a.SetStatus(StatusError)

	err := r.Register(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestRegistry_Reregister(t *testing.T) {
	r := NewRegistry(testLogger(t))

	a := newTestAgent("translator-1")
	require.NoError(t, r.Register(a))

	a.SetStatus(StatusError)
	before := a.LastHealthCheck()

	time.Sleep(time.Millisecond)
	require.NoError(t, r.Reregister("translator-1"))

	assert.Equal(t, StatusActive, a.Status())
	assert.True(t, a.LastHealthCheck().After(before))

	// Idempotent.
	require.NoError(t, r.Reregister("translator-1"))

	// Unknown id fails.
	assert.ErrorIs(t, r.Reregister("ghost"), ErrNotFound)
}

func TestAgent_SuccessRateRecomputed(t *testing.T) {
	a := newTestAgent("evaluator-1")

	// Fresh agents count as fully healthy.
	assert.Equal(t, 1.0, a.Metrics().SuccessRate)

	a.RecordTask(TaskRecord{TaskID: "t1", Local: true, Success: true, Duration: 10 * time.Millisecond})
	a.RecordTask(TaskRecord{TaskID: "t2", Local: true, Success: false, Duration: 20 * time.Millisecond})
	a.RecordTask(TaskRecord{TaskID: "t3", Local: false, Success: true, Duration: 30 * time.Millisecond})
	a.RecordTask(TaskRecord{TaskID: "t4", Local: false, Success: true, Duration: 40 * time.Millisecond})

	m := a.Metrics()
	assert.Equal(t, 0.75, m.SuccessRate)
	assert.Equal(t, 2, m.LocalTasks)
	assert.Equal(t, 2, m.APITasks)
	assert.Equal(t, 25*time.Millisecond, m.ResponseTime)
	assert.Len(t, m.TaskHistory, 4)
}

func TestAgent_Snapshot(t *testing.T) {
	a := newTestAgent("evaluator-1")
	a.SetLoad(42.5)
	a.SetStatus(StatusBusy)

	s := a.Snapshot()
	assert.Equal(t, "evaluator-1", s.ID)
	assert.Equal(t, TypeEvaluator, s.Type)
	assert.Equal(t, StatusBusy, s.Status)
	assert.Equal(t, 8, s.Clearance)
	assert.Equal(t, 42.5, s.CurrentLoad)
}

func TestAgent_HistoryBounded(t *testing.T) {
	a := newTestAgent("evaluator-1")
	for i := 0; i < historyLimit+50; i++ {
		a.RecordTask(TaskRecord{TaskID: "t", Local: true, Success: true, Duration: time.Millisecond})
	}
	assert.Len(t, a.Metrics().TaskHistory, historyLimit)
}

package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/eventbus"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence/file"
	"github.com/flowmesh/flowmesh/pkg/protocol"
	"github.com/flowmesh/flowmesh/pkg/queue"
)

// manualTrigger exposes its callback so tests fire it on demand.
type manualTrigger struct {
	mu       sync.Mutex
	callback protocol.TriggerCallback
	started  bool
	stopped  bool
}

func (m *manualTrigger) Start(_ context.Context, callback protocol.TriggerCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callback = callback
	m.started = true

	return nil
}

func (m *manualTrigger) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true

	return nil
}

func (m *manualTrigger) Validate() error { return nil }

func (m *manualTrigger) fire(t *testing.T) {
	t.Helper()

	m.mu.Lock()
	callback := m.callback
	m.mu.Unlock()

	require.NotNil(t, callback)
	require.NoError(t, callback(context.Background(), map[string]any{"source": "test"}))
}

type manualFactory struct {
	scheduleType models.ScheduleType

	mu       sync.Mutex
	created  int
	triggers []*manualTrigger
}

func (f *manualFactory) ID() models.ScheduleType { return f.scheduleType }

func (f *manualFactory) Create(_ *models.Schedule, _ *slog.Logger) (protocol.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	trigger := &manualTrigger{}
	f.created++
	f.triggers = append(f.triggers, trigger)

	return trigger, nil
}

func (f *manualFactory) last() *manualTrigger {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.triggers[len(f.triggers)-1]
}

func newTestScheduler(t *testing.T) (*Scheduler, *manualFactory, *queue.Processor) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "test workflow",
		Status: models.WorkflowStatusActive,
	}
	require.NoError(t, store.Workflows().Save(context.Background(), workflow))

	// Dispatch is never started in these tests; the queue only accumulates.
	processor := queue.NewProcessor(
		func(_ context.Context, _ *models.QueueItem) error { return nil },
		nil,
		queue.Config{},
		logger,
	)

	factory := &manualFactory{scheduleType: models.ScheduleTypeEvent}

	sched := NewScheduler(
		store.Schedules(),
		store.Workflows(),
		[]protocol.TriggerFactory{factory},
		processor,
		nil,
		logger,
	)

	return sched, factory, processor
}

func testSchedule(id string) *models.Schedule {
	return &models.Schedule{
		ID:         id,
		WorkflowID: "wf-1",
		Type:       models.ScheduleTypeEvent,
		Priority:   5,
		Config:     map[string]any{"source": "orders"},
	}
}

func TestCreateValidates(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	ctx := context.Background()

	invalid := testSchedule("s-1")
	invalid.Priority = 0
	assert.ErrorIs(t, sched.Create(ctx, invalid), models.ErrInvalidPriority)

	unknownType := testSchedule("s-2")
	unknownType.Type = "carrier-pigeon"
	assert.Error(t, sched.Create(ctx, unknownType))

	unservedType := testSchedule("s-3")
	unservedType.Type = models.ScheduleTypeBatch
	assert.ErrorIs(t, sched.Create(ctx, unservedType), ErrUnsupportedScheduleType)

	orphan := testSchedule("s-4")
	orphan.WorkflowID = "missing-wf"
	assert.Error(t, sched.Create(ctx, orphan))

	require.NoError(t, sched.Create(ctx, testSchedule("s-5")))

	stored, err := sched.Get(ctx, "s-5")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestActivateFireEnqueues(t *testing.T) {
	sched, factory, processor := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, sched.Create(ctx, testSchedule("s-1")))
	require.NoError(t, sched.Activate(ctx, "s-1"))

	assert.Equal(t, 1, sched.LiveCount())

	factory.last().fire(t)
	factory.last().fire(t)

	assert.Equal(t, 2, processor.Len())

	status, err := sched.Status(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.Equal(t, int64(2), status.FireCount)
	assert.NotNil(t, status.LastFireAt)
	assert.Equal(t, 2, status.QueueLength)

	require.NotNil(t, status.LiveData)
	assert.Equal(t, "wf-1", status.LiveData["workflow_id"])
	assert.Equal(t, 5, status.LiveData["priority"])
}

func TestCreateMintsMissingID(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	ctx := context.Background()

	schedule := testSchedule("")
	require.NoError(t, sched.Create(ctx, schedule))
	assert.NotEmpty(t, schedule.ID)

	stored, err := sched.Get(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.ID, stored.ID)
}

type recordingBus struct {
	mu        sync.Mutex
	published []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, event)

	return nil
}

func (b *recordingBus) all() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]eventbus.Event(nil), b.published...)
}

func TestFirePublishesScheduleEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Workflows().Save(ctx, &models.Workflow{
		ID:     "wf-1",
		Name:   "test workflow",
		Status: models.WorkflowStatusActive,
	}))

	processor := queue.NewProcessor(
		func(_ context.Context, _ *models.QueueItem) error { return nil },
		nil,
		queue.Config{},
		logger,
	)

	factory := &manualFactory{scheduleType: models.ScheduleTypeEvent}
	bus := &recordingBus{}
	sched := NewScheduler(store.Schedules(), store.Workflows(), []protocol.TriggerFactory{factory}, processor, bus, logger)

	require.NoError(t, sched.Create(ctx, testSchedule("s-1")))
	require.NoError(t, sched.Activate(ctx, "s-1"))

	factory.last().fire(t)

	published := bus.all()
	require.Len(t, published, 1)

	fired, ok := published[0].(events.ScheduleFired)
	require.True(t, ok)
	assert.Equal(t, "s-1", fired.ScheduleID)
	assert.Equal(t, models.ScheduleTypeEvent, fired.TriggerType)
	assert.Equal(t, 5, fired.Priority)
	assert.Equal(t, "wf-1", fired.WorkflowID)
}

func TestDeactivateStopsTrigger(t *testing.T) {
	sched, factory, _ := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, sched.Create(ctx, testSchedule("s-1")))
	require.NoError(t, sched.Activate(ctx, "s-1"))
	require.NoError(t, sched.Deactivate(ctx, "s-1"))

	assert.True(t, factory.last().stopped)
	assert.Zero(t, sched.LiveCount())

	stored, err := sched.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	assert.ErrorIs(t, sched.Deactivate(ctx, "s-1"), ErrScheduleInactive)
}

func TestUpdateReinitializesLiveTrigger(t *testing.T) {
	sched, factory, _ := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, sched.Create(ctx, testSchedule("s-1")))
	require.NoError(t, sched.Activate(ctx, "s-1"))

	first := factory.last()

	updated := testSchedule("s-1")
	updated.Config = map[string]any{"source": "refunds"}
	require.NoError(t, sched.Update(ctx, updated))

	// The old trigger was stopped and a fresh one created.
	assert.True(t, first.stopped)
	assert.Equal(t, 2, factory.created)
	assert.Equal(t, 1, sched.LiveCount())

	stored, err := sched.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "refunds", stored.Config["source"])
}

func TestUpdateInactiveStaysInactive(t *testing.T) {
	sched, factory, _ := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, sched.Create(ctx, testSchedule("s-1")))

	updated := testSchedule("s-1")
	require.NoError(t, sched.Update(ctx, updated))

	assert.Zero(t, factory.created)
	assert.Zero(t, sched.LiveCount())
}

func TestDeleteLiveSchedule(t *testing.T) {
	sched, factory, _ := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, sched.Create(ctx, testSchedule("s-1")))
	require.NoError(t, sched.Activate(ctx, "s-1"))
	require.NoError(t, sched.Delete(ctx, "s-1"))

	assert.True(t, factory.last().stopped)
	assert.Zero(t, sched.LiveCount())

	_, err := sched.Get(ctx, "s-1")
	assert.Error(t, err)
}

func TestInitializeRestoresActiveSchedules(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Workflows().Save(ctx, &models.Workflow{ID: "wf-1", Name: "w", Status: models.WorkflowStatusActive}))

	active := testSchedule("s-active")
	active.IsActive = true
	active.CreatedAt = time.Now().UTC()
	require.NoError(t, store.Schedules().Save(ctx, active))

	dormant := testSchedule("s-dormant")
	require.NoError(t, store.Schedules().Save(ctx, dormant))

	processor := queue.NewProcessor(
		func(_ context.Context, _ *models.QueueItem) error { return nil },
		nil,
		queue.Config{},
		logger,
	)

	factory := &manualFactory{scheduleType: models.ScheduleTypeEvent}
	sched := NewScheduler(store.Schedules(), store.Workflows(), []protocol.TriggerFactory{factory}, processor, nil, logger)

	require.NoError(t, sched.Initialize(ctx))
	assert.Equal(t, 1, sched.LiveCount())
	assert.Equal(t, 1, factory.created)
}

func TestShutdownStopsEverything(t *testing.T) {
	sched, factory, _ := newTestScheduler(t)
	ctx := context.Background()

	for _, id := range []string{"s-1", "s-2"} {
		require.NoError(t, sched.Create(ctx, testSchedule(id)))
		require.NoError(t, sched.Activate(ctx, id))
	}

	require.NoError(t, sched.Shutdown(ctx))
	assert.Zero(t, sched.LiveCount())

	for _, trigger := range factory.triggers {
		assert.True(t, trigger.stopped)
	}
}

package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/audit"
	"github.com/nerrad567/gray-logic-automata/internal/capability"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// ─── Stub Steps ─────────────────────────────────────────────────────────────

// testEvent is the only event stub triggers understand.
type testEvent struct {
	Text string
}

var textPoint = step.Point("text")

type fireFunc func(ctx context.Context, data step.Data) (step.Result, error)

// stubTrigger matches testEvent and fires with a configurable function.
// A non-empty extractPanic makes InitialData panic with that value.
type stubTrigger struct {
	id           uuid.UUID
	fire         fireFunc
	issues       []step.Issue
	extractPanic string
	calls        atomic.Int32
}

func newStubTrigger(fire fireFunc) *stubTrigger {
	return &stubTrigger{id: uuid.New(), fire: fire}
}

func (t *stubTrigger) ID() uuid.UUID               { return t.id }
func (t *stubTrigger) Descriptor() step.Descriptor { return stubTriggerFactory{} }
func (t *stubTrigger) Issues(step.Env) []step.Issue {
	return t.issues
}

func (t *stubTrigger) Match(ev any) (any, bool) {
	e, ok := ev.(testEvent)
	return e, ok
}

func (t *stubTrigger) InitialData(input any) step.Data {
	if t.extractPanic != "" {
		panic(t.extractPanic)
	}
	return step.NewData(map[step.DataPoint]string{textPoint: input.(testEvent).Text})
}

func (t *stubTrigger) Fire(ctx context.Context, _ step.Env, data step.Data) (step.Result, error) {
	t.calls.Add(1)
	if t.fire == nil {
		return step.Proceed{Data: data}, nil
	}
	return t.fire(ctx, data)
}

// stubAction fires with a configurable function and counts calls.
type stubAction struct {
	id     uuid.UUID
	mu     sync.Mutex
	fire   fireFunc
	issues []step.Issue
	calls  atomic.Int32
}

func newStubAction(fire fireFunc) *stubAction {
	return &stubAction{id: uuid.New(), fire: fire}
}

func (a *stubAction) ID() uuid.UUID               { return a.id }
func (a *stubAction) Descriptor() step.Descriptor { return stubActionFactory{} }
func (a *stubAction) Issues(step.Env) []step.Issue {
	return a.issues
}

func (a *stubAction) setFire(f fireFunc) {
	a.mu.Lock()
	a.fire = f
	a.mu.Unlock()
}

func (a *stubAction) Fire(ctx context.Context, _ step.Env, data step.Data) (step.Result, error) {
	a.calls.Add(1)
	a.mu.Lock()
	f := a.fire
	a.mu.Unlock()
	if f == nil {
		return step.Proceed{Data: data.With(step.Point("acted"), "yes")}, nil
	}
	return f(ctx, data)
}

type idBody struct {
	UUID string `json:"uuid"`
}

type stubTriggerFactory struct{}

func (stubTriggerFactory) Name() string               { return "Stub trigger" }
func (stubTriggerFactory) Discriminator() string      { return "StubTrigger" }
func (stubTriggerFactory) Produces() []step.DataPoint { return []step.DataPoint{textPoint} }
func (stubTriggerFactory) Dummy() step.Trigger        { return newStubTrigger(nil) }

func (stubTriggerFactory) Encode(s step.Trigger) ([]byte, error) {
	t, ok := s.(*stubTrigger)
	if !ok {
		return nil, step.ErrWrongType
	}
	return json.Marshal(idBody{UUID: t.id.String()})
}

func (stubTriggerFactory) Decode(raw []byte) (step.Trigger, error) {
	var b idBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	id, err := step.ParseID(b.UUID)
	if err != nil {
		return nil, err
	}
	return &stubTrigger{id: id}, nil
}

type stubActionFactory struct{}

func (stubActionFactory) Name() string               { return "Stub action" }
func (stubActionFactory) Discriminator() string      { return "StubAction" }
func (stubActionFactory) Produces() []step.DataPoint { return nil }
func (stubActionFactory) Dummy() step.Action         { return newStubAction(nil) }

func (stubActionFactory) Encode(s step.Action) ([]byte, error) {
	a, ok := s.(*stubAction)
	if !ok {
		return nil, step.ErrWrongType
	}
	return json.Marshal(idBody{UUID: a.id.String()})
}

func (stubActionFactory) Decode(raw []byte) (step.Action, error) {
	var b idBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	id, err := step.ParseID(b.UUID)
	if err != nil {
		return nil, err
	}
	return &stubAction{id: id}, nil
}

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockRunLog records inserted entries in memory.
type mockRunLog struct {
	mu      sync.Mutex
	entries []audit.Entry
	nextID  int64
	failFor map[uuid.UUID]error
}

func newMockRunLog() *mockRunLog {
	return &mockRunLog{failFor: make(map[uuid.UUID]error)}
}

func (m *mockRunLog) Insert(_ context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[e.Automation]; err != nil {
		return err
	}
	m.nextID++
	e.ID = m.nextID
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockRunLog) failInsertsFor(id uuid.UUID, err error) {
	m.mu.Lock()
	m.failFor[id] = err
	m.mu.Unlock()
}

func (m *mockRunLog) all() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]audit.Entry(nil), m.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// recordingLogger keeps Warn messages for assertions.
type recordingLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func newStubCodec(t *testing.T) *Codec {
	t.Helper()
	triggers, err := step.NewRegistry[step.Trigger](stubTriggerFactory{})
	if err != nil {
		t.Fatalf("trigger registry: %v", err)
	}
	actions, err := step.NewRegistry[step.Action](stubActionFactory{})
	if err != nil {
		t.Fatalf("action registry: %v", err)
	}
	return NewCodec(triggers, actions)
}

type engineFixture struct {
	engine    *Engine
	store     *Store
	runs      *mockRunLog
	persister *MemoryPersister
	env       *capability.Env
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()
	persister := NewMemoryPersister()
	store := NewStore(persister, newStubCodec(t))
	runs := newMockRunLog()
	env := capability.New(nil)
	engine := NewEngine(store, runs, env)
	t.Cleanup(engine.Wait)
	return &engineFixture{engine: engine, store: store, runs: runs, persister: persister, env: env}
}

func (f *engineFixture) add(t *testing.T, trig step.Trigger, act step.Action) Automation {
	t.Helper()
	a := New().WithTrigger(trig).WithAction(act)
	if err := f.store.Append(context.Background(), a); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return a
}

var errBoom = errors.New("boom")

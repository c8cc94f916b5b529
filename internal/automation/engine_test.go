package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/audit"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

func proceedWith(k, v string) fireFunc {
	return func(_ context.Context, data step.Data) (step.Result, error) {
		return step.Proceed{Data: data.With(step.Point(k), v)}, nil
	}
}

func entryFor(t *testing.T, entries []audit.Entry, id uuid.UUID) audit.Entry {
	t.Helper()
	for _, e := range entries {
		if e.Automation == id {
			return e
		}
	}
	t.Fatalf("no entry for automation %s", id)
	return audit.Entry{}
}

func TestDispatch_NoMatchRecordsNothing(t *testing.T) {
	f := setupEngine(t)
	trig := newStubTrigger(nil)
	f.add(t, trig, newStubAction(nil))

	entries, err := f.engine.Dispatch(context.Background(), "not a test event")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(entries) != 0 || len(f.runs.all()) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
	if trig.calls.Load() != 0 {
		t.Error("trigger fired for non-matching event")
	}
}

func TestDispatch_ProceedRunsAction(t *testing.T) {
	f := setupEngine(t)
	act := newStubAction(nil)
	a := f.add(t, newStubTrigger(nil), act)

	entries, err := f.engine.Dispatch(context.Background(), testEvent{Text: "hello"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.Automation != a.ID || e.State != audit.StateDone || e.Error != nil {
		t.Errorf("entry = %+v, want DONE for %s", e, a.ID)
	}
	if v, _ := e.Data.Get(textPoint); v != "hello" {
		t.Errorf("text = %q, want %q", v, "hello")
	}
	if v, _ := e.Data.Get(step.Point("acted")); v != "yes" {
		t.Errorf("acted = %q, want %q", v, "yes")
	}
	if e.ID == 0 || e.CreatedAt.IsZero() {
		t.Errorf("entry not stamped: %+v", e)
	}
	if act.calls.Load() != 1 {
		t.Errorf("action calls = %d, want 1", act.calls.Load())
	}
}

func TestDispatch_StepOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		trigger    fireFunc
		action     fireFunc
		wantState  audit.State
		wantError  string
		wantAction bool
		wantData   map[string]string
	}{
		{
			name: "trigger skips",
			trigger: func(context.Context, step.Data) (step.Result, error) {
				return step.Skipped{}, nil
			},
			wantState: audit.StateSkipped,
			wantData:  map[string]string{"text": "in"},
		},
		{
			name: "trigger errs",
			trigger: func(context.Context, step.Data) (step.Result, error) {
				return step.Erred{Message: "no signal"}, nil
			},
			wantState: audit.StateError,
			wantError: "no signal",
			wantData:  map[string]string{"text": "in"},
		},
		{
			name: "trigger returns error",
			trigger: func(context.Context, step.Data) (step.Result, error) {
				return nil, errBoom
			},
			wantState: audit.StateError,
			wantError: "boom",
		},
		{
			name: "trigger panics",
			trigger: func(context.Context, step.Data) (step.Result, error) {
				panic("kaput")
			},
			wantState: audit.StateError,
			wantError: "panic: kaput",
		},
		{
			name:       "action skips keeps trigger data",
			trigger:    proceedWith("extra", "1"),
			action:     func(context.Context, step.Data) (step.Result, error) { return step.Skipped{}, nil },
			wantState:  audit.StateSkipped,
			wantAction: true,
			wantData:   map[string]string{"text": "in", "extra": "1"},
		},
		{
			name: "action replaces data",
			action: func(context.Context, step.Data) (step.Result, error) {
				return step.Proceed{Data: step.DataOf("response", "ok")}, nil
			},
			wantState:  audit.StateDone,
			wantAction: true,
			wantData:   map[string]string{"response": "ok"},
		},
		{
			name:       "action errs",
			action:     func(context.Context, step.Data) (step.Result, error) { return step.Erred{Message: "503"}, nil },
			wantState:  audit.StateError,
			wantError:  "503",
			wantAction: true,
			wantData:   map[string]string{"text": "in"},
		},
		{
			name:       "action panics",
			action:     func(context.Context, step.Data) (step.Result, error) { panic(errBoom) },
			wantState:  audit.StateError,
			wantError:  "panic: boom",
			wantAction: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupEngine(t)
			act := newStubAction(tt.action)
			f.add(t, newStubTrigger(tt.trigger), act)

			entries, err := f.engine.Dispatch(context.Background(), testEvent{Text: "in"})
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("entries = %d, want 1", len(entries))
			}
			e := entries[0]

			if e.State != tt.wantState {
				t.Errorf("State = %s, want %s", e.State, tt.wantState)
			}
			if e.ErrorMessage() != tt.wantError {
				t.Errorf("Error = %q, want %q", e.ErrorMessage(), tt.wantError)
			}
			if (e.Error != nil) != (tt.wantState == audit.StateError) {
				t.Errorf("Error set = %v for state %s", e.Error != nil, e.State)
			}
			if got := act.calls.Load() > 0; got != tt.wantAction {
				t.Errorf("action called = %v, want %v", got, tt.wantAction)
			}
			if tt.wantData != nil {
				got := e.Data.Values()
				if len(got) != len(tt.wantData) {
					t.Errorf("data = %v, want %v", got, tt.wantData)
				}
				for k, v := range tt.wantData {
					if got[k] != v {
						t.Errorf("data[%s] = %q, want %q", k, got[k], v)
					}
				}
			}
		})
	}
}

func TestDispatch_FaultIsolation(t *testing.T) {
	f := setupEngine(t)
	bad := f.add(t, newStubTrigger(func(context.Context, step.Data) (step.Result, error) {
		panic("trigger exploded")
	}), newStubAction(nil))
	good := f.add(t, newStubTrigger(nil), newStubAction(nil))

	entries, err := f.engine.Dispatch(context.Background(), testEvent{Text: "x"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Automation != bad.ID || entries[1].Automation != good.ID {
		t.Error("entries not in store order")
	}
	if entries[0].State != audit.StateError {
		t.Errorf("bad state = %s, want ERROR", entries[0].State)
	}
	if entries[1].State != audit.StateDone {
		t.Errorf("good state = %s, want DONE", entries[1].State)
	}
}

func TestDispatch_MatchPanicRecordsError(t *testing.T) {
	f := setupEngine(t)
	trig := newStubTrigger(nil)
	trig.extractPanic = "bad input"
	a := f.add(t, trig, newStubAction(nil))

	entries, err := f.engine.Dispatch(context.Background(), testEvent{Text: "x"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	e := entryFor(t, entries, a.ID)
	if e.State != audit.StateError || e.ErrorMessage() != "panic: bad input" {
		t.Errorf("entry = %+v", e)
	}
	if e.Data.Len() != 0 {
		t.Errorf("data = %v, want empty", e.Data.Values())
	}
}

func TestDispatch_UnreadyAutomationsNeverRun(t *testing.T) {
	f := setupEngine(t)

	blocked := newStubTrigger(nil)
	blocked.issues = []step.Issue{step.MissingCapability(step.CapabilitySMS, "no sms")}
	f.add(t, blocked, newStubAction(nil))

	noAction := newStubTrigger(nil)
	if err := f.store.Append(context.Background(), New().WithTrigger(noAction)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := f.store.Append(context.Background(), New().WithAction(newStubAction(nil))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := f.engine.Dispatch(context.Background(), testEvent{Text: "x"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}
	if blocked.calls.Load() != 0 || noAction.calls.Load() != 0 {
		t.Error("unready trigger fired")
	}
}

func TestDispatch_PersistenceFailure(t *testing.T) {
	f := setupEngine(t)
	failing := f.add(t, newStubTrigger(nil), newStubAction(nil))
	ok := f.add(t, newStubTrigger(nil), newStubAction(nil))
	f.runs.failInsertsFor(failing.ID, errBoom)

	entries, err := f.engine.Dispatch(context.Background(), testEvent{Text: "x"})
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, errBoom) {
		t.Fatalf("Dispatch() error = %v, want ErrPersistence wrapping errBoom", err)
	}
	if len(entries) != 1 || entries[0].Automation != ok.ID {
		t.Errorf("entries = %+v, want only %s", entries, ok.ID)
	}
}

func TestDispatch_CancelledContextStillRecords(t *testing.T) {
	f := setupEngine(t)
	f.add(t, newStubTrigger(func(ctx context.Context, data step.Data) (step.Result, error) {
		if ctx.Err() != nil {
			return step.Erred{Message: "cancelled"}, nil
		}
		return step.Proceed{Data: data}, nil
	}), newStubAction(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries, err := f.engine.Dispatch(ctx, testEvent{Text: "x"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(entries) != 1 || entries[0].State != audit.StateDone {
		t.Errorf("entries = %+v, want one DONE", entries)
	}
}

func TestDispatch_ObserversSeeRuns(t *testing.T) {
	f := setupEngine(t)
	a := f.add(t, newStubTrigger(nil), newStubAction(nil))

	var (
		mu   sync.Mutex
		runs []Run
	)
	f.engine.OnRun(RunObserverFunc(func(r Run) {
		mu.Lock()
		runs = append(runs, r)
		mu.Unlock()
	}))

	if _, err := f.engine.Dispatch(context.Background(), testEvent{Text: "x"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Entry.Automation != a.ID || runs[0].Title != DefaultTitle || runs[0].Retry {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestDispatchAsync(t *testing.T) {
	f := setupEngine(t)
	release := make(chan struct{})
	f.add(t, newStubTrigger(func(_ context.Context, data step.Data) (step.Result, error) {
		<-release
		return step.Proceed{Data: data}, nil
	}), newStubAction(nil))

	f.engine.DispatchAsync(context.Background(), testEvent{Text: "x"})
	if len(f.runs.all()) != 0 {
		t.Fatal("DispatchAsync blocked until the run finished")
	}

	close(release)
	f.engine.Wait()
	if got := f.runs.all(); len(got) != 1 || got[0].State != audit.StateDone {
		t.Errorf("runs = %+v, want one DONE", got)
	}
}

func TestRetry_AutomationGone(t *testing.T) {
	f := setupEngine(t)
	entry := audit.Entry{ID: 7, Automation: uuid.New(), State: audit.StateError}

	err := f.engine.Retry(context.Background(), entry, func(audit.Entry, error) {
		t.Error("done called for missing automation")
	})
	if !errors.Is(err, ErrAutomationNotFound) {
		t.Errorf("Retry() error = %v, want ErrAutomationNotFound", err)
	}
	if len(f.runs.all()) != 0 {
		t.Error("retry recorded an entry")
	}
}

// fixedClock returns increasing timestamps one second apart.
func fixedClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestRetry_ReplaysAgainstCurrentDefinition(t *testing.T) {
	f := setupEngine(t)
	f.engine.now = fixedClock()

	act := newStubAction(func(context.Context, step.Data) (step.Result, error) {
		return step.Erred{Message: "endpoint down"}, nil
	})
	a := f.add(t, newStubTrigger(nil), act)

	entries, err := f.engine.Dispatch(context.Background(), testEvent{Text: "original"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	failed := entryFor(t, entries, a.ID)
	if failed.State != audit.StateError {
		t.Fatalf("first run state = %s, want ERROR", failed.State)
	}

	act.setFire(nil)

	var retried []Run
	var mu sync.Mutex
	f.engine.OnRun(RunObserverFunc(func(r Run) {
		mu.Lock()
		retried = append(retried, r)
		mu.Unlock()
	}))

	got, err := f.engine.RetryWait(context.Background(), failed)
	if err != nil {
		t.Fatalf("RetryWait() error = %v", err)
	}

	if got.State != audit.StateDone || got.Error != nil {
		t.Errorf("retry = %+v, want DONE without error", got)
	}
	if got.ID == failed.ID {
		t.Error("retry reused the original entry id")
	}
	if !got.CreatedAt.After(failed.CreatedAt) {
		t.Errorf("retry CreatedAt %v not after %v", got.CreatedAt, failed.CreatedAt)
	}
	if v, _ := got.Data.Get(textPoint); v != "original" {
		t.Errorf("text = %q, want data carried from the original entry", v)
	}
	if v, _ := got.Data.Get(step.Point("acted")); v != "yes" {
		t.Errorf("acted = %q, want %q", v, "yes")
	}

	all := f.runs.all()
	if len(all) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(all))
	}
	if all[0].State != audit.StateError || all[0].ErrorMessage() != "endpoint down" {
		t.Errorf("original entry changed: %+v", all[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if len(retried) != 1 || !retried[0].Retry {
		t.Errorf("observed runs = %+v, want one retry", retried)
	}
}

func TestRetry_DoneCallback(t *testing.T) {
	f := setupEngine(t)
	a := f.add(t, newStubTrigger(nil), newStubAction(nil))
	f.runs.failInsertsFor(a.ID, errBoom)

	done := make(chan error, 1)
	err := f.engine.Retry(context.Background(), audit.Entry{Automation: a.ID, Data: step.DataOf("text", "x")}, func(_ audit.Entry, err error) {
		done <- err
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("done error = %v, want ErrPersistence", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("done not called")
	}
}

func TestRetryWait_ContextStopsWaitOnly(t *testing.T) {
	f := setupEngine(t)
	release := make(chan struct{})
	a := f.add(t, newStubTrigger(func(_ context.Context, data step.Data) (step.Result, error) {
		<-release
		return step.Proceed{Data: data}, nil
	}), newStubAction(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.engine.RetryWait(ctx, audit.Entry{Automation: a.ID})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RetryWait() error = %v, want DeadlineExceeded", err)
	}

	close(release)
	f.engine.Wait()
	if got := f.runs.all(); len(got) != 1 || got[0].State != audit.StateDone {
		t.Errorf("runs = %+v, want the replay to finish", got)
	}
}

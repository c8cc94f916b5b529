package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/audit"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// RunLog is the part of the audit log the engine writes to.
type RunLog interface {
	Insert(ctx context.Context, entry *audit.Entry) error
}

// Run describes one recorded execution.
type Run struct {
	Entry    audit.Entry
	Title    string
	Duration time.Duration
	Retry    bool
}

// RunObserver is told about every run that reached the audit log.
type RunObserver interface {
	RunRecorded(run Run)
}

// RunObserverFunc adapts a function to RunObserver.
type RunObserverFunc func(run Run)

// RunRecorded implements RunObserver.
func (f RunObserverFunc) RunRecorded(run Run) { f(run) }

// Engine dispatches events to ready automations and replays past runs.
//
// Each matched automation runs in its own goroutine. A step that errs,
// returns an error or panics produces an ERROR entry and never affects
// the other automations. Once started, a run is never cancelled: it
// always completes and always attempts its audit insert.
type Engine struct {
	store  *Store
	runs   RunLog
	env    step.Env
	logger Logger
	now    func() time.Time

	obsMu     sync.RWMutex
	observers []RunObserver

	inflight sync.WaitGroup
}

// NewEngine creates an engine.
func NewEngine(store *Store, runs RunLog, env step.Env) *Engine {
	return &Engine{
		store:  store,
		runs:   runs,
		env:    env,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// OnRun registers a run observer.
func (e *Engine) OnRun(o RunObserver) {
	e.obsMu.Lock()
	e.observers = append(e.observers, o)
	e.obsMu.Unlock()
}

// Dispatch runs every ready automation whose trigger matches ev and
// returns the recorded entries in store order. Automations that do not
// match produce no entry.
//
// Step failures never surface as an error. A failed audit insert does:
// all insert failures are joined and wrapped with ErrPersistence, and the
// entries that were recorded are still returned.
func (e *Engine) Dispatch(ctx context.Context, ev any) ([]audit.Entry, error) {
	ctx = context.WithoutCancel(ctx)

	all, err := e.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatching event: %w", err)
	}

	type outcome struct {
		entry    audit.Entry
		matched  bool
		recorded bool
		err      error
	}

	var ready []Automation
	for _, a := range all {
		if a.IsReady(e.env) {
			ready = append(ready, a)
		}
	}

	outcomes := make([]outcome, len(ready))
	var wg sync.WaitGroup
	for i, a := range ready {
		wg.Add(1)
		go func() {
			defer wg.Done()

			data, matched, err := e.match(a, ev)
			if !matched {
				return
			}
			o := outcome{matched: true}
			if err != nil {
				o.entry, o.err = e.record(ctx, a, failedEntry(a.ID, step.Data{}, err.Error()), time.Now(), false)
			} else {
				o.entry, o.err = e.execute(ctx, a, data, false)
			}
			o.recorded = o.err == nil
			outcomes[i] = o
		}()
	}
	wg.Wait()

	var (
		entries []audit.Entry
		errs    []error
	)
	for _, o := range outcomes {
		if !o.matched {
			continue
		}
		if o.recorded {
			entries = append(entries, o.entry)
		} else {
			errs = append(errs, o.err)
		}
	}

	if len(errs) > 0 {
		return entries, errors.Join(errs...)
	}
	return entries, nil
}

// DispatchAsync runs Dispatch on a new goroutine and logs persistence
// failures. It never blocks the caller.
func (e *Engine) DispatchAsync(ctx context.Context, ev any) {
	ctx = context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		entries, err := e.Dispatch(ctx, ev)
		if err != nil {
			e.logger.Error("dispatch failed", "event", fmt.Sprintf("%T", ev), "error", err)
			return
		}
		e.logger.Debug("event dispatched", "event", fmt.Sprintf("%T", ev), "runs", len(entries))
	}()
}

// Retry replays a recorded run against the current definition of its
// automation, starting from the entry's stored data. The new entry gets
// a fresh timestamp and no error; the original is left untouched.
//
// ErrAutomationNotFound is returned straight away when the automation no
// longer exists. Otherwise the replay runs on its own goroutine and done,
// if non-nil, is called with the new entry once it has been recorded.
func (e *Engine) Retry(ctx context.Context, entry audit.Entry, done func(audit.Entry, error)) error {
	a, err := e.store.Find(ctx, entry.Automation)
	if err != nil {
		return fmt.Errorf("retrying run %d: %w", entry.ID, err)
	}

	ctx = context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		result, err := e.execute(ctx, a, entry.Data, true)
		if err != nil {
			e.logger.Error("retry not recorded", "automation", a.ID.String(), "entry", entry.ID, "error", err)
		}
		if done != nil {
			done(result, err)
		}
	}()
	return nil
}

// RetryWait calls Retry and waits for the new entry. A cancelled ctx
// stops the wait, not the replay.
func (e *Engine) RetryWait(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	type result struct {
		entry audit.Entry
		err   error
	}
	ch := make(chan result, 1)

	if err := e.Retry(ctx, entry, func(en audit.Entry, err error) {
		ch <- result{en, err}
	}); err != nil {
		return audit.Entry{}, err
	}

	select {
	case r := <-ch:
		return r.entry, r.err
	case <-ctx.Done():
		return audit.Entry{}, ctx.Err()
	}
}

// Wait blocks until every DispatchAsync and Retry goroutine has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// match applies the trigger's type gate and extraction, turning a panic
// in either into an error.
func (e *Engine) match(a Automation, ev any) (data step.Data, matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = true
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	input, ok := a.Trigger.Match(ev)
	if !ok {
		return step.Data{}, false, nil
	}
	return a.Trigger.InitialData(input), true, nil
}

// execute fires the trigger and, if it proceeded, the action, then
// records the entry.
func (e *Engine) execute(ctx context.Context, a Automation, data step.Data, retry bool) (audit.Entry, error) {
	start := time.Now()
	entry := audit.Entry{Automation: a.ID, State: audit.StateSkipped, Data: data}

	entry = e.fold(ctx, a.Trigger, entry)
	if entry.State == audit.StateDone {
		entry = e.fold(ctx, a.Action, entry)
	}

	return e.record(ctx, a, entry, start, retry)
}

// fold fires s with the entry's data and folds the result into the entry.
func (e *Engine) fold(ctx context.Context, s step.Step, entry audit.Entry) audit.Entry {
	res, err := e.fire(ctx, s, entry.Data)
	if err != nil {
		return failedEntry(entry.Automation, entry.Data, err.Error())
	}

	return step.Fold(res,
		func() audit.Entry {
			entry.State = audit.StateSkipped
			return entry
		},
		func(d step.Data) audit.Entry {
			entry.State = audit.StateDone
			entry.Data = d
			return entry
		},
		func(msg string) audit.Entry {
			return failedEntry(entry.Automation, entry.Data, msg)
		},
	)
}

// fire calls s.Fire, converting a panic into an error.
func (e *Engine) fire(ctx context.Context, s step.Step, data step.Data) (res step.Result, err error) {
	if s == nil {
		return nil, errors.New("step not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step panicked", "step", s.ID().String(), "panic", r)
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Fire(ctx, e.env, data)
}

// record stamps and inserts the entry, then notifies run observers.
func (e *Engine) record(ctx context.Context, a Automation, entry audit.Entry, start time.Time, retry bool) (audit.Entry, error) {
	entry.CreatedAt = e.now()
	if err := e.runs.Insert(ctx, &entry); err != nil {
		e.logger.Error("recording run failed", "automation", a.ID.String(), "state", entry.State, "error", err)
		return entry, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	e.logger.Info("automation run recorded",
		"automation", a.ID.String(),
		"entry", entry.ID,
		"state", entry.State,
		"retry", retry,
	)

	run := Run{Entry: entry, Title: a.Title, Duration: time.Since(start), Retry: retry}
	e.obsMu.RLock()
	observers := append([]RunObserver(nil), e.observers...)
	e.obsMu.RUnlock()
	for _, o := range observers {
		o.RunRecorded(run)
	}
	return entry, nil
}

func failedEntry(id uuid.UUID, data step.Data, msg string) audit.Entry {
	return audit.Entry{Automation: id, State: audit.StateError, Data: data, Error: &msg}
}

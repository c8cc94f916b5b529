package automation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Persister stores the encoded automation set. Save replaces the whole
// set atomically; Load returns it in the saved order.
type Persister interface {
	Load(ctx context.Context) ([][]byte, error)
	Save(ctx context.Context, blobs [][]byte) error
}

// Observer is told about every durable change to the store.
type Observer interface {
	AutomationsChanged(all []Automation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(all []Automation)

// AutomationsChanged implements Observer.
func (f ObserverFunc) AutomationsChanged(all []Automation) { f(all) }

// Store is the ordered, uuid-unique set of automations.
//
// The first read or write loads the set from the Persister, exactly once.
// Every mutation encodes the full set and saves it before returning; if
// the save fails the in-memory set is left as it was. Observers run after
// each save, in write order. They are handed the new set and must not
// call back into the store.
type Store struct {
	persister Persister
	codec     *Codec
	logger    Logger

	loadOnce sync.Once
	loadErr  error

	mu     sync.RWMutex
	items  []Automation
	closed bool

	notifyMu  sync.Mutex
	observers []Observer
}

// NewStore creates a store. Nothing is read until first access.
func NewStore(persister Persister, codec *Codec) *Store {
	return &Store{persister: persister, codec: codec, logger: noopLogger{}}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Subscribe registers an observer.
func (s *Store) Subscribe(o Observer) {
	s.notifyMu.Lock()
	s.observers = append(s.observers, o)
	s.notifyMu.Unlock()
}

// Load reads the persisted set if it has not been read yet. A failed load
// is returned again on every later call.
func (s *Store) Load(ctx context.Context) error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load(ctx)
	})
	return s.loadErr
}

func (s *Store) load(ctx context.Context) error {
	blobs, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading automations: %w", err)
	}

	items := make([]Automation, 0, len(blobs))
	seen := make(map[uuid.UUID]bool, len(blobs))
	for i, blob := range blobs {
		a, err := s.codec.Unmarshal(blob)
		if err != nil {
			return fmt.Errorf("loading automation %d: %w", i, err)
		}
		if seen[a.ID] {
			s.logger.Warn("skipping duplicate automation", "id", a.ID.String())
			continue
		}
		seen[a.ID] = true
		items = append(items, a)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.logger.Info("automations loaded", "count", len(items))
	return nil
}

// All returns a snapshot of the set in order.
func (s *Store) All(ctx context.Context) ([]Automation, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Automation(nil), s.items...), nil
}

// Find returns the automation with the given id.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (Automation, error) {
	if err := s.Load(ctx); err != nil {
		return Automation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], nil
	}
	return Automation{}, ErrAutomationNotFound
}

// Append adds an automation at the end.
func (s *Store) Append(ctx context.Context, a Automation) error {
	return s.mutate(ctx, func(items []Automation) ([]Automation, error) {
		if indexOf(items, a.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
		}
		return append(items, a), nil
	})
}

// Replace installs a new value for an existing automation, keeping its
// position.
func (s *Store) Replace(ctx context.Context, a Automation) error {
	return s.mutate(ctx, func(items []Automation) ([]Automation, error) {
		i := indexOf(items, a.ID)
		if i < 0 {
			return nil, ErrAutomationNotFound
		}
		items[i] = a
		return items, nil
	})
}

// Remove deletes an automation.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	return s.mutate(ctx, func(items []Automation) ([]Automation, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, ErrAutomationNotFound
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

// Close stops further mutations. Reads keep working.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// mutate applies fn to a copy of the set, saves the result and installs
// it. fn may modify the slice it is given.
func (s *Store) mutate(ctx context.Context, fn func([]Automation) ([]Automation, error)) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}

	next, err := fn(append([]Automation(nil), s.items...))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	blobs := make([][]byte, 0, len(next))
	for _, a := range next {
		blob, err := s.codec.Marshal(a)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		blobs = append(blobs, blob)
	}

	if err := s.persister.Save(ctx, blobs); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: saving automations: %w", ErrPersistence, err)
	}
	s.items = next
	snapshot := append([]Automation(nil), next...)

	// Taken before releasing mu so observers see writes in order.
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, o := range s.observers {
		o.AutomationsChanged(append([]Automation(nil), snapshot...))
	}
	return nil
}

func indexOf(items []Automation, id uuid.UUID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

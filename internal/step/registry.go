package step

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// classField is the JSON field carrying the discriminator.
const classField = "class"

// Factory builds, names and (de)serialises one concrete step type.
//
// Encode writes the factory's own JSON object (without the class field);
// Decode reads it back. Decode(Encode(s)) must equal s.
type Factory[S Step] interface {
	Descriptor
	Dummy() S
	Encode(s S) ([]byte, error)
	Decode(raw []byte) (S, error)
}

// Registry maps discriminators to factories. It is the extension seam for
// new step types: registering a factory is all it takes for the type to
// round-trip through JSON and appear in the catalogue.
//
// A Registry is safe for concurrent use. It is normally built once at
// startup and never mutated afterwards.
type Registry[S Step] struct {
	mu        sync.RWMutex
	factories map[string]Factory[S]
	order     []string
}

// NewRegistry creates a registry holding the given factories.
func NewRegistry[S Step](factories ...Factory[S]) (*Registry[S], error) {
	r := &Registry[S]{factories: make(map[string]Factory[S], len(factories))}
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a factory. Discriminators must be non-empty and unique.
func (r *Registry[S]) Register(f Factory[S]) error {
	disc := f.Discriminator()
	if disc == "" {
		return fmt.Errorf("%w: factory %q", ErrEmptyDiscriminator, f.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[disc]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDiscriminator, disc)
	}
	r.factories[disc] = f
	r.order = append(r.order, disc)
	return nil
}

// Lookup returns the factory registered for a discriminator.
func (r *Registry[S]) Lookup(discriminator string) (Factory[S], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[discriminator]
	return f, ok
}

// Factories returns all factories in registration order.
func (r *Registry[S]) Factories() []Factory[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Factory[S], 0, len(r.order))
	for _, disc := range r.order {
		out = append(out, r.factories[disc])
	}
	return out
}

// Dummy returns a fresh empty step of the given type.
func (r *Registry[S]) Dummy(discriminator string) (S, bool) {
	f, ok := r.Lookup(discriminator)
	if !ok {
		var zero S
		return zero, false
	}
	return f.Dummy(), true
}

// Marshal serialises s with its discriminator under "class".
func (r *Registry[S]) Marshal(s S) (json.RawMessage, error) {
	disc := s.Descriptor().Discriminator()
	f, ok := r.Lookup(disc)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, disc)
	}

	body, err := f.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", disc, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s: factory produced non-object: %w", disc, err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}

	class, err := json.Marshal(disc)
	if err != nil {
		return nil, fmt.Errorf("encoding class: %w", err)
	}
	fields[classField] = class

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", disc, err)
	}
	return out, nil
}

// Unmarshal reads the "class" field and decodes raw with the matching
// factory. The bool result is false when no factory matches: an unknown
// discriminator yields an absent step, not an error. A known class with a
// malformed body is an error.
func (r *Registry[S]) Unmarshal(raw json.RawMessage) (S, bool, error) {
	var zero S

	var head struct {
		Class *string `json:"class"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return zero, false, fmt.Errorf("decoding step: %w", err)
	}
	if head.Class == nil {
		return zero, false, ErrMissingClass
	}

	f, ok := r.Lookup(*head.Class)
	if !ok {
		return zero, false, nil
	}

	s, err := f.Decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("decoding %s: %w", *head.Class, err)
	}
	return s, true, nil
}

// ParseID parses a step uuid field, wrapping failures with ErrInvalidID.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

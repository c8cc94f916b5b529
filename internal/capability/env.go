// Package capability tracks which environment facilities are currently
// available to automation steps and implements step.Env on top of them.
//
// Capabilities are granted and revoked by the components that own them:
// the MQTT event source grants a capability once its subscription is
// active and revokes it when the connection drops. Step issue probes read
// the live state on every call.
package capability

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// defaultHTTPTimeout bounds outbound step HTTP calls when no client is given.
const defaultHTTPTimeout = 30 * time.Second

// connectionChecker is implemented by publishers that know their link state.
type connectionChecker interface {
	IsConnected() bool
}

// Listener is notified whenever the granted set changes.
type Listener func(c step.Capability, granted bool)

// Env is the live step environment. It is safe for concurrent use.
type Env struct {
	mu        sync.RWMutex
	granted   map[step.Capability]bool
	client    *http.Client
	publisher step.Publisher
	listeners []Listener
}

// New creates an environment with nothing granted. A nil client gets a
// default client with a 30 second timeout.
func New(client *http.Client) *Env {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Env{
		granted: make(map[step.Capability]bool),
		client:  client,
	}
}

// Grant marks a capability as available.
func (e *Env) Grant(c step.Capability) {
	e.set(c, true)
}

// Revoke marks a capability as unavailable.
func (e *Env) Revoke(c step.Capability) {
	e.set(c, false)
}

func (e *Env) set(c step.Capability, granted bool) {
	e.mu.Lock()
	changed := e.granted[c] != granted
	if granted {
		e.granted[c] = true
	} else {
		delete(e.granted, c)
	}
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(c, granted)
		}
	}
}

// OnChange registers a listener for grant/revoke transitions.
func (e *Env) OnChange(l Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// Granted implements step.Env.
func (e *Env) Granted(c step.Capability) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.granted[c]
}

// List returns the granted capabilities in name order.
func (e *Env) List() []step.Capability {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]step.Capability, 0, len(e.granted))
	for c := range e.granted {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HTTPClient implements step.Env.
func (e *Env) HTTPClient() *http.Client {
	return e.client
}

// SetPublisher installs the device bus publisher.
func (e *Env) SetPublisher(p step.Publisher) {
	e.mu.Lock()
	e.publisher = p
	e.mu.Unlock()
}

// Publisher implements step.Env. It returns nil when no publisher is set
// or the publisher reports itself disconnected.
func (e *Env) Publisher() step.Publisher {
	e.mu.RLock()
	p := e.publisher
	e.mu.RUnlock()

	if p == nil {
		return nil
	}
	if cc, ok := p.(connectionChecker); ok && !cc.IsConnected() {
		return nil
	}
	return p
}

// Package delivery routes routine outcome notices to chat targets.
package delivery

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Handler delivers a message to target, e.g. "telegram:12345".
type Handler func(target, message string) error

// Registry routes messages to the handler registered for the target's
// scheme (the part before the first colon).
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets of the given scheme ("telegram").
func (r *Registry) Register(scheme string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[strings.TrimSuffix(scheme, ":")] = handler
}

// Deliver sends message to target.
func (r *Registry) Deliver(target, message string) error {
	scheme, _, ok := strings.Cut(target, ":")
	if !ok {
		return fmt.Errorf("invalid delivery target %q: want scheme:address", target)
	}

	r.mu.RLock()
	handler, ok := r.handlers[scheme]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no delivery handler for target: %s", target)
	}
	return handler(target, message)
}

// RoutineResult reports how a routine run ended to target. An empty target
// is a no-op.
func (r *Registry) RoutineResult(target, routine string, err error) {
	if target == "" {
		return
	}
	msg := fmt.Sprintf("Routine %s: done", routine)
	if err != nil {
		msg = fmt.Sprintf("Routine %s failed: %v", routine, err)
	}
	if derr := r.Deliver(target, msg); derr != nil {
		slog.Error("routine notice not delivered", "routine", routine, "target", target, "error", derr)
	}
}

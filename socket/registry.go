package socket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/onoro/status"
)

var (
	// ErrUndeclaredEvent is returned when an operation names an event
	// outside the capability set declared for it. This is a programming
	// error on the local side, caught before any frame is sent.
	ErrUndeclaredEvent = errors.New("event not declared for this operation")
)

// NotificationHandler handles an inbound one-way event.
type NotificationHandler func(args []any)

// CallHandler answers an inbound call. It runs on its own goroutine
// and its Status becomes the response sent back to the caller.
type CallHandler func(ctx context.Context, args []any) status.Status

// Capabilities declares, per direction, which event names this
// endpoint uses and how. Registration and sending are validated
// against these sets up front, so a mismatch between endpoints
// surfaces at startup instead of as silently dropped frames.
type Capabilities struct {
	// Notifications are inbound one-way events handled via On.
	Notifications []string
	// Calls are inbound request events answered via Respond.
	Calls []string
	// EmitEvents are outbound one-way events this endpoint may Emit.
	EmitEvents []string
	// CallEvents are outbound request events this endpoint may Call;
	// each must be answered by a Respond registration on the remote
	// side.
	CallEvents []string
}

// registry maps event names to their handlers and enforces the
// declared capability sets. One entry per name; later registration
// replaces the earlier one.
type registry struct {
	mutex sync.RWMutex

	notificationSet map[string]bool
	callSet         map[string]bool
	emitSet         map[string]bool
	outCallSet      map[string]bool

	notifications map[string]NotificationHandler
	callHandlers  map[string]CallHandler
}

func newRegistry(caps Capabilities) *registry {
	return &registry{
		notificationSet: toSet(caps.Notifications),
		callSet:         toSet(caps.Calls),
		emitSet:         toSet(caps.EmitEvents),
		outCallSet:      toSet(caps.CallEvents),
		notifications:   make(map[string]NotificationHandler),
		callHandlers:    make(map[string]CallHandler),
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

func (r *registry) registerNotification(event string, fn NotificationHandler) error {
	if !r.notificationSet[event] {
		return fmt.Errorf("%w: %q is not a declared notification", ErrUndeclaredEvent, event)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifications[event] = fn
	return nil
}

func (r *registry) registerCallHandler(event string, fn CallHandler) error {
	if !r.callSet[event] {
		return fmt.Errorf("%w: %q is not a declared call", ErrUndeclaredEvent, event)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.callHandlers[event] = fn
	return nil
}

func (r *registry) checkEmit(event string) error {
	if !r.emitSet[event] {
		return fmt.Errorf("%w: %q is not a declared outbound notification", ErrUndeclaredEvent, event)
	}
	return nil
}

func (r *registry) checkCall(event string) error {
	if !r.outCallSet[event] {
		return fmt.Errorf("%w: %q is not a declared outbound call", ErrUndeclaredEvent, event)
	}
	return nil
}

func (r *registry) notification(event string) (NotificationHandler, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	fn, ok := r.notifications[event]
	return fn, ok
}

func (r *registry) callHandler(event string) (CallHandler, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	fn, ok := r.callHandlers[event]
	return fn, ok
}

// inboundCallDeclared reports whether event is in the declared inbound
// call set, used to distinguish "unknown event" from "wrong handler
// kind" in logs.
func (r *registry) inboundCallDeclared(event string) bool {
	return r.callSet[event]
}

func (r *registry) inboundNotificationDeclared(event string) bool {
	return r.notificationSet[event]
}

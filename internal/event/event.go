// Package event provides the typed audit event log: a closed set of event
// kinds emitted over the store, with in-process subscription and replay.
package event

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/phaserhq/phaser/internal/store"
)

// Kind is one of the closed set of event types.
type Kind string

const (
	AuditCreated       Kind = "audit_created"
	AuditStarted       Kind = "audit_started"
	AuditCompleted     Kind = "audit_completed"
	AuditFailed        Kind = "audit_failed"
	PhaseStarted       Kind = "phase_started"
	PhaseCompleted     Kind = "phase_completed"
	PhaseFailed        Kind = "phase_failed"
	VerificationPassed Kind = "verification_passed"
	VerificationFailed Kind = "verification_failed"
	FileCreated        Kind = "file_created"
	FileModified       Kind = "file_modified"
	FileDeleted        Kind = "file_deleted"
)

// Kinds lists every valid event kind.
var Kinds = []Kind{
	AuditCreated, AuditStarted, AuditCompleted, AuditFailed,
	PhaseStarted, PhaseCompleted, PhaseFailed,
	VerificationPassed, VerificationFailed,
	FileCreated, FileModified, FileDeleted,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Subscriber receives events as they are emitted in-process.
// Implementations must not block.
type Subscriber interface {
	OnEvent(e store.Event)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(e store.Event)

// OnEvent calls the wrapped function.
func (f SubscriberFunc) OnEvent(e store.Event) { f(e) }

// Log wraps the store's event file with typed emission, subscription,
// and replay.
type Log struct {
	store       *store.Store
	subscribers []Subscriber
}

// NewLog returns a Log over the given store.
func NewLog(s *store.Store) *Log {
	return &Log{store: s}
}

// Emit appends a new event stamped with a fresh UUID and the current UTC
// timestamp, then dispatches it to subscribers. Phase 0 means no phase.
func (l *Log) Emit(kind Kind, auditID string, phase int, payload map[string]any) (*store.Event, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	e := &store.Event{
		ID:        uuid.NewString(),
		Type:      string(kind),
		Timestamp: store.NowTimestamp(),
		AuditID:   auditID,
		Phase:     phase,
		Payload:   payload,
	}
	if err := l.store.AppendEvent(e); err != nil {
		return nil, err
	}
	l.dispatch(*e)
	return e, nil
}

// Subscribe registers a subscriber. Registering the same subscriber twice
// is a no-op.
func (l *Log) Subscribe(sub Subscriber) {
	for _, existing := range l.subscribers {
		if subscriberEqual(existing, sub) {
			return
		}
	}
	l.subscribers = append(l.subscribers, sub)
}

// subscriberEqual reports whether a and b are the same subscriber.
// Function subscribers compare by code pointer, since func values are not
// comparable with ==.
func subscriberEqual(a, b Subscriber) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Kind() == reflect.Func || bv.Kind() == reflect.Func {
		return av.Kind() == bv.Kind() && av.Pointer() == bv.Pointer()
	}
	return a == b
}

// dispatch delivers e to every subscriber. A panicking subscriber is
// swallowed so it cannot starve the others or block emission.
func (l *Log) dispatch(e store.Event) {
	for _, sub := range l.subscribers {
		func() {
			defer func() { _ = recover() }()
			sub.OnEvent(e)
		}()
	}
}

// Replay loads an audit's events and feeds them to fn in timestamp order.
// Unlike reads elsewhere, a missing event log is an error here: replaying
// against an absent store is almost certainly a caller mistake.
func (l *Log) Replay(auditID string, fn func(e store.Event)) (int, error) {
	if !l.store.EventsFileExists() {
		return 0, fmt.Errorf("event log %s does not exist", l.store.Path(store.EventsFile))
	}
	events, err := l.store.QueryEvents(store.EventFilter{AuditID: auditID})
	if err != nil {
		return 0, err
	}
	for _, e := range events {
		fn(e)
	}
	return len(events), nil
}

// RecordReplay persists a replay run record for later analytics.
func (l *Log) RecordReplay(auditID string, eventCount int) error {
	return l.store.AppendReplay(&store.Replay{
		ID:         uuid.NewString(),
		AuditID:    auditID,
		Timestamp:  store.NowTimestamp(),
		EventCount: eventCount,
	})
}

package event

import (
	"strings"
	"testing"

	"github.com/phaserhq/phaser/internal/store"
)

func testLog(t *testing.T) (*Log, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	return NewLog(s), s
}

func TestKindValid(t *testing.T) {
	if len(Kinds) != 12 {
		t.Fatalf("len(Kinds) = %d, want 12", len(Kinds))
	}
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("Kind %q not valid", k)
		}
	}
	if Kind("banana").Valid() {
		t.Error("unknown kind reported valid")
	}
}

func TestEmit(t *testing.T) {
	t.Run("stamps id and timestamp", func(t *testing.T) {
		log, s := testLog(t)
		e, err := log.Emit(AuditCreated, "a1", 0, map[string]any{"project": "demo"})
		if err != nil {
			t.Fatalf("Emit: %v", err)
		}
		if e.ID == "" || e.Timestamp == "" {
			t.Errorf("missing stamp: %+v", e)
		}
		if !strings.HasSuffix(e.Timestamp, "Z") {
			t.Errorf("timestamp %q is not UTC", e.Timestamp)
		}
		got, err := s.QueryEvents(store.EventFilter{AuditID: "a1"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		log, _ := testLog(t)
		if _, err := log.Emit(Kind("nope"), "a1", 0, nil); err == nil {
			t.Fatal("expected error for unknown kind")
		}
	})

	t.Run("program order is preserved in the log", func(t *testing.T) {
		log, s := testLog(t)
		for _, k := range []Kind{PhaseStarted, PhaseCompleted, AuditCompleted} {
			if _, err := log.Emit(k, "a1", 1, nil); err != nil {
				t.Fatal(err)
			}
		}
		got, _ := s.QueryEvents(store.EventFilter{AuditID: "a1"})
		want := []string{"phase_started", "phase_completed", "audit_completed"}
		for i, e := range got {
			if e.Type != want[i] {
				t.Errorf("event %d = %s, want %s", i, e.Type, want[i])
			}
		}
	})
}

func TestSubscribe(t *testing.T) {
	t.Run("subscribers receive emitted events", func(t *testing.T) {
		log, _ := testLog(t)
		var seen []string
		log.Subscribe(SubscriberFunc(func(e store.Event) {
			seen = append(seen, e.Type)
		}))
		if _, err := log.Emit(PhaseStarted, "a1", 1, nil); err != nil {
			t.Fatal(err)
		}
		if len(seen) != 1 || seen[0] != "phase_started" {
			t.Errorf("seen = %v", seen)
		}
	})

	t.Run("duplicate subscription is a no-op", func(t *testing.T) {
		log, _ := testLog(t)
		count := 0
		sub := SubscriberFunc(func(store.Event) { count++ })
		log.Subscribe(sub)
		log.Subscribe(sub)
		if _, err := log.Emit(PhaseStarted, "a1", 1, nil); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("panicking subscriber does not starve others", func(t *testing.T) {
		log, _ := testLog(t)
		log.Subscribe(SubscriberFunc(func(store.Event) { panic("bad subscriber") }))
		delivered := false
		log.Subscribe(SubscriberFunc(func(store.Event) { delivered = true }))
		if _, err := log.Emit(PhaseStarted, "a1", 1, nil); err != nil {
			t.Fatalf("Emit: %v", err)
		}
		if !delivered {
			t.Error("second subscriber was starved")
		}
	})
}

func TestReplay(t *testing.T) {
	t.Run("fails loudly when log absent", func(t *testing.T) {
		log, _ := testLog(t)
		if _, err := log.Replay("a1", func(store.Event) {}); err == nil {
			t.Fatal("expected error replaying absent log")
		}
	})

	t.Run("dispatches in timestamp order", func(t *testing.T) {
		log, s := testLog(t)
		// Write out of order directly through the store.
		for _, e := range []store.Event{
			{ID: "e2", Type: "phase_completed", Timestamp: "2026-01-01T12:00:00.000Z", AuditID: "a1"},
			{ID: "e1", Type: "phase_started", Timestamp: "2026-01-01T10:00:00.000Z", AuditID: "a1"},
		} {
			ev := e
			if err := s.AppendEvent(&ev); err != nil {
				t.Fatal(err)
			}
		}
		var order []string
		n, err := log.Replay("a1", func(e store.Event) { order = append(order, e.ID) })
		if err != nil {
			t.Fatalf("Replay: %v", err)
		}
		if n != 2 {
			t.Errorf("n = %d, want 2", n)
		}
		if len(order) != 2 || order[0] != "e1" || order[1] != "e2" {
			t.Errorf("order = %v", order)
		}
	})
}

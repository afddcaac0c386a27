package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// TimestampLayout is the ISO-8601 millisecond layout used throughout the
// store. Lexical order on these strings equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NowTimestamp returns the current UTC time in TimestampLayout.
func NowTimestamp() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// Event is one immutable entry of the audit event log.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	AuditID   string         `json:"audit_id"`
	Phase     int            `json:"phase,omitempty"` // 1-based; 0 = none
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventFilter selects events; zero fields match everything.
type EventFilter struct {
	AuditID string
	Type    string
	Since   string // inclusive timestamp lower bound
}

// matches reports whether e satisfies the conjunction of set filters.
func (f EventFilter) matches(e Event) bool {
	if f.AuditID != "" && e.AuditID != f.AuditID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Since != "" && e.Timestamp < f.Since {
		return false
	}
	return true
}

// eventsFile is the on-disk shape of events.json.
type eventsFile struct {
	Version int     `json:"version"`
	Events  []Event `json:"events"`
}

// AppendEvent validates and appends an event. Events are append-only;
// nothing mutates a written record.
func (s *Store) AppendEvent(e *Event) error {
	if e.ID == "" {
		return fmt.Errorf("%w: event id", ErrMissingField)
	}
	if e.Type == "" {
		return fmt.Errorf("%w: event type", ErrMissingField)
	}
	if e.Timestamp == "" {
		return fmt.Errorf("%w: event timestamp", ErrMissingField)
	}
	if e.AuditID == "" {
		return fmt.Errorf("%w: event audit_id", ErrMissingField)
	}

	file, err := s.loadEvents()
	if err != nil {
		return err
	}
	file.Events = append(file.Events, *e)
	return s.saveEvents(file)
}

// QueryEvents returns events matching the filter, sorted ascending by
// timestamp. The sort is stable, so ties keep insertion order.
func (s *Store) QueryEvents(f EventFilter) ([]Event, error) {
	file, err := s.loadEvents()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range file.Events {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out, nil
}

// ClearEvents removes events older than the cutoff timestamp. An empty
// cutoff clears the whole log.
func (s *Store) ClearEvents(cutoff string) error {
	file, err := s.loadEvents()
	if err != nil {
		return err
	}
	kept := file.Events[:0]
	if cutoff != "" {
		for _, e := range file.Events {
			if e.Timestamp >= cutoff {
				kept = append(kept, e)
			}
		}
	}
	file.Events = kept
	return s.saveEvents(file)
}

// EventsFileExists reports whether the event log has been created.
func (s *Store) EventsFileExists() bool {
	_, err := os.Stat(s.Path(EventsFile))
	return err == nil
}

func (s *Store) loadEvents() (*eventsFile, error) {
	data, err := ReadLocked(s.Path(EventsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &eventsFile{Version: 1}, nil
		}
		return nil, err
	}
	var file eventsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContent, EventsFile, err)
	}
	return &file, nil
}

func (s *Store) saveEvents(file *eventsFile) error {
	file.Version = 1
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}
	return WriteAtomic(s.Path(EventsFile), append(data, '\n'))
}

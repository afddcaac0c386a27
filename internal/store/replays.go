package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// Replay records one replay run over an audit's events.
type Replay struct {
	ID         string `json:"id"`
	AuditID    string `json:"audit_id"`
	Timestamp  string `json:"timestamp"`
	EventCount int    `json:"event_count"`
}

type replaysFile struct {
	Version int      `json:"version"`
	Replays []Replay `json:"replays"`
}

// AppendReplay records a completed replay run.
func (s *Store) AppendReplay(r *Replay) error {
	if r.ID == "" {
		return fmt.Errorf("%w: replay id", ErrMissingField)
	}
	if r.AuditID == "" {
		return fmt.Errorf("%w: replay audit_id", ErrMissingField)
	}
	file, err := s.loadReplays()
	if err != nil {
		return err
	}
	file.Replays = append(file.Replays, *r)
	file.Version = 1
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling replays: %w", err)
	}
	return WriteAtomic(s.Path(ReplaysFile), append(data, '\n'))
}

// ListReplays returns all recorded replay runs.
func (s *Store) ListReplays() ([]Replay, error) {
	file, err := s.loadReplays()
	if err != nil {
		return nil, err
	}
	return file.Replays, nil
}

func (s *Store) loadReplays() (*replaysFile, error) {
	data, err := ReadLocked(s.Path(ReplaysFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &replaysFile{Version: 1}, nil
		}
		return nil, err
	}
	var file replaysFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContent, ReplaysFile, err)
	}
	return &file, nil
}

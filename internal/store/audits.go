package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// AuditStatus is the lifecycle state of an audit record.
type AuditStatus string

const (
	StatusPending    AuditStatus = "pending"
	StatusInProgress AuditStatus = "in_progress"
	StatusCompleted  AuditStatus = "completed"
	StatusAbandoned  AuditStatus = "abandoned"
	StatusFailed     AuditStatus = "failed"
)

// TerminalStatus reports whether a status ends the audit lifecycle.
// Records are immutable once terminal.
func TerminalStatus(s AuditStatus) bool {
	switch s {
	case StatusCompleted, StatusAbandoned, StatusFailed:
		return true
	}
	return false
}

// Audit is one pass of a multi-phase code review.
type Audit struct {
	ID      string      `json:"id"`
	Project string      `json:"project"`
	Slug    string      `json:"slug"`
	Date    string      `json:"date"`
	Status  AuditStatus `json:"status"`
}

// auditsFile is the on-disk shape of audits.json.
type auditsFile struct {
	Version int     `json:"version"`
	Audits  []Audit `json:"audits"`
}

// InsertAudit validates and appends a new audit record, generating an ID if
// one is not supplied.
func (s *Store) InsertAudit(a *Audit) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Project == "" {
		return fmt.Errorf("%w: project", ErrMissingField)
	}
	if a.Slug == "" {
		return fmt.Errorf("%w: slug", ErrMissingField)
	}
	if a.Date == "" {
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	switch a.Status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusAbandoned, StatusFailed:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrMissingField, a.Status)
	}

	file, err := s.loadAudits()
	if err != nil {
		return err
	}
	file.Audits = append(file.Audits, *a)
	return s.saveAudits(file)
}

// UpdateAudit applies fn to the matching record and rewrites the file.
// Terminal records refuse further mutation.
func (s *Store) UpdateAudit(id string, fn func(*Audit) error) error {
	file, err := s.loadAudits()
	if err != nil {
		return err
	}
	for i := range file.Audits {
		if file.Audits[i].ID != id {
			continue
		}
		if TerminalStatus(file.Audits[i].Status) {
			return fmt.Errorf("audit %s is in terminal status %s", id, file.Audits[i].Status)
		}
		if err := fn(&file.Audits[i]); err != nil {
			return err
		}
		return s.saveAudits(file)
	}
	return fmt.Errorf("%w: audit %s", ErrNotFound, id)
}

// GetAudit returns the audit with the given ID.
func (s *Store) GetAudit(id string) (*Audit, error) {
	file, err := s.loadAudits()
	if err != nil {
		return nil, err
	}
	for i := range file.Audits {
		if file.Audits[i].ID == id {
			a := file.Audits[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%w: audit %s", ErrNotFound, id)
}

// ListAudits returns all audits, optionally filtered by project name.
func (s *Store) ListAudits(project string) ([]Audit, error) {
	file, err := s.loadAudits()
	if err != nil {
		return nil, err
	}
	if project == "" {
		return file.Audits, nil
	}
	var out []Audit
	for _, a := range file.Audits {
		if a.Project == project {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) loadAudits() (*auditsFile, error) {
	data, err := ReadLocked(s.Path(AuditsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &auditsFile{Version: 1}, nil
		}
		return nil, err
	}
	var file auditsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContent, AuditsFile, err)
	}
	return &file, nil
}

func (s *Store) saveAudits(file *auditsFile) error {
	file.Version = 1
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling audits: %w", err)
	}
	return WriteAtomic(s.Path(AuditsFile), append(data, '\n'))
}

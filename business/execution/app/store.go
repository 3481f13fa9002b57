package app

import (
	"sync"
	"time"

	"github.com/fd1az/dexarb/business/execution/domain"
)

// RecordStore serializes access to the execution record ring so the
// execution service, optimizer and UI can share one instance.
type RecordStore struct {
	mu      sync.RWMutex
	records *domain.Records
}

// NewRecordStore wraps a record ring for concurrent use.
func NewRecordStore(records *domain.Records) *RecordStore {
	return &RecordStore{records: records}
}

// Append files a new execution attempt.
func (s *RecordStore) Append(rec domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records.Append(rec)
}

// Progress moves the identified attempt to a later lifecycle status at
// the given time.
func (s *RecordStore) Progress(id string, status domain.RecordStatus, at time.Time, update func(*domain.Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Progress(id, status, at, update)
}

// All returns a copy of the retained history, oldest first.
func (s *RecordStore) All() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.All()
}

// Len reports how many attempts are retained.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Len()
}

// Stats aggregates the retained history.
func (s *RecordStore) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Stats()
}

// Replace swaps in imported entries, for restoring from an archive.
func (s *RecordStore) Replace(entries []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records.Replace(entries)
}

package audit

import (
	"context"
	"regexp"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string][]*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string][]*Record)}
}

// AppendNext implements Store.
func (s *MemoryStore) AppendNext(_ context.Context, node string, build func(last *Record) (*Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *Record
	if records := s.nodes[node]; len(records) > 0 {
		last = records[len(records)-1]
	}
	record, err := build(last)
	if err != nil {
		return err
	}
	s.nodes[node] = append(s.nodes[node], record)
	return nil
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, node string, id int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.nodes[node] {
		if record.ID == id {
			copied := *record
			return &copied, nil
		}
	}
	return nil, ErrRecordNotFound
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, q Query) ([]QueryRow, error) {
	var userPattern *regexp.Regexp
	if q.UserPattern != "" {
		re, err := regexp.Compile(q.UserPattern)
		if err != nil {
			return nil, err
		}
		userPattern = re
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []QueryRow
	for _, records := range s.nodes {
		present := make(map[int64]bool, len(records))
		for _, record := range records {
			present[record.ID] = true
		}
		for _, record := range records {
			if !q.From.IsZero() && record.LoginAt.Before(q.From) {
				continue
			}
			if !q.To.IsZero() && record.LoginAt.After(q.To) {
				continue
			}
			if q.RemoteIP != "" && record.RemoteIP != q.RemoteIP {
				continue
			}
			if userPattern != nil && !userPattern.MatchString(record.UserID) {
				continue
			}
			rows = append(rows, QueryRow{
				Record:         *record,
				PreviousExists: present[record.PreviousID],
			})
		}
	}

	// Newest first, matching the Postgres store.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

// remove deletes a record, for tamper tests.
func (s *MemoryStore) remove(node string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.nodes[node]
	for i, record := range records {
		if record.ID == id {
			s.nodes[node] = append(records[:i], records[i+1:]...)
			return
		}
	}
}

// corrupt overwrites a record's signature, for tamper tests.
func (s *MemoryStore) corrupt(node string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.nodes[node] {
		if record.ID == id {
			record.Signature = []byte("forged")
			return
		}
	}
}

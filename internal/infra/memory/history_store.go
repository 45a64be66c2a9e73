package memory

import (
	"context"
	"sync"

	"trivia-quiz/internal/domain"
)

// HistoryStore keeps bounded history per key for the lifetime of the process.
type HistoryStore struct {
	mu      sync.RWMutex
	records map[string][]domain.HistoryRecord
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{records: make(map[string][]domain.HistoryRecord)}
}

func (s *HistoryStore) Append(_ context.Context, key string, record domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = domain.PrependHistory(s.records[key], record)
	return nil
}

func (s *HistoryStore) LoadAll(_ context.Context, key string) ([]domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.HistoryRecord{}, s.records[key]...), nil
}

// UnavailableHistory is the store used when the runtime offers no persistent storage.
type UnavailableHistory struct{}

func (UnavailableHistory) Append(context.Context, string, domain.HistoryRecord) error {
	return domain.ErrStorageUnavailable
}

func (UnavailableHistory) LoadAll(context.Context, string) ([]domain.HistoryRecord, error) {
	return nil, domain.ErrStorageUnavailable
}

package journal

import (
	"context"
	"sync"
	"time"
)

// MemoryBatchStore хранит пакеты журнала в памяти. Используется в тестах
// и при запуске сервера без персистентного хранилища.
type MemoryBatchStore struct {
	mu      sync.RWMutex
	batches []*Batch
}

// NewMemoryBatchStore создаёт пустое хранилище
func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{}
}

// AppendBatch добавляет пакет в конец
func (s *MemoryBatchStore) AppendBatch(_ context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return nil
}

// LoadBatches возвращает пакеты, пересекающиеся с интервалом [from, to]
func (s *MemoryBatchStore) LoadBatches(_ context.Context, from, to time.Time) ([]*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Batch
	for _, b := range s.batches {
		if !from.IsZero() && b.To.Before(from) {
			continue
		}
		if !to.IsZero() && b.From.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Len возвращает число сохранённых пакетов
func (s *MemoryBatchStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}

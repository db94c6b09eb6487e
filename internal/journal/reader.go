package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Query — фильтр чтения журнала. Нулевые границы интервала открыты,
// пустые Name/Source не фильтруют, Limit <= 0 означает «без лимита».
type Query struct {
	From   time.Time
	To     time.Time
	Name   string
	Source string
	Limit  int
}

// Reader поднимает пакеты из хранилища, распаковывает и фильтрует записи
type Reader struct {
	store      BatchStore
	compressor Compressor
}

// NewReader создаёт читатель журнала. nil-компрессор заменяется на passthrough.
func NewReader(store BatchStore, compressor Compressor) *Reader {
	if compressor == nil {
		compressor = NewPassthroughCompressor()
	}
	return &Reader{store: store, compressor: compressor}
}

// Records возвращает записи журнала по фильтру в порядке записи
func (r *Reader) Records(ctx context.Context, q Query) ([]Record, error) {
	batches, err := r.store.LoadBatches(ctx, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("журнал: чтение пакетов: %w", err)
	}

	var out []Record
	for _, b := range batches {
		raw, err := r.compressor.Decompress(b.Compressed)
		if err != nil {
			return nil, fmt.Errorf("журнал: распаковка пакета: %w", err)
		}
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("журнал: разбор пакета: %w", err)
		}

		for _, rec := range recs {
			if !q.From.IsZero() && rec.Timestamp.Before(q.From) {
				continue
			}
			if !q.To.IsZero() && rec.Timestamp.After(q.To) {
				continue
			}
			if q.Name != "" && rec.Name != q.Name {
				continue
			}
			if q.Source != "" && rec.Source != q.Source {
				continue
			}
			out = append(out, rec)
			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

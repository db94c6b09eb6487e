// Package journal ведёт историю игровых событий. Журнал подписывается на
// шину событий, накапливает записи в буфере и периодически (или при
// заполнении буфера) сбрасывает их в хранилище сжатыми пакетами. Историю
// читают REST-эндпоинты и воспроизведение сессий.
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/logging"
)

// Record — одна запись журнала: событие без служебных полей шины
type Record struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Batch — единица хранения журнала: сжатый срез записей с временными
// границами. From/To берутся из первой и последней записи пакета.
type Batch struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Count      int       `json:"count"`
	Compressed []byte    `json:"compressed"`
}

// BatchStore — хранилище пакетов журнала. Реализация на Badger живёт в
// internal/storage, in-memory вариант — рядом в этом пакете.
type BatchStore interface {
	AppendBatch(ctx context.Context, b *Batch) error
	// LoadBatches возвращает пакеты, пересекающиеся с интервалом [from, to].
	// Нулевые границы трактуются как открытые.
	LoadBatches(ctx context.Context, from, to time.Time) ([]*Batch, error)
}

// Journal накапливает события и сбрасывает их пакетами в хранилище
type Journal struct {
	mu       sync.Mutex
	buf      []Record
	capacity int

	flushEvery time.Duration
	store      BatchStore
	compressor Compressor

	sub  eventbus.Subscription
	kick chan struct{}
	quit chan struct{}
}

// NewJournal создаёт журнал с лимитом буфера и интервалом сброса.
// nil-компрессор заменяется на passthrough.
func NewJournal(store BatchStore, compressor Compressor, capacity int, flushEvery time.Duration) *Journal {
	if compressor == nil {
		compressor = NewPassthroughCompressor()
	}
	if capacity < 1 {
		capacity = 1
	}
	j := &Journal{
		capacity:   capacity,
		flushEvery: flushEvery,
		store:      store,
		compressor: compressor,
		kick:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
	}
	go j.loop()
	return j
}

// Attach подписывает журнал на все события шины
func (j *Journal) Attach(ctx context.Context, bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{}, j.handle)
	if err != nil {
		return err
	}
	j.sub = sub
	return nil
}

func (j *Journal) handle(_ context.Context, env *eventbus.Envelope) {
	j.Add(Record{
		ID:        env.ID,
		Timestamp: env.Timestamp,
		Source:    env.Source,
		Name:      env.EventType,
		Payload:   json.RawMessage(env.Payload),
	})
}

// Add кладёт запись в буфер. Заполненный до лимита буфер сбрасывается
// немедленно, не дожидаясь тика.
func (j *Journal) Add(rec Record) {
	j.mu.Lock()
	j.buf = append(j.buf, rec)
	full := len(j.buf) >= j.capacity
	j.mu.Unlock()

	if full {
		select {
		case j.kick <- struct{}{}:
		default:
		}
	}
}

// Pending возвращает число ещё не сброшенных записей
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.buf)
}

func (j *Journal) loop() {
	ticker := time.NewTicker(j.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Flush()
		case <-j.kick:
			j.Flush()
		case <-j.quit:
			return
		}
	}
}

// Flush сбрасывает накопленные записи одним пакетом. Пустой буфер — no-op.
func (j *Journal) Flush() {
	j.mu.Lock()
	if len(j.buf) == 0 {
		j.mu.Unlock()
		return
	}
	recs := make([]Record, len(j.buf))
	copy(recs, j.buf)
	j.buf = j.buf[:0]
	j.mu.Unlock()

	raw, err := json.Marshal(recs)
	if err != nil {
		logging.Warn("Журнал: ошибка сериализации пакета: %v", err)
		return
	}
	compressed, err := j.compressor.Compress(raw)
	if err != nil {
		logging.Warn("Журнал: ошибка сжатия пакета: %v", err)
		return
	}

	batch := &Batch{
		From:       recs[0].Timestamp,
		To:         recs[len(recs)-1].Timestamp,
		Count:      len(recs),
		Compressed: compressed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := j.store.AppendBatch(ctx, batch); err != nil {
		logging.Warn("Журнал: ошибка записи пакета: %v", err)
	}
}

// Stop отписывается от шины, останавливает цикл и сбрасывает остаток буфера
func (j *Journal) Stop() {
	if j.sub != nil {
		j.sub.Unsubscribe()
	}
	close(j.quit)
	j.Flush()
}

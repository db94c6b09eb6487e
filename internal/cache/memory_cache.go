package cache

import (
	"context"
	"sync"
	"time"
)

// entry хранит значение кеша и срок его жизни.
type entry struct {
	value     []byte
	expiresAt time.Time // нулевое время - без истечения
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache реализует CacheRepo в памяти процесса.
// Используется в одноузловых конфигурациях без Redis и в тестах.
// Опциональный Cold Storage подключается так же, как у RedisCache,
// но запись в него выполняется синхронно, а не через Write-Behind.
type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[string]entry
	coldStorage ColdStorage
	defaultTTL  time.Duration

	metricsMu sync.Mutex
	hits      int64
	misses    int64

	janitorStop chan struct{}
	janitorOnce sync.Once
}

var _ CacheRepo = (*MemoryCache)(nil)

// NewMemoryCache создаёт кеш в памяти. coldStorage может быть nil.
// defaultTTL применяется к записям, поднятым из Cold Storage при
// промахе; ноль означает отсутствие истечения.
func NewMemoryCache(coldStorage ColdStorage, defaultTTL time.Duration) *MemoryCache {
	mc := &MemoryCache{
		entries:     make(map[string]entry),
		coldStorage: coldStorage,
		defaultTTL:  defaultTTL,
		janitorStop: make(chan struct{}),
	}
	go mc.janitor()
	return mc
}

// Get получает значение по ключу. При промахе пытается загрузить
// запись из Cold Storage и положить её в кеш (Read-Through).
func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	mc.mu.RLock()
	e, ok := mc.entries[key]
	mc.mu.RUnlock()

	if ok && !e.expired(time.Now()) {
		mc.recordHit()
		return append([]byte(nil), e.value...), nil
	}

	mc.recordMiss()
	if ok {
		// Просроченную запись выбрасываем сразу.
		mc.mu.Lock()
		if cur, still := mc.entries[key]; still && cur.expired(time.Now()) {
			delete(mc.entries, key)
		}
		mc.mu.Unlock()
	}

	if mc.coldStorage != nil {
		val, err := mc.coldStorage.Load(ctx, key)
		if err == nil {
			_ = mc.put(key, val, mc.defaultTTL)
			return append([]byte(nil), val...), nil
		}
	}

	return nil, ErrCacheMiss
}

// Set сохраняет значение в кеше. При настроенном Cold Storage запись
// синхронно дублируется в него, ошибка хранилища возвращается вызывающему.
func (mc *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := mc.put(key, value, ttl); err != nil {
		return err
	}
	if mc.coldStorage != nil {
		return mc.coldStorage.Store(ctx, key, value)
	}
	return nil
}

// Delete удаляет ключ из кеша.
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	delete(mc.entries, key)
	mc.mu.Unlock()
	return nil
}

// Exists проверяет существование непросроченного ключа.
func (mc *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	mc.mu.RLock()
	e, ok := mc.entries[key]
	mc.mu.RUnlock()
	return ok && !e.expired(time.Now()), nil
}

// Invalidate удаляет ключ. Рассылки по узлам у кеша в памяти нет,
// инвалидацией кластера занимается владелец (MapCache + NATSInvalidator).
func (mc *MemoryCache) Invalidate(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// BatchGet получает несколько значений за один проход по кешу.
// Cold Storage при batch-чтении не опрашивается.
func (mc *MemoryCache) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	now := time.Now()

	mc.mu.RLock()
	for _, key := range keys {
		if e, ok := mc.entries[key]; ok && !e.expired(now) {
			result[key] = append([]byte(nil), e.value...)
		}
	}
	mc.mu.RUnlock()

	mc.metricsMu.Lock()
	mc.hits += int64(len(result))
	mc.misses += int64(len(keys) - len(result))
	mc.metricsMu.Unlock()

	return result, nil
}

// BatchSet сохраняет несколько значений за один проход.
func (mc *MemoryCache) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	mc.mu.Lock()
	for key, value := range items {
		if key == "" {
			mc.mu.Unlock()
			return ErrInvalidKey
		}
		mc.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	}
	mc.mu.Unlock()

	if mc.coldStorage != nil {
		return mc.coldStorage.BatchStore(ctx, items)
	}
	return nil
}

// Close останавливает фоновую уборку. Cold Storage закрывает владелец.
func (mc *MemoryCache) Close() error {
	mc.janitorOnce.Do(func() {
		close(mc.janitorStop)
	})
	return nil
}

// GetMetrics возвращает метрики кеша.
func (mc *MemoryCache) GetMetrics() *CacheMetrics {
	mc.mu.RLock()
	totalKeys := int64(len(mc.entries))
	mc.mu.RUnlock()

	mc.metricsMu.Lock()
	hits, misses := mc.hits, mc.misses
	mc.metricsMu.Unlock()

	m := &CacheMetrics{
		TotalRequests: hits + misses,
		CacheHits:     hits,
		CacheMisses:   misses,
		TotalKeys:     totalKeys,
		LastUpdate:    time.Now(),
	}
	if m.TotalRequests > 0 {
		m.HitRatio = float64(hits) / float64(m.TotalRequests)
	}
	return m
}

// put кладёт копию значения в кеш.
func (mc *MemoryCache) put(key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	mc.mu.Lock()
	mc.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) recordHit() {
	mc.metricsMu.Lock()
	mc.hits++
	mc.metricsMu.Unlock()
}

func (mc *MemoryCache) recordMiss() {
	mc.metricsMu.Lock()
	mc.misses++
	mc.metricsMu.Unlock()
}

// janitor периодически выметает просроченные записи, чтобы кеш
// не рос на ключах, которые никто больше не читает.
func (mc *MemoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			mc.mu.Lock()
			for key, e := range mc.entries {
				if e.expired(now) {
					delete(mc.entries, key)
				}
			}
			mc.mu.Unlock()
		case <-mc.janitorStop:
			return
		}
	}
}

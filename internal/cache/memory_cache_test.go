package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeColdStorage считает обращения, чтобы тесты видели, когда кеш
// действительно сходил в постоянное хранилище.
type fakeColdStorage struct {
	mu     sync.Mutex
	data   map[string][]byte
	loads  int
	stores int
}

func newFakeColdStorage() *fakeColdStorage {
	return &fakeColdStorage{data: make(map[string][]byte)}
}

func (f *fakeColdStorage) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	val, ok := f.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), val...), nil
}

func (f *fakeColdStorage) Store(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores++
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeColdStorage) BatchLoad(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	for _, key := range keys {
		if val, err := f.Load(ctx, key); err == nil {
			result[key] = val
		}
	}
	return result, nil
}

func (f *fakeColdStorage) BatchStore(ctx context.Context, items map[string][]byte) error {
	for key, value := range items {
		if err := f.Store(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeColdStorage) Close() error { return nil }

func (f *fakeColdStorage) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeColdStorage) storeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores
}

func TestMemoryCache_SetGet(t *testing.T) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k1", []byte("значение"), 0))

	got, err := mc.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte("значение"), got)

	// Мутация возвращённого среза не должна портить кеш.
	got[0] = 'X'
	again, err := mc.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte("значение"), again, "Кеш обязан отдавать копию значения")
}

func TestMemoryCache_MissReturnsErrCacheMiss(t *testing.T) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()

	_, err := mc.Get(context.Background(), "нет-такого")
	require.True(t, IsCacheMiss(err), "Промах обязан возвращать ErrCacheMiss")
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "short", []byte("v"), 20*time.Millisecond))

	_, err := mc.Get(ctx, "short")
	require.NoError(t, err, "Свежая запись обязана читаться")

	require.Eventually(t, func() bool {
		_, err := mc.Get(ctx, "short")
		return IsCacheMiss(err)
	}, 2*time.Second, 10*time.Millisecond, "Запись обязана истечь по TTL")
}

func TestMemoryCache_DeleteAndExists(t *testing.T) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 0))

	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, mc.Delete(ctx, "k"))

	ok, err = mc.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "После удаления ключа быть не должно")
}

func TestMemoryCache_BatchOps(t *testing.T) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()
	ctx := context.Background()

	items := map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": []byte("3"),
	}
	require.NoError(t, mc.BatchSet(ctx, items, 0))

	got, err := mc.BatchGet(ctx, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, got, 3, "Отсутствующий ключ не должен попадать в результат")
	require.Equal(t, []byte("2"), got["b"])
}

func TestMemoryCache_RejectsEmptyKey(t *testing.T) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()
	ctx := context.Background()

	require.ErrorIs(t, mc.Set(ctx, "", []byte("v"), 0), ErrInvalidKey)
	_, err := mc.Get(ctx, "")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryCache_Metrics(t *testing.T) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 0))

	_, _ = mc.Get(ctx, "k")
	_, _ = mc.Get(ctx, "k")
	_, _ = mc.Get(ctx, "miss")

	m := mc.GetMetrics()
	require.Equal(t, int64(2), m.CacheHits)
	require.Equal(t, int64(1), m.CacheMisses)
	require.Equal(t, int64(3), m.TotalRequests)
	require.InDelta(t, 2.0/3.0, m.HitRatio, 1e-9)
	require.Equal(t, int64(1), m.TotalKeys)
}

func TestMemoryCache_ColdStorageReadThrough(t *testing.T) {
	cold := newFakeColdStorage()
	cold.data["k"] = []byte("холодное")

	mc := NewMemoryCache(cold, time.Minute)
	defer mc.Close()
	ctx := context.Background()

	got, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("холодное"), got)
	require.Equal(t, 1, cold.loadCount())

	// Второе чтение обслуживается из кеша без похода в хранилище.
	_, err = mc.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 1, cold.loadCount(), "Повторное чтение не должно трогать Cold Storage")
}

func TestMemoryCache_ColdStorageWriteThrough(t *testing.T) {
	cold := newFakeColdStorage()
	mc := NewMemoryCache(cold, 0)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 0))
	require.Equal(t, 1, cold.storeCount(), "Запись обязана синхронно уехать в Cold Storage")
	require.Equal(t, []byte("v"), cold.data["k"])

	require.NoError(t, mc.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0))
	require.Equal(t, 3, cold.storeCount())
}

// Benchmarks

func BenchmarkMemoryCache_Get(b *testing.B) {
	mc := NewMemoryCache(nil, 0)
	defer mc.Close()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_ = mc.Set(ctx, fmt.Sprintf("key-%d", i), []byte("значение для замера"), 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mc.Get(ctx, fmt.Sprintf("key-%d", i%100))
	}
}

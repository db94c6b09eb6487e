package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/voxcity/internal/journal"
	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// ErrMapNotFound возвращается при обращении к отсутствующей карте
var ErrMapNotFound = errors.New("карта не найдена")

const (
	mapKeyPrefix     = "map:"
	journalKeyPrefix = "journal:"
)

// MapStorage хранит снимки карт и пакеты журнала событий в одной BadgerDB.
// Ключевые пространства разделены префиксами map: и journal:. Снимки карт
// сериализуются в JSON и сжимаются zstd перед записью.
type MapStorage struct {
	db         *badger.DB
	dbPath     string
	compressor journal.Compressor
	mutex      sync.RWMutex
	isReady    bool

	journalSeq uint64
}

var _ MapStore = (*MapStorage)(nil)

// NewMapStorage создает хранилище карт в подкаталоге maps указанного пути
func NewMapStorage(dataPath string) (*MapStorage, error) {
	dbPath := filepath.Join(dataPath, "maps")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	compressor, err := journal.NewZstdCompressor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать компрессор: %w", err)
	}

	return &MapStorage{
		db:         db,
		dbPath:     dbPath,
		compressor: compressor,
		isReady:    true,
	}, nil
}

// Close закрывает хранилище
func (ms *MapStorage) Close() error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if !ms.isReady {
		return nil
	}

	ms.isReady = false
	return ms.db.Close()
}

// SaveMap сохраняет снимок карты под её именем
func (ms *MapStorage) SaveMap(snap *snapshot.MapSnapshot) error {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if snap == nil || snap.Name == "" {
		return fmt.Errorf("снимок карты без имени")
	}
	if !ValidMapName(snap.Name) {
		return fmt.Errorf("недопустимое имя карты: %q", snap.Name)
	}

	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка: %w", err)
	}
	compressed, err := ms.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("ошибка сжатия снимка: %w", err)
	}

	key := mapKeyPrefix + snap.Name
	err = ms.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), compressed)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// LoadMap загружает снимок карты по имени
func (ms *MapStorage) LoadMap(name string) (*snapshot.MapSnapshot, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	key := mapKeyPrefix + name
	var data []byte

	err := ms.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	raw, err := ms.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки снимка: %w", err)
	}
	return snapshot.Decode(raw)
}

// LoadGrid загружает карту и сразу разворачивает её в сетку
func (ms *MapStorage) LoadGrid(name string) (*world.VoxelGrid, error) {
	snap, err := ms.LoadMap(name)
	if err != nil {
		return nil, err
	}
	return snap.ToGrid()
}

// HasMap проверяет наличие карты
func (ms *MapStorage) HasMap(name string) (bool, error) {
	_, err := ms.LoadMap(name)
	if errors.Is(err, ErrMapNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteMap удаляет карту. Возвращает ErrMapNotFound, если карты нет.
func (ms *MapStorage) DeleteMap(name string) error {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	key := []byte(mapKeyPrefix + name)
	err := ms.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// ListMaps возвращает имена сохранённых карт в лексикографическом порядке
func (ms *MapStorage) ListMaps() ([]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var names []string
	err := ms.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(mapKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, mapKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления карт: %w", err)
	}
	return names, nil
}

// Journal возвращает хранилище пакетов журнала поверх той же БД
func (ms *MapStorage) Journal() journal.BatchStore {
	return &badgerBatchStore{ms: ms}
}

// badgerBatchStore пишет пакеты журнала в keyspace journal: той же БД.
// Ключ содержит UnixNano первой записи и монотонный счётчик, поэтому
// лексикографический порядок ключей совпадает с хронологическим.
type badgerBatchStore struct {
	ms *MapStorage
}

func (s *badgerBatchStore) AppendBatch(ctx context.Context, b *journal.Batch) error {
	s.ms.mutex.RLock()
	defer s.ms.mutex.RUnlock()

	if !s.ms.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("ошибка сериализации пакета: %w", err)
	}

	seq := atomic.AddUint64(&s.ms.journalSeq, 1)
	key := fmt.Sprintf("%s%020d:%012d", journalKeyPrefix, b.From.UnixNano(), seq)

	err = s.ms.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка записи пакета в BadgerDB: %w", err)
	}
	return nil
}

func (s *badgerBatchStore) LoadBatches(ctx context.Context, from, to time.Time) ([]*journal.Batch, error) {
	s.ms.mutex.RLock()
	defer s.ms.mutex.RUnlock()

	if !s.ms.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*journal.Batch
	err := s.ms.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(journalKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var b journal.Batch
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			})
			if err != nil {
				return err
			}
			if !from.IsZero() && b.To.Before(from) {
				continue
			}
			if !to.IsZero() && b.From.After(to) {
				continue
			}
			out = append(out, &b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пакетов из BadgerDB: %w", err)
	}
	return out, nil
}
